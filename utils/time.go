// Package utils provides utility functions for the solar tracker.
package utils //nolint:revive // utils is a common and acceptable package name

import (
	"fmt"
	"math"
	"time"
)

// FormatDecimalHours formats decimal hours as HH:MM, rounding to the nearest
// minute. NaN and infinities format as "--:--".
func FormatDecimalHours(h float64) string {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return "--:--"
	}
	minutes := int(math.Round(h * 60))
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d:%02d", sign, minutes/60, minutes%60)
}

// DecimalHoursToTime returns midnight of date (in date's location) plus h hours.
// Sub-second precision is dropped.
func DecimalHoursToTime(date time.Time, h float64) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(math.Round(h*3600)) * time.Second)
}
