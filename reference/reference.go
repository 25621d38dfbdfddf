// Package reference compares the sundata approximation against the suncalc
// ephemeris and reports how far the two drift apart.
package reference

import (
	"math"
	"time"

	"github.com/devskill-org/solar-tracker/sundata"
	"github.com/sixdouglas/suncalc"
	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Position returns the suncalc elevation and compass azimuth (north = 0,
// clockwise) in degrees.
func Position(t time.Time, lat, lon float64) (elevationDeg, azimuthDeg float64) {
	pos := suncalc.GetPosition(t, lat, lon)
	elevationDeg = pos.Altitude * 180 / math.Pi
	// suncalc measures azimuth from south, positive westward
	azimuthDeg = math.Mod(pos.Azimuth*180/math.Pi+180, 360)
	if azimuthDeg < 0 {
		azimuthDeg += 360
	}
	return elevationDeg, azimuthDeg
}

// Deviation returns model minus reference for elevation and azimuth. The
// azimuth difference is wrapped into [-180, 180].
func Deviation(result sundata.Result, t time.Time, lat, lon float64) (dElev, dAz float64) {
	refElev, refAz := Position(t, lat, lon)
	return result.ElevationDeg - refElev, wrapDegrees(result.AzimuthDeg - refAz)
}

func wrapDegrees(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// Stats summarizes absolute deviations.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

func newStats(abs []float64) Stats {
	if len(abs) == 0 {
		return Stats{Mean: math.NaN(), StdDev: math.NaN(), Max: math.NaN()}
	}
	s := Stats{
		Mean: stat.Mean(abs, nil),
		Max:  floats.Max(abs),
	}
	if len(abs) > 1 {
		s.StdDev = stat.StdDev(abs, nil)
	}
	return s
}

// Sample is one daylight comparison point.
type Sample struct {
	Time           time.Time `json:"time"`
	ModelElevation float64   `json:"model_elevation"`
	ModelAzimuth   float64   `json:"model_azimuth"`
	RefElevation   float64   `json:"ref_elevation"`
	RefAzimuth     float64   `json:"ref_azimuth"`
	DeltaElevation float64   `json:"delta_elevation"`
	DeltaAzimuth   float64   `json:"delta_azimuth"`
}

// Report is the model accuracy over one local day.
type Report struct {
	Date      time.Time `json:"date"`
	Samples   []Sample  `json:"samples"`
	Elevation Stats     `json:"elevation"`
	Azimuth   Stats     `json:"azimuth"`

	// Skipped counts steps where either source had the sun below the horizon
	// or the model produced NaN.
	Skipped int `json:"skipped"`
}

// MinStep is the finest step a report is built with.
const MinStep = time.Minute

// BuildReport sweeps the model's local day containing date at the given step
// and compares every daylight sample against suncalc. The model is copied, so
// the caller's last result is left alone.
func BuildReport(model sundata.Model, date time.Time, step time.Duration) Report {
	if step <= 0 {
		step = time.Hour
	} else if step < MinStep {
		step = MinStep
	}

	loc := model.Location()
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)

	report := Report{Date: start}
	var absElev, absAz []float64

	for ts := start; ts.Before(end); ts = ts.Add(step) {
		model.SetTimeFrom(ts)
		res := model.Calculate()
		refElev, refAz := Position(ts, model.Latitude(), model.Longitude())

		if math.IsNaN(res.ElevationDeg) || math.IsNaN(res.AzimuthDeg) || res.ElevationDeg <= 0 || refElev <= 0 {
			report.Skipped++
			continue
		}

		dElev := res.ElevationDeg - refElev
		dAz := wrapDegrees(res.AzimuthDeg - refAz)

		report.Samples = append(report.Samples, Sample{
			Time:           ts,
			ModelElevation: res.ElevationDeg,
			ModelAzimuth:   res.AzimuthDeg,
			RefElevation:   refElev,
			RefAzimuth:     refAz,
			DeltaElevation: dElev,
			DeltaAzimuth:   dAz,
		})
		absElev = append(absElev, math.Abs(dElev))
		absAz = append(absAz, math.Abs(dAz))
	}

	report.Elevation = newStats(absElev)
	report.Azimuth = newStats(absAz)
	return report
}

// LeapRuleDivergence lists the years in [fromYear, toYear] where the model's
// leap rule disagrees with the Gregorian calendar. Inside 1901-2099 the list
// is empty.
func LeapRuleDivergence(fromYear, toYear int) []int {
	var years []int
	for y := fromYear; y <= toYear; y++ {
		if sundata.IsLeapYear(y) != julian.LeapYearGregorian(y) {
			years = append(years, y)
		}
	}
	return years
}
