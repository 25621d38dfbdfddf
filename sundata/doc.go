// Package sundata computes the sun's position for a fixed observer: elevation,
// azimuth, sunrise and sunset.
//
// The model follows the approximations published by PV Education: a
// day-of-year based equation of time, a sine declination curve and the
// standard hour-angle relations. It is meant for solar trackers that sample
// the sun once every few seconds or minutes, not for ephemeris-grade work.
//
// Basic Usage:
//
//	model := sundata.New(37.98, 23.73, 2) // Athens, UTC+2
//	model.SetTime(2024, 6, 21, 12, 0, 0)
//	result := model.Calculate()
//
//	fmt.Printf("Elevation: %.2f°, Azimuth: %.2f°\n", result.ElevationDeg, result.AzimuthDeg)
//	fmt.Printf("Sunrise: %.2f h, Sunset: %.2f h\n", result.SunriseTime(), result.SunsetTime())
//
// The UTC offset is a plain integer number of hours east of Greenwich. Daylight
// saving time is never applied: every time passed to SetTime is local standard
// time for that offset. SetTimeFrom converts a time.Time into that frame.
//
// Leap years follow the rule (year-2000)%4 == 0. This is the plain "divisible by
// four" rule; the Gregorian century exceptions (1900, 2100, ...) are not
// applied, so day-of-year is off by one from March onwards in those years.
//
// Nothing here returns an error. Inputs outside the geographic or calendar
// ranges, and polar day or night, produce NaN values instead. Callers that need
// validation check math.IsNaN on the outputs.
package sundata
