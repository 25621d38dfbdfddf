package sundata

import (
	"fmt"
	"math"
	"time"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	degreesPerHour = 15.0
	earthTilt      = 23.45 // degrees

	// equinoxDay is the day-of-year used as the origin of the B parameter.
	equinoxDay = 81

	// halfDayFactor converts the sunrise hour angle (degrees) to hours.
	halfDayFactor = 0.0666
)

// cumulativeDays holds the days preceding the 1st of each month in a non-leap
// year, indexed by month (1-12).
var cumulativeDays = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// Model holds an observer location and the last timestamp passed to SetTime.
// The zero value is not useful; use New.
type Model struct {
	latitudeDeg    float64
	longitudeDeg   float64
	utcOffsetHours int

	latitudeRad  float64
	longitudeRad float64

	year      int
	month     int
	dayOfYear int
	hour      int
	minute    int
	second    int

	last Result
}

// Result is the outcome of one Calculate call. It is a plain value and stays
// valid after the Model moves on to another timestamp.
type Result struct {
	DayOfYear                 int     `json:"day_of_year"`
	LocalTimeHours            float64 `json:"local_time_hours"`
	LocalStandardTimeMeridian float64 `json:"local_standard_time_meridian"`
	B                         float64 `json:"b_deg"`
	EquationOfTime            float64 `json:"equation_of_time_min"`
	TimeCorrection            float64 `json:"time_correction_min"`
	LocalSolarTime            float64 `json:"local_solar_time_hours"`
	HourAngleDeg              float64 `json:"hour_angle_deg"`
	DeclinationDeg            float64 `json:"declination_deg"`
	ElevationRad              float64 `json:"elevation_rad"`
	ElevationDeg              float64 `json:"elevation_deg"`
	AzimuthRad                float64 `json:"azimuth_rad"`
	AzimuthDeg                float64 `json:"azimuth_deg"`

	// RawAzimuthDeg is the acos result before the afternoon reflection.
	RawAzimuthDeg float64 `json:"raw_azimuth_deg"`
	Afternoon     bool    `json:"afternoon"`

	latitudeRad float64
}

// New creates a model for an observer at the given latitude and longitude
// (degrees, north and east positive) with a standard-time offset of
// utcOffsetHours east of Greenwich. Values are not validated.
func New(latitudeDeg, longitudeDeg float64, utcOffsetHours int) Model {
	return Model{
		latitudeDeg:    latitudeDeg,
		longitudeDeg:   longitudeDeg,
		utcOffsetHours: utcOffsetHours,
		latitudeRad:    latitudeDeg * degToRad,
		longitudeRad:   longitudeDeg * degToRad,
	}
}

// IsLeapYear reports whether year gets a 29th of February under the model's
// rule. Century years are treated like any other year divisible by four.
func IsLeapYear(year int) bool {
	return (year-2000)%4 == 0
}

// DayOfYear returns the 1-based ordinal day for a calendar date. Months outside
// 1-12 add no preceding days.
func DayOfYear(year, month, day int) int {
	doy := day
	if month < 1 || month > 12 {
		return doy
	}
	doy += cumulativeDays[month]
	if month > 2 && IsLeapYear(year) {
		doy++
	}
	return doy
}

// SetTime replaces the observation time. The time is local standard time for
// the model's UTC offset.
func (m *Model) SetTime(year, month, day, hour, minute, second int) {
	m.year = year
	m.month = month
	m.dayOfYear = DayOfYear(year, month, day)
	m.hour = hour
	m.minute = minute
	m.second = second
}

// SetTimeFrom converts t to the model's standard time and calls SetTime.
// Sub-second precision is dropped.
func (m *Model) SetTimeFrom(t time.Time) {
	lt := t.In(m.Location())
	m.SetTime(lt.Year(), int(lt.Month()), lt.Day(), lt.Hour(), lt.Minute(), lt.Second())
}

// Calculate derives the solar geometry for the last SetTime call. The result
// is returned and also kept for the Model accessors.
func (m *Model) Calculate() Result {
	r := Result{
		DayOfYear:   m.dayOfYear,
		latitudeRad: m.latitudeRad,
	}

	r.LocalTimeHours = float64(m.hour*3600+m.minute*60+m.second) / 3600
	r.LocalStandardTimeMeridian = degreesPerHour * float64(m.utcOffsetHours)

	r.B = 0.986 * float64(m.dayOfYear-equinoxDay)
	b := r.B * degToRad

	r.EquationOfTime = 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)
	r.TimeCorrection = 4*(m.longitudeDeg-r.LocalStandardTimeMeridian) + r.EquationOfTime
	r.LocalSolarTime = r.LocalTimeHours + r.TimeCorrection/60
	r.HourAngleDeg = degreesPerHour * (r.LocalSolarTime - 12)
	r.DeclinationDeg = earthTilt * math.Sin(b)

	decl := r.DeclinationDeg * degToRad
	hra := r.HourAngleDeg * degToRad
	sinLat, cosLat := math.Sin(m.latitudeRad), math.Cos(m.latitudeRad)

	r.ElevationRad = math.Asin(math.Sin(decl)*sinLat + math.Cos(decl)*cosLat*math.Cos(hra))
	r.ElevationDeg = r.ElevationRad * radToDeg

	r.AzimuthRad = math.Acos((math.Sin(decl)*cosLat - math.Cos(decl)*sinLat*math.Cos(hra)) / math.Cos(r.ElevationRad))
	r.AzimuthDeg = r.AzimuthRad * radToDeg
	r.RawAzimuthDeg = r.AzimuthDeg

	if r.LocalSolarTime > 12 || r.HourAngleDeg > 0 {
		r.Afternoon = true
		r.AzimuthDeg = 360 - r.AzimuthDeg
		r.AzimuthRad = r.AzimuthDeg * degToRad
	}

	m.last = r
	return r
}

// Latitude returns the observer latitude in degrees.
func (m Model) Latitude() float64 { return m.latitudeDeg }

// Longitude returns the observer longitude in degrees.
func (m Model) Longitude() float64 { return m.longitudeDeg }

// LatitudeRad returns the observer latitude in radians.
func (m Model) LatitudeRad() float64 { return m.latitudeRad }

// LongitudeRad returns the observer longitude in radians.
func (m Model) LongitudeRad() float64 { return m.longitudeRad }

// UTCOffset returns the standard-time offset in hours.
func (m Model) UTCOffset() int { return m.utcOffsetHours }

// Location returns a fixed zone for the model's UTC offset.
func (m Model) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", m.utcOffsetHours), m.utcOffsetHours*3600)
}

// Last returns the result of the most recent Calculate call.
func (m Model) Last() Result { return m.last }

// ElevationRad returns the last calculated elevation in radians.
func (m Model) ElevationRad() float64 { return m.last.ElevationRad }

// ElevationDeg returns the last calculated elevation in degrees.
func (m Model) ElevationDeg() float64 { return m.last.ElevationDeg }

// AzimuthRad returns the last calculated azimuth in radians.
func (m Model) AzimuthRad() float64 { return m.last.AzimuthRad }

// AzimuthDeg returns the last calculated azimuth in degrees, clockwise from north.
func (m Model) AzimuthDeg() float64 { return m.last.AzimuthDeg }

// SunriseTime returns the sunrise of the last calculated day in decimal
// local standard time hours.
func (m Model) SunriseTime() float64 { return m.last.SunriseTime() }

// SunsetTime returns the sunset of the last calculated day in decimal local
// standard time hours.
func (m Model) SunsetTime() float64 { return m.last.SunsetTime() }

// halfDay returns half the day length in hours. NaN during polar day or night.
func (r Result) halfDay() float64 {
	return radToDeg * halfDayFactor * math.Acos(-math.Tan(r.latitudeRad)*math.Tan(r.DeclinationDeg*degToRad))
}

// SunriseTime returns the sunrise in decimal local standard time hours.
func (r Result) SunriseTime() float64 {
	return 12 - r.halfDay() - r.TimeCorrection/60
}

// SunsetTime returns the sunset in decimal local standard time hours.
func (r Result) SunsetTime() float64 {
	return 12 + r.halfDay() - r.TimeCorrection/60
}

// SolarNoon returns the local standard time at which the hour angle is zero.
func (r Result) SolarNoon() float64 {
	return 12 - r.TimeCorrection/60
}

// DayLength returns hours between sunrise and sunset.
func (r Result) DayLength() float64 {
	return 2 * r.halfDay()
}

// IsDaylight reports whether the sun is above the horizon. NaN elevations
// count as not daylight.
func (r Result) IsDaylight() bool {
	return r.ElevationDeg > 0
}
