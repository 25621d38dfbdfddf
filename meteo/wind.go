package meteo

import (
	"strings"
	"time"
)

// GetCurrentWeather returns the time step closest to now.
func (f *METJSONForecast) GetCurrentWeather() *ForecastTimeStep {
	return f.GetWeatherAtTime(time.Now())
}

// GetWeatherAtTime returns the time step closest to targetTime, or nil when
// the forecast has no time series.
func (f *METJSONForecast) GetWeatherAtTime(targetTime time.Time) *ForecastTimeStep {
	if f == nil || f.Properties == nil || len(f.Properties.Timeseries) == 0 {
		return nil
	}

	var closest *ForecastTimeStep
	minDiff := time.Duration(1<<63 - 1)

	for i := range f.Properties.Timeseries {
		step := &f.Properties.Timeseries[i]
		diff := step.Time.Sub(targetTime)
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = step
		}
	}

	return closest
}

func (ts *ForecastTimeStep) instant() *ForecastTimeInstant {
	if ts == nil || ts.Data == nil || ts.Data.Instant == nil {
		return nil
	}
	return ts.Data.Instant.Details
}

// GetWindSpeed returns the 10 m wind speed in m/s if available
func (ts *ForecastTimeStep) GetWindSpeed() *float64 {
	if d := ts.instant(); d != nil {
		return d.WindSpeed
	}
	return nil
}

// GetWindGust returns the gust speed in m/s. The compact product usually
// omits gusts, in which case the mean wind speed is returned instead.
func (ts *ForecastTimeStep) GetWindGust() *float64 {
	d := ts.instant()
	if d == nil {
		return nil
	}
	if d.WindSpeedOfGust != nil {
		return d.WindSpeedOfGust
	}
	return d.WindSpeed
}

// GetWindDirection returns the direction the wind blows from, in degrees.
func (ts *ForecastTimeStep) GetWindDirection() *float64 {
	if d := ts.instant(); d != nil {
		return d.WindFromDirection
	}
	return nil
}

// GetSymbolCode returns the weather symbol code for the next hour if available
func (ts *ForecastTimeStep) GetSymbolCode() *WeatherSymbol {
	if ts == nil || ts.Data == nil {
		return nil
	}

	for _, period := range []*ForecastPeriodData{ts.Data.Next1Hours, ts.Data.Next6Hours, ts.Data.Next12Hours} {
		if period != nil && period.Summary != nil {
			return &period.Summary.SymbolCode
		}
	}

	return nil
}

// HasThunder checks if the weather symbol indicates thunder
func (ws WeatherSymbol) HasThunder() bool {
	return strings.Contains(string(ws), "thunder")
}

// IntPtr is a helper function to get a pointer to an int value
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr is a helper function to get a pointer to a float64 value
func Float64Ptr(f float64) *float64 {
	return &f
}
