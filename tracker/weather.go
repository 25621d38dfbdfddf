package tracker

import (
	"sync"
	"time"

	"github.com/devskill-org/solar-tracker/meteo"
)

// WeatherForecastCache caches weather forecast data with expiration.
type WeatherForecastCache struct {
	mu            sync.RWMutex
	forecast      *meteo.METJSONForecast
	fetchedAt     time.Time
	cacheDuration time.Duration
}

// Get retrieves the cached weather forecast if it's still valid.
func (w *WeatherForecastCache) Get() (*meteo.METJSONForecast, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.forecast == nil {
		return nil, false
	}

	if time.Since(w.fetchedAt) > w.cacheDuration {
		return nil, false
	}

	return w.forecast, true
}

// Set updates the cached weather forecast with a new value.
func (w *WeatherForecastCache) Set(forecast *meteo.METJSONForecast) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.forecast = forecast
	w.fetchedAt = time.Now()
}

// SetCacheDuration changes how long a forecast stays valid.
func (w *WeatherForecastCache) SetCacheDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cacheDuration = d
}

// runWeatherCheck refreshes the forecast cache. Failures keep the old
// forecast until it expires.
func (t *Tracker) runWeatherCheck() error {
	config := t.GetConfig()

	forecast, err := t.getWeatherClient().GetCompact(meteo.QueryParams{
		Location: meteo.Location{
			Latitude:  config.Latitude,
			Longitude: config.Longitude,
		},
	})
	if err != nil {
		if meteo.IsThrottled(err) {
			t.logger.Printf("[WeatherCheck] MET API asked to back off: %v", err)
		} else {
			t.logger.Printf("[WeatherCheck] failed to fetch forecast: %v", err)
		}
		return err
	}

	t.weatherCache.Set(forecast)

	current := forecast.GetCurrentWeather()
	if current == nil {
		t.logger.Printf("[WeatherCheck] forecast has no time series")
		return nil
	}

	if gust := current.GetWindGust(); gust != nil {
		t.logger.Printf("[WeatherCheck] wind gust %.1f m/s (stow at %.1f)", *gust, config.WindStowSpeed)
	}
	if symbol := current.GetSymbolCode(); symbol != nil && symbol.HasThunder() {
		t.logger.Printf("[WeatherCheck] thunder expected: %s", *symbol)
	}
	return nil
}

// currentGust returns the forecast gust for ts, or nil if no fresh forecast
// is cached.
func (t *Tracker) currentGust(ts time.Time) *float64 {
	forecast, ok := t.weatherCache.Get()
	if !ok {
		return nil
	}
	return forecast.GetWeatherAtTime(ts).GetWindGust()
}
