package meteo

import "time"

// WeatherSymbol is a MET symbol code such as "rainandthunder" or "fair_day".
type WeatherSymbol string

// Symbols the tracker logs or reacts to. The API defines many more.
const (
	ClearSkyDay            WeatherSymbol = "clearsky_day"
	FairDay                WeatherSymbol = "fair_day"
	PartlyCloudyDay        WeatherSymbol = "partlycloudy_day"
	Cloudy                 WeatherSymbol = "cloudy"
	Fog                    WeatherSymbol = "fog"
	Rain                   WeatherSymbol = "rain"
	HeavyRain              WeatherSymbol = "heavyrain"
	Snow                   WeatherSymbol = "snow"
	HeavySnow              WeatherSymbol = "heavysnow"
	RainAndThunder         WeatherSymbol = "rainandthunder"
	HeavyRainAndThunder    WeatherSymbol = "heavyrainandthunder"
	SnowShowersAndThunder  WeatherSymbol = "snowshowersandthunder_day"
	LightRainAndThunder    WeatherSymbol = "lightrainandthunder"
	HeavySnowAndThunder    WeatherSymbol = "heavysnowandthunder"
	SleetShowersAndThunder WeatherSymbol = "sleetshowersandthunder_night"
)

// ForecastMeta contains metadata for the forecast
type ForecastMeta struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Units     map[string]string `json:"units,omitempty"`
}

// ForecastTimeInstant holds the instant values the tracker reads.
type ForecastTimeInstant struct {
	AirTemperature    *float64 `json:"air_temperature,omitempty"`
	CloudAreaFraction *float64 `json:"cloud_area_fraction,omitempty"`
	WindFromDirection *float64 `json:"wind_from_direction,omitempty"`
	WindSpeed         *float64 `json:"wind_speed,omitempty"`
	WindSpeedOfGust   *float64 `json:"wind_speed_of_gust,omitempty"`
}

// ForecastTimePeriod contains weather parameters valid for a specified time period
type ForecastTimePeriod struct {
	PrecipitationAmount  *float64 `json:"precipitation_amount,omitempty"`
	ProbabilityOfThunder *float64 `json:"probability_of_thunder,omitempty"`
}

// ForecastSummary contains a summary of weather conditions
type ForecastSummary struct {
	SymbolCode WeatherSymbol `json:"symbol_code"`
}

// ForecastPeriodData contains forecast data for a specific period
type ForecastPeriodData struct {
	Summary *ForecastSummary    `json:"summary,omitempty"`
	Details *ForecastTimePeriod `json:"details,omitempty"`
}

// ForecastInstantData contains instant forecast data
type ForecastInstantData struct {
	Details *ForecastTimeInstant `json:"details,omitempty"`
}

// ForecastTimeStepData contains forecast data for a specific time step
type ForecastTimeStepData struct {
	Instant     *ForecastInstantData `json:"instant,omitempty"`
	Next1Hours  *ForecastPeriodData  `json:"next_1_hours,omitempty"`
	Next6Hours  *ForecastPeriodData  `json:"next_6_hours,omitempty"`
	Next12Hours *ForecastPeriodData  `json:"next_12_hours,omitempty"`
}

// ForecastTimeStep represents a forecast for a specific time step
type ForecastTimeStep struct {
	Time time.Time             `json:"time"`
	Data *ForecastTimeStepData `json:"data,omitempty"`
}

// Forecast contains the main forecast data
type Forecast struct {
	Meta       ForecastMeta       `json:"meta"`
	Timeseries []ForecastTimeStep `json:"timeseries"`
}

// METJSONForecast represents the root forecast response
type METJSONForecast struct {
	Type       string    `json:"type"`
	Properties *Forecast `json:"properties,omitempty"`
}

// Location represents coordinates for a forecast request
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  *int    `json:"altitude,omitempty"`
}

// QueryParams represents query parameters for forecast requests
type QueryParams struct {
	Location Location `json:"location"`
}
