package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Config represents the configuration for the solar tracker
type Config struct {
	// Site
	Latitude       float64 `json:"latitude"`         // Observer latitude in degrees, north positive
	Longitude      float64 `json:"longitude"`        // Observer longitude in degrees, east positive
	UTCOffsetHours int     `json:"utc_offset_hours"` // Standard-time offset, no daylight saving

	// Task intervals
	SampleInterval        time.Duration `json:"sample_interval"`         // How often the sun is sampled and the drive commanded
	PersistInterval       time.Duration `json:"persist_interval"`        // How often samples are aggregated and stored
	WeatherUpdateInterval time.Duration `json:"weather_update_interval"` // How often the wind forecast is refreshed

	// Tracking policy
	MinTrackingElevation float64 `json:"min_tracking_elevation"` // Degrees; below this the tracker night-stows
	StowAzimuth          float64 `json:"stow_azimuth"`           // Degrees
	StowElevation        float64 `json:"stow_elevation"`         // Degrees, 90 = panel flat
	WindStowSpeed        float64 `json:"wind_stow_speed"`        // Gust in m/s that triggers a wind stow
	WindResumeSpeed      float64 `json:"wind_resume_speed"`      // Gust in m/s below which wind stow is released

	// Drive Modbus server
	DriveModbusAddress string `json:"drive_modbus_address"` // Modbus TCP address (format: IP:PORT, e.g., "192.168.1.50:502")
	DriveSerialDevice  string `json:"drive_serial_device"`  // Modbus RTU device, used when no TCP address is set
	DriveBaudRate      int    `json:"drive_baud_rate"`
	DriveSlaveID       int    `json:"drive_slave_id"`

	// Persistence
	DatabaseDriver     string `json:"database_driver"`      // "postgres" or "sqlite"
	DatabaseConnString string `json:"database_conn_string"` // Empty disables persistence
	DeviceID           int    `json:"device_id"`            // Device ID stored with each summary

	// Reference cross-check
	ReferenceTolerance float64 `json:"reference_tolerance"` // Degrees of deviation before a warning is logged

	// Advanced settings
	HealthCheckPort int    `json:"health_check_port"` // Port for web server (0 = disabled)
	UserAgent       string `json:"user_agent"`        // User agent for weather API client
	DryRun          bool   `json:"dry_run"`           // Log drive commands and inserts without executing them
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Latitude:              56.9496, // Riga, Latvia
		Longitude:             24.1052, // Riga, Latvia
		UTCOffsetHours:        2,
		SampleInterval:        1 * time.Minute,
		PersistInterval:       15 * time.Minute,
		WeatherUpdateInterval: 30 * time.Minute,
		MinTrackingElevation:  0,
		StowAzimuth:           180,
		StowElevation:         90,
		WindStowSpeed:         15,
		WindResumeSpeed:       10,
		DriveBaudRate:         9600,
		DriveSlaveID:          1,
		DatabaseDriver:        DriverPostgres,
		ReferenceTolerance:    2.0,
		HealthCheckPort:       0,
		UserAgent:             "SolarTracker/1.0 (username@example.com)",
		DryRun:                false,
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}

	if c.UTCOffsetHours < -12 || c.UTCOffsetHours > 14 {
		return fmt.Errorf("utc_offset_hours must be between -12 and 14, got: %d", c.UTCOffsetHours)
	}

	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be greater than 0, got: %s", c.SampleInterval)
	}

	if c.PersistInterval <= 0 {
		return fmt.Errorf("persist_interval must be greater than 0, got: %s", c.PersistInterval)
	}

	if c.PersistInterval < c.SampleInterval {
		return fmt.Errorf("persist_interval (%s) cannot be shorter than sample_interval (%s)", c.PersistInterval, c.SampleInterval)
	}

	if c.WeatherUpdateInterval <= 0 {
		return fmt.Errorf("weather_update_interval must be greater than 0, got: %s", c.WeatherUpdateInterval)
	}

	if c.MinTrackingElevation < -90 || c.MinTrackingElevation > 90 {
		return fmt.Errorf("min_tracking_elevation must be between -90 and 90, got: %f", c.MinTrackingElevation)
	}

	if c.StowAzimuth < 0 || c.StowAzimuth >= 360 {
		return fmt.Errorf("stow_azimuth must be in [0, 360), got: %f", c.StowAzimuth)
	}

	if c.StowElevation < -90 || c.StowElevation > 90 {
		return fmt.Errorf("stow_elevation must be between -90 and 90, got: %f", c.StowElevation)
	}

	if c.WindStowSpeed <= 0 {
		return fmt.Errorf("wind_stow_speed must be greater than 0, got: %f", c.WindStowSpeed)
	}

	if c.WindResumeSpeed < 0 || c.WindResumeSpeed > c.WindStowSpeed {
		return fmt.Errorf("wind_resume_speed must be between 0 and wind_stow_speed (%f), got: %f", c.WindStowSpeed, c.WindResumeSpeed)
	}

	if c.DriveSlaveID < 1 || c.DriveSlaveID > 246 {
		return fmt.Errorf("drive_slave_id must be between 1 and 246, got: %d", c.DriveSlaveID)
	}

	if c.DriveSerialDevice != "" && c.DriveBaudRate <= 0 {
		return fmt.Errorf("drive_baud_rate must be greater than 0, got: %d", c.DriveBaudRate)
	}

	if c.DatabaseDriver != DriverPostgres && c.DatabaseDriver != DriverSQLite {
		return fmt.Errorf("invalid database_driver: %s, must be one of: %s, %s", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}

	if c.ReferenceTolerance <= 0 {
		return fmt.Errorf("reference_tolerance must be greater than 0, got: %f", c.ReferenceTolerance)
	}

	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 0 and 65535, got: %d", c.HealthCheckPort)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		SampleInterval        string `json:"sample_interval"`
		PersistInterval       string `json:"persist_interval"`
		WeatherUpdateInterval string `json:"weather_update_interval"`
	}{
		Alias:                 (*Alias)(c),
		SampleInterval:        c.SampleInterval.String(),
		PersistInterval:       c.PersistInterval.String(),
		WeatherUpdateInterval: c.WeatherUpdateInterval.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		SampleInterval        string `json:"sample_interval"`
		PersistInterval       string `json:"persist_interval"`
		WeatherUpdateInterval string `json:"weather_update_interval"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.SampleInterval != "" {
		if c.SampleInterval, err = time.ParseDuration(aux.SampleInterval); err != nil {
			return fmt.Errorf("invalid sample_interval: %w", err)
		}
	}

	if aux.PersistInterval != "" {
		if c.PersistInterval, err = time.ParseDuration(aux.PersistInterval); err != nil {
			return fmt.Errorf("invalid persist_interval: %w", err)
		}
	}

	if aux.WeatherUpdateInterval != "" {
		if c.WeatherUpdateInterval, err = time.ParseDuration(aux.WeatherUpdateInterval); err != nil {
			return fmt.Errorf("invalid weather_update_interval: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
