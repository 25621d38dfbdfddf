// Package tracker runs a solar tracker: it samples the sun position, decides
// whether to track or stow, commands the drive, and stores summaries.
package tracker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/devskill-org/solar-tracker/actuator"
	"github.com/devskill-org/solar-tracker/meteo"
	"github.com/devskill-org/solar-tracker/reference"
	"github.com/devskill-org/solar-tracker/sundata"
	"github.com/google/uuid"
)

// PeriodicTask represents a task that runs periodically with an optional initial delay
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func()
}

// run executes the periodic task in a loop, respecting the initial delay and context cancellation
func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	if pt.initialDelay > 0 {
		logger.Printf("[%s] Waiting for initial delay: %v", pt.name, pt.initialDelay)
		select {
		case <-time.After(pt.initialDelay):
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped during initial delay due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped during initial delay due to stop signal", pt.name)
			return
		}
	} else {
		pt.runFunc()
	}

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	logger.Printf("[%s] Started with interval: %v", pt.name, pt.interval)

	for {
		select {
		case <-ticker.C:
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped due to stop signal", pt.name)
			return
		}
	}
}

// Drive is the part of the drive controller the tracker commands.
type Drive interface {
	WriteTarget(azimuthDeg, elevationDeg float64) error
	Stow(azimuthDeg, elevationDeg float64) error
	Close() error
}

// ReferenceDeviation is the latest model-minus-suncalc difference.
type ReferenceDeviation struct {
	ElevationDeg float64
	AzimuthDeg   float64
	CheckedAt    time.Time
}

// Tracker owns the sun model and everything driven by it.
type Tracker struct {
	// Configuration
	config *Config

	// State
	model        sundata.Model
	latest       sundata.Result
	latestAt     time.Time
	hasLatest    bool
	mode         Mode
	refDeviation ReferenceDeviation
	sessionID    string
	isRunning    bool
	stopChan     chan struct{}
	mu           sync.RWMutex

	samples *SunSamples

	// Weather forecast cache
	weatherCache  WeatherForecastCache
	weatherClient *meteo.Client

	// Drive connection, opened lazily and dropped on error
	drive   Drive
	driveMu sync.Mutex

	// Web server
	webServer *WebServer

	// Database
	store *Store

	// Logging
	logger *log.Logger

	// Test hooks for dependency injection
	now       func() time.Time
	openDrive func(config *Config) (Drive, error)
}

// NewTracker creates a new tracker instance
func NewTracker(config *Config, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}

	return &Tracker{
		config:    config,
		model:     sundata.New(config.Latitude, config.Longitude, config.UTCOffsetHours),
		mode:      ModeNightStow,
		sessionID: uuid.New().String(),
		stopChan:  make(chan struct{}),
		samples:   &SunSamples{},
		weatherCache: WeatherForecastCache{
			cacheDuration: 2 * config.WeatherUpdateInterval,
		},
		weatherClient: meteo.NewClient(config.UserAgent),
		logger:        logger,
		now:           time.Now,
		openDrive:     dialDrive,
	}
}

// NewTrackerWithWebServer creates a new tracker instance with the web server
// enabled when health_check_port is set.
func NewTrackerWithWebServer(config *Config, logger *log.Logger) *Tracker {
	tracker := NewTracker(config, logger)
	tracker.webServer = NewWebServer(tracker, config.HealthCheckPort)
	return tracker
}

func dialDrive(config *Config) (Drive, error) {
	if config.DriveModbusAddress != "" {
		return actuator.NewTCPClient(config.DriveModbusAddress, byte(config.DriveSlaveID))
	}
	if config.DriveSerialDevice != "" {
		return actuator.NewRTUClient(config.DriveSerialDevice, config.DriveBaudRate, byte(config.DriveSlaveID))
	}
	return nil, nil
}

// SetConfig replaces the configuration, rebuilds the sun model for the new
// site and applies the new weather settings.
func (t *Tracker) SetConfig(config *Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if config.UserAgent != t.config.UserAgent {
		t.weatherClient = meteo.NewClient(config.UserAgent)
	}
	t.config = config
	t.model = sundata.New(config.Latitude, config.Longitude, config.UTCOffsetHours)
	t.weatherCache.SetCacheDuration(2 * config.WeatherUpdateInterval)
}

func (t *Tracker) getWeatherClient() *meteo.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.weatherClient
}

// GetConfig returns the current configuration
func (t *Tracker) GetConfig() *Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// SessionID identifies this process in stored summaries.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

func (t *Tracker) getInitialDelay(now time.Time, delayInterval time.Duration) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	delay := now.Sub(top)
	for delay > 0 {
		delay = delay - delayInterval
	}
	return -delay
}

// Start runs the periodic tasks until ctx is cancelled or Stop is called.
// With serverOnly it starts the web server and returns.
func (t *Tracker) Start(ctx context.Context, serverOnly bool) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return fmt.Errorf("tracker is already running")
	}
	t.isRunning = true
	t.stopChan = make(chan struct{})
	t.mu.Unlock()

	config := t.GetConfig()

	if config.DryRun {
		t.logger.Printf("DRY-RUN MODE ENABLED: drive commands and inserts will be logged only")
	}
	t.logger.Printf("Tracking session %s at %.4f, %.4f (UTC%+d)", t.sessionID, config.Latitude, config.Longitude, config.UTCOffsetHours)

	if t.webServer != nil {
		err := t.webServer.Start()
		if err != nil {
			t.logger.Printf("Failed to start web server: %v", err)
		} else {
			t.logger.Printf("Web server started on port %d", t.webServer.port)
		}
		if serverOnly {
			return err
		}
	}

	if config.DatabaseConnString != "" {
		store, err := OpenStore(config.DatabaseDriver, config.DatabaseConnString)
		if err != nil {
			t.logger.Printf("Persistence: failed to connect to DB: %v", err)
		} else if err := store.EnsureSchema(ctx); err != nil {
			t.logger.Printf("Persistence: %v", err)
			store.Close()
		} else {
			t.mu.Lock()
			t.store = store
			t.mu.Unlock()
		}
	}

	persistInitialDelay := t.getInitialDelay(t.now(), config.PersistInterval)

	tasks := []PeriodicTask{
		{
			name:         "WeatherCheck",
			initialDelay: 0,
			interval:     config.WeatherUpdateInterval,
			runFunc: func() {
				t.runWeatherCheck() //nolint:errcheck
			},
		},
		{
			name:         "SunTracking",
			initialDelay: 0,
			interval:     config.SampleInterval,
			runFunc: func() {
				t.RunTrackingStep(ctx)
			},
		},
		{
			name:         "SamplePersist",
			initialDelay: persistInitialDelay,
			interval:     config.PersistInterval,
			runFunc: func() {
				t.runSamplePersist(ctx) //nolint:errcheck
			},
		},
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.run(ctx, t.stopChan, t.logger)
		}()
	}

	wg.Wait()

	t.logger.Printf("All periodic tasks stopped")
	t.stop()
	t.closeResources()
	return nil
}

// Stop gracefully stops the tracker
func (t *Tracker) Stop() {
	t.stop()
}

func (t *Tracker) stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}

	t.isRunning = false

	select {
	case <-t.stopChan:
	default:
		close(t.stopChan)
	}
	t.mu.Unlock()

	// In-flight handlers take t.mu; Shutdown waits for them.
	if t.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.webServer.Stop(ctx); err != nil {
			t.logger.Printf("Error stopping web server: %v", err)
		}
	}
}

func (t *Tracker) closeResources() {
	t.driveMu.Lock()
	if t.drive != nil {
		t.drive.Close()
		t.drive = nil
	}
	t.driveMu.Unlock()

	t.mu.Lock()
	if t.store != nil {
		t.store.Close()
		t.store = nil
	}
	t.mu.Unlock()
}

// IsRunning returns whether the tracker is currently running
func (t *Tracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isRunning
}

// TrackerStatus represents the current status of the tracker
type TrackerStatus struct {
	IsRunning     bool      `json:"is_running"`
	SessionID     string    `json:"session_id"`
	Mode          Mode      `json:"mode"`
	HasSample     bool      `json:"has_sample"`
	LastSampleAt  time.Time `json:"last_sample_at"`
	StoreEnabled  bool      `json:"store_enabled"`
	BufferedCount int       `json:"buffered_samples"`
}

// GetStatus returns the current status of the tracker
func (t *Tracker) GetStatus() TrackerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TrackerStatus{
		IsRunning:     t.isRunning,
		SessionID:     t.sessionID,
		Mode:          t.mode,
		HasSample:     t.hasLatest,
		LastSampleAt:  t.latestAt,
		StoreEnabled:  t.store != nil,
		BufferedCount: t.samples.Len(),
	}
}

// GetLatest returns the most recent sample, if any.
func (t *Tracker) GetLatest() (sundata.Result, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.hasLatest
}

// GetMode returns the current tracker mode.
func (t *Tracker) GetMode() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// GetReferenceDeviation returns the latest cross-check against suncalc.
func (t *Tracker) GetReferenceDeviation() ReferenceDeviation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refDeviation
}

// Sample computes the sun position for now, decides the mode and records the
// sample.
func (t *Tracker) Sample(now time.Time) sundata.Result {
	gust := t.currentGust(now)

	t.mu.Lock()
	config := t.config
	t.model.SetTimeFrom(now)
	result := t.model.Calculate()

	prev := t.mode
	mode := DecideMode(result, gust, prev, config)
	t.mode = mode
	t.latest = result
	t.latestAt = now
	t.hasLatest = true
	t.mu.Unlock()

	if mode != prev {
		if gust != nil {
			t.logger.Printf("[SunTracking] mode %s -> %s (elevation %.2f°, gust %.1f m/s)", prev, mode, result.ElevationDeg, *gust)
		} else {
			t.logger.Printf("[SunTracking] mode %s -> %s (elevation %.2f°)", prev, mode, result.ElevationDeg)
		}
	}

	t.crossCheck(result, now, config)
	t.samples.AddSample(result.ElevationDeg, result.AzimuthDeg, result.SunriseTime(), result.SunsetTime(), mode, now)

	return result
}

func (t *Tracker) crossCheck(result sundata.Result, now time.Time, config *Config) {
	dElev, dAz := reference.Deviation(result, now, config.Latitude, config.Longitude)

	t.mu.Lock()
	t.refDeviation = ReferenceDeviation{ElevationDeg: dElev, AzimuthDeg: dAz, CheckedAt: now}
	t.mu.Unlock()

	if !result.IsDaylight() {
		return
	}
	if math.Abs(dElev) > config.ReferenceTolerance || math.Abs(dAz) > config.ReferenceTolerance {
		t.logger.Printf("[SunTracking] model deviates from reference: elevation %+.2f°, azimuth %+.2f° (tolerance %.2f°)",
			dElev, dAz, config.ReferenceTolerance)
	}
}

// RunTrackingStep samples the sun at the current time and commands the drive.
// Drive failures are logged; the next step reconnects.
func (t *Tracker) RunTrackingStep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result := t.Sample(t.now())
	config := t.GetConfig()
	mode := t.GetMode()

	if config.DryRun {
		if mode == ModeTracking {
			t.logger.Printf("[SunTracking] [DRY-RUN] would point drive at azimuth %.2f°, elevation %.2f°", result.AzimuthDeg, result.ElevationDeg)
		} else {
			t.logger.Printf("[SunTracking] [DRY-RUN] would stow drive (%s) at azimuth %.2f°, elevation %.2f°", mode, config.StowAzimuth, config.StowElevation)
		}
		return
	}

	if err := t.commandDrive(mode, result, config); err != nil {
		t.logger.Printf("[SunTracking] drive command failed: %v", err)
	}
}

func (t *Tracker) commandDrive(mode Mode, result sundata.Result, config *Config) error {
	t.driveMu.Lock()
	defer t.driveMu.Unlock()

	if t.drive == nil {
		drive, err := t.openDrive(config)
		if err != nil {
			return fmt.Errorf("failed to connect to drive: %w", err)
		}
		if drive == nil {
			return nil // No drive configured
		}
		t.drive = drive
	}

	var err error
	if mode == ModeTracking {
		err = t.drive.WriteTarget(result.AzimuthDeg, result.ElevationDeg)
	} else {
		err = t.drive.Stow(config.StowAzimuth, config.StowElevation)
	}
	if err != nil {
		t.drive.Close()
		t.drive = nil
		return err
	}
	return nil
}

// runSamplePersist stores the summary of the period that just ended.
func (t *Tracker) runSamplePersist(ctx context.Context) error {
	config := t.GetConfig()
	periodEnd := t.now().Truncate(config.PersistInterval)

	summary := t.samples.Summarize(periodEnd)
	if summary.SampleCount == 0 {
		t.logger.Printf("[SamplePersist] no samples collected in period ending at %s", periodEnd.Format(time.RFC3339))
		return nil
	}

	t.mu.RLock()
	store := t.store
	t.mu.RUnlock()

	if store == nil {
		t.logSummary("summary", summary)
		t.samples.ClearBefore(periodEnd)
		return nil
	}

	if config.DryRun {
		t.logSummary("[DRY-RUN] would save", summary)
		t.samples.ClearBefore(periodEnd)
		return nil
	}

	if err := store.SaveSummary(ctx, t.sessionID, config.DeviceID, summary); err != nil {
		t.logger.Printf("[SamplePersist] failed to save summary: %v", err)
		return err
	}

	// Only clear samples for this period after a successful insert
	t.samples.ClearBefore(periodEnd)
	t.logSummary(fmt.Sprintf("saved for device_id=%d", config.DeviceID), summary)
	return nil
}

func (t *Tracker) logSummary(prefix string, s SunSummary) {
	t.logger.Printf("[SamplePersist] %s at %s (samples: %d): mean elevation %.2f°, max %.2f°, tracking %.0f%%, mode %s",
		prefix, s.Timestamp.Format(time.RFC3339), s.SampleCount, s.MeanElevationDeg, s.MaxElevationDeg, s.TrackingFraction*100, s.Mode)
}
