package tracker

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/devskill-org/solar-tracker/meteo"
	"github.com/google/uuid"
)

// fakeDrive records the commands sent to it.
type fakeDrive struct {
	mu      sync.Mutex
	targets [][2]float64
	stows   [][2]float64
	closed  int
	err     error
}

func (d *fakeDrive) WriteTarget(azimuthDeg, elevationDeg float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.targets = append(d.targets, [2]float64{azimuthDeg, elevationDeg})
	return nil
}

func (d *fakeDrive) Stow(azimuthDeg, elevationDeg float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.stows = append(d.stows, [2]float64{azimuthDeg, elevationDeg})
	return nil
}

func (d *fakeDrive) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// athensNoon is 12:00 local standard time in Athens (UTC+2).
var athensNoon = time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC)

func athensConfig() *Config {
	config := DefaultConfig()
	config.Latitude = 37.98
	config.Longitude = 23.73
	config.UTCOffsetHours = 2
	return config
}

func forecastWithGust(gust float64) *meteo.METJSONForecast {
	return &meteo.METJSONForecast{
		Type: "Feature",
		Properties: &meteo.Forecast{
			Timeseries: []meteo.ForecastTimeStep{
				{
					Time: athensNoon,
					Data: &meteo.ForecastTimeStepData{
						Instant: &meteo.ForecastInstantData{
							Details: &meteo.ForecastTimeInstant{
								WindSpeed:       meteo.Float64Ptr(gust / 2),
								WindSpeedOfGust: meteo.Float64Ptr(gust),
							},
						},
					},
				},
			},
		},
	}
}

// newTestTracker returns a tracker with a fixed clock, a fake drive and a
// weather client pointed at a local server.
func newTestTracker(t *testing.T, config *Config) (*Tracker, *fakeDrive, *int) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"Feature","properties":{"meta":{"updated_at":"2024-06-21T09:00:00Z"},"timeseries":[` +
			`{"time":"2024-06-21T10:00:00Z","data":{"instant":{"details":{"wind_speed":3.2}}}}]}}`))
	}))
	t.Cleanup(srv.Close)

	tracker := NewTracker(config, log.New(io.Discard, "", 0))
	tracker.weatherClient.SetBaseURL(srv.URL)
	tracker.now = func() time.Time { return athensNoon }

	drive := &fakeDrive{}
	opened := 0
	tracker.openDrive = func(*Config) (Drive, error) {
		opened++
		return drive, nil
	}
	return tracker, drive, &opened
}

func TestNewTracker(t *testing.T) {
	tracker := NewTracker(DefaultConfig(), nil)

	if tracker.logger == nil {
		t.Fatal("nil logger should fall back to the default logger")
	}
	if tracker.GetMode() != ModeNightStow {
		t.Errorf("initial mode = %s, want night_stow", tracker.GetMode())
	}
	if _, err := uuid.Parse(tracker.SessionID()); err != nil {
		t.Errorf("session id %q is not a UUID: %v", tracker.SessionID(), err)
	}
	if tracker.IsRunning() {
		t.Error("new tracker should not be running")
	}
	if _, ok := tracker.GetLatest(); ok {
		t.Error("new tracker should have no sample")
	}
	if tracker.webServer != nil {
		t.Error("NewTracker should not create a web server")
	}

	other := NewTracker(DefaultConfig(), nil)
	if other.SessionID() == tracker.SessionID() {
		t.Error("session ids should differ between trackers")
	}
}

func TestNewTrackerWithWebServer(t *testing.T) {
	config := DefaultConfig()
	config.HealthCheckPort = 0
	if tracker := NewTrackerWithWebServer(config, nil); tracker.webServer != nil {
		t.Error("port 0 should disable the web server")
	}

	config.HealthCheckPort = 18081
	if tracker := NewTrackerWithWebServer(config, nil); tracker.webServer == nil {
		t.Error("expected a web server")
	}
}

func TestTracker_Sample(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	result := tracker.Sample(athensNoon)

	if math.Abs(result.ElevationDeg-74.39) > 0.05 {
		t.Errorf("elevation = %.3f, want ~74.39", result.ElevationDeg)
	}
	if math.Abs(result.AzimuthDeg-156.63) > 0.05 {
		t.Errorf("azimuth = %.3f, want ~156.63", result.AzimuthDeg)
	}
	if tracker.GetMode() != ModeTracking {
		t.Errorf("mode = %s, want tracking", tracker.GetMode())
	}

	latest, ok := tracker.GetLatest()
	if !ok || latest.ElevationDeg != result.ElevationDeg {
		t.Errorf("GetLatest() = %v, %v", latest.ElevationDeg, ok)
	}

	dev := tracker.GetReferenceDeviation()
	if !dev.CheckedAt.Equal(athensNoon) {
		t.Errorf("reference checked at %v, want %v", dev.CheckedAt, athensNoon)
	}
	if math.Abs(dev.ElevationDeg) > 0.5 || math.Abs(dev.AzimuthDeg) > 1 {
		t.Errorf("reference deviation too large: %+v", dev)
	}

	status := tracker.GetStatus()
	if !status.HasSample || status.BufferedCount != 1 || !status.LastSampleAt.Equal(athensNoon) {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestTracker_SampleAtNight(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	tracker.Sample(athensNoon)
	result := tracker.Sample(athensNoon.Add(-10 * time.Hour))

	if result.ElevationDeg >= 0 {
		t.Errorf("expected the sun below the horizon at 02:00, got %.2f", result.ElevationDeg)
	}
	if tracker.GetMode() != ModeNightStow {
		t.Errorf("mode = %s, want night_stow", tracker.GetMode())
	}
}

func TestTracker_WindStowFromForecast(t *testing.T) {
	tracker, drive, _ := newTestTracker(t, athensConfig())
	tracker.weatherCache.Set(forecastWithGust(22))

	tracker.RunTrackingStep(context.Background())

	if tracker.GetMode() != ModeWindStow {
		t.Fatalf("mode = %s, want wind_stow", tracker.GetMode())
	}
	if len(drive.stows) != 1 || len(drive.targets) != 0 {
		t.Fatalf("expected one stow command, got %d stows and %d targets", len(drive.stows), len(drive.targets))
	}
	if drive.stows[0] != [2]float64{180, 90} {
		t.Errorf("stowed at %v, want the configured stow position", drive.stows[0])
	}

	// Gust between the resume and stow speeds keeps the tracker stowed
	tracker.weatherCache.Set(forecastWithGust(12))
	tracker.RunTrackingStep(context.Background())
	if tracker.GetMode() != ModeWindStow {
		t.Errorf("mode = %s, want wind_stow to hold", tracker.GetMode())
	}

	tracker.weatherCache.Set(forecastWithGust(5))
	tracker.RunTrackingStep(context.Background())
	if tracker.GetMode() != ModeTracking {
		t.Errorf("mode = %s, want tracking after the wind drops", tracker.GetMode())
	}
}

func TestTracker_RunWeatherCheck(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	if err := tracker.runWeatherCheck(); err != nil {
		t.Fatalf("runWeatherCheck failed: %v", err)
	}

	gust := tracker.currentGust(athensNoon)
	if gust == nil || *gust != 3.2 {
		t.Errorf("currentGust() = %v, want the wind speed fallback 3.2", gust)
	}
}

func TestTracker_RunWeatherCheckFailureKeepsCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.weatherClient.SetBaseURL(srv.URL)
	tracker.weatherCache.Set(forecastWithGust(8))

	err := tracker.runWeatherCheck()
	if !meteo.IsThrottled(err) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if gust := tracker.currentGust(athensNoon); gust == nil || *gust != 8 {
		t.Errorf("cached forecast should survive a failed refresh, got %v", gust)
	}
}

func TestTracker_CurrentGustWithoutForecast(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	if gust := tracker.currentGust(athensNoon); gust != nil {
		t.Errorf("expected nil gust without a forecast, got %v", *gust)
	}
}

func TestRunTrackingStep_CommandsDrive(t *testing.T) {
	tracker, drive, opened := newTestTracker(t, athensConfig())

	tracker.RunTrackingStep(context.Background())
	if len(drive.targets) != 1 {
		t.Fatalf("expected one target, got %d", len(drive.targets))
	}
	latest, _ := tracker.GetLatest()
	if drive.targets[0] != [2]float64{latest.AzimuthDeg, latest.ElevationDeg} {
		t.Errorf("target %v does not match the sample", drive.targets[0])
	}

	// Night stows at the configured position over the same connection
	tracker.now = func() time.Time { return athensNoon.Add(12 * time.Hour) }
	tracker.RunTrackingStep(context.Background())
	if len(drive.stows) != 1 {
		t.Fatalf("expected one stow, got %d", len(drive.stows))
	}
	if *opened != 1 {
		t.Errorf("drive opened %d times, want 1", *opened)
	}
}

func TestRunTrackingStep_ReconnectsAfterError(t *testing.T) {
	tracker, drive, opened := newTestTracker(t, athensConfig())

	drive.err = errors.New("modbus: exception '4' (server device failure)")
	tracker.RunTrackingStep(context.Background())

	if drive.closed != 1 {
		t.Errorf("failed drive should be closed, closed=%d", drive.closed)
	}
	if tracker.drive != nil {
		t.Error("failed drive should be dropped")
	}

	drive.err = nil
	tracker.RunTrackingStep(context.Background())
	if *opened != 2 {
		t.Errorf("expected a reconnect, opened=%d", *opened)
	}
	if len(drive.targets) != 1 {
		t.Errorf("expected one target after reconnect, got %d", len(drive.targets))
	}
}

func TestRunTrackingStep_OpenError(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.openDrive = func(*Config) (Drive, error) {
		return nil, errors.New("connection refused")
	}

	tracker.RunTrackingStep(context.Background())

	if tracker.drive != nil {
		t.Error("drive should stay nil after a failed connect")
	}
	if _, ok := tracker.GetLatest(); !ok {
		t.Error("sample should be recorded even if the drive is unreachable")
	}
}

func TestRunTrackingStep_NoDriveConfigured(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.openDrive = dialDrive

	tracker.RunTrackingStep(context.Background())

	if tracker.drive != nil {
		t.Error("no drive should be opened without an address or serial device")
	}
}

func TestRunTrackingStep_DryRun(t *testing.T) {
	config := athensConfig()
	config.DryRun = true
	tracker, drive, opened := newTestTracker(t, config)

	tracker.RunTrackingStep(context.Background())

	if *opened != 0 || len(drive.targets) != 0 {
		t.Errorf("dry run should not touch the drive: opened=%d targets=%d", *opened, len(drive.targets))
	}
	if tracker.samples.Len() != 1 {
		t.Errorf("dry run should still record samples, got %d", tracker.samples.Len())
	}
}

func TestRunTrackingStep_CancelledContext(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker.RunTrackingStep(ctx)

	if _, ok := tracker.GetLatest(); ok {
		t.Error("cancelled step should not sample")
	}
}

func collectSamples(tracker *Tracker, from time.Time, n int) {
	for i := range n {
		tracker.Sample(from.Add(time.Duration(i) * time.Minute))
	}
}

func TestRunSamplePersist_SavesAndClears(t *testing.T) {
	config := athensConfig()
	config.DeviceID = 7
	tracker, _, _ := newTestTracker(t, config)
	tracker.store = newTestStore(t)

	collectSamples(tracker, athensNoon, 15)
	tracker.Sample(athensNoon.Add(16 * time.Minute)) // next period
	tracker.now = func() time.Time { return athensNoon.Add(15*time.Minute + 30*time.Second) }

	if err := tracker.runSamplePersist(context.Background()); err != nil {
		t.Fatalf("runSamplePersist failed: %v", err)
	}

	summaries, err := tracker.store.LoadSummaries(context.Background(), athensNoon)
	if err != nil {
		t.Fatalf("LoadSummaries failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	s := summaries[0]
	if !s.Timestamp.Equal(athensNoon.Add(15 * time.Minute)) {
		t.Errorf("summary timestamp = %v, want period end", s.Timestamp)
	}
	if s.SampleCount != 15 || s.Mode != ModeTracking || s.TrackingFraction != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.MaxElevationDeg < 74 || s.MaxElevationDeg > 75 {
		t.Errorf("max elevation = %.2f, want ~74.4", s.MaxElevationDeg)
	}

	var deviceID int
	var session string
	err = tracker.store.db.QueryRow(`SELECT device_id, session_id FROM sun_summaries`).Scan(&deviceID, &session)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if deviceID != 7 || session != tracker.SessionID() {
		t.Errorf("row tagged (%d, %s), want (7, %s)", deviceID, session, tracker.SessionID())
	}

	if tracker.samples.Len() != 1 {
		t.Errorf("only the next period's sample should remain, got %d", tracker.samples.Len())
	}
}

func TestRunSamplePersist_KeepsSamplesOnFailure(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.store = newTestStore(t)
	tracker.store.Close()

	collectSamples(tracker, athensNoon, 5)
	tracker.now = func() time.Time { return athensNoon.Add(15 * time.Minute) }

	if err := tracker.runSamplePersist(context.Background()); err == nil {
		t.Fatal("expected save to fail on a closed store")
	}
	if tracker.samples.Len() != 5 {
		t.Errorf("samples should be kept for retry, got %d", tracker.samples.Len())
	}
}

func TestRunSamplePersist_WithoutStore(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	collectSamples(tracker, athensNoon, 5)
	tracker.now = func() time.Time { return athensNoon.Add(15 * time.Minute) }

	if err := tracker.runSamplePersist(context.Background()); err != nil {
		t.Fatalf("runSamplePersist failed: %v", err)
	}
	if tracker.samples.Len() != 0 {
		t.Errorf("samples should be cleared after logging, got %d", tracker.samples.Len())
	}
}

func TestRunSamplePersist_DryRun(t *testing.T) {
	config := athensConfig()
	config.DryRun = true
	tracker, _, _ := newTestTracker(t, config)
	tracker.store = newTestStore(t)

	collectSamples(tracker, athensNoon, 5)
	tracker.now = func() time.Time { return athensNoon.Add(15 * time.Minute) }

	if err := tracker.runSamplePersist(context.Background()); err != nil {
		t.Fatalf("runSamplePersist failed: %v", err)
	}

	summaries, err := tracker.store.LoadSummaries(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("LoadSummaries failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("dry run should not insert, found %d rows", len(summaries))
	}
	if tracker.samples.Len() != 0 {
		t.Errorf("dry run should clear the buffer, got %d", tracker.samples.Len())
	}
}

func TestRunSamplePersist_NoSamples(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.store = newTestStore(t)

	if err := tracker.runSamplePersist(context.Background()); err != nil {
		t.Fatalf("runSamplePersist failed: %v", err)
	}
	summaries, _ := tracker.store.LoadSummaries(context.Background(), time.Time{})
	if len(summaries) != 0 {
		t.Errorf("empty period should not be stored, found %d rows", len(summaries))
	}
}

func TestGetInitialDelay(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		now      time.Time
		want     time.Duration
	}{
		{
			name:     "on the hour",
			interval: 15 * time.Minute,
			now:      time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC),
			want:     0,
		},
		{
			name:     "inside the first quarter",
			interval: 15 * time.Minute,
			now:      time.Date(2024, 6, 21, 10, 7, 0, 0, time.UTC),
			want:     8 * time.Minute,
		},
		{
			name:     "on a quarter boundary",
			interval: 15 * time.Minute,
			now:      time.Date(2024, 6, 21, 10, 45, 0, 0, time.UTC),
			want:     0,
		},
		{
			name:     "last quarter",
			interval: 15 * time.Minute,
			now:      time.Date(2024, 6, 21, 10, 50, 30, 0, time.UTC),
			want:     9*time.Minute + 30*time.Second,
		},
		{
			name:     "hourly",
			interval: time.Hour,
			now:      time.Date(2024, 6, 21, 10, 20, 0, 0, time.UTC),
			want:     40 * time.Minute,
		},
	}

	tracker := NewTracker(DefaultConfig(), log.New(io.Discard, "", 0))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tracker.getInitialDelay(tt.now, tt.interval); got != tt.want {
				t.Errorf("Expected delay %v, got %v", tt.want, got)
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTracker_StartStop(t *testing.T) {
	config := athensConfig()
	config.DatabaseDriver = DriverSQLite
	config.DatabaseConnString = ":memory:"
	tracker, drive, _ := newTestTracker(t, config)

	done := make(chan error, 1)
	go func() {
		done <- tracker.Start(context.Background(), false)
	}()

	waitFor(t, func() bool {
		_, ok := tracker.GetLatest()
		return tracker.IsRunning() && ok
	})

	if err := tracker.Start(context.Background(), false); err == nil {
		t.Error("expected error on double start")
	}
	if !tracker.GetStatus().StoreEnabled {
		t.Error("store should be open while running")
	}

	tracker.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if tracker.IsRunning() {
		t.Error("tracker should not be running after Stop")
	}
	if tracker.GetStatus().StoreEnabled {
		t.Error("store should be closed after Stop")
	}
	if drive.closed != 1 {
		t.Errorf("drive should be closed on shutdown, closed=%d", drive.closed)
	}
}

func TestTracker_StartContextCancel(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tracker.Start(ctx, false)
	}()

	waitFor(t, tracker.IsRunning)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if tracker.IsRunning() {
		t.Error("tracker should not be running after cancel")
	}
}

func TestTracker_SetConfigMovesSite(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	before := tracker.Sample(athensNoon)

	config := DefaultConfig() // Riga
	tracker.SetConfig(config)
	after := tracker.Sample(athensNoon)

	if tracker.GetConfig() != config {
		t.Error("GetConfig should return the new config")
	}
	if after.ElevationDeg >= before.ElevationDeg {
		t.Errorf("Riga should see a lower sun than Athens: %.2f vs %.2f", after.ElevationDeg, before.ElevationDeg)
	}
}

func TestTracker_StopReleasesLockBeforeWebServer(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	tracker.webServer = NewWebServer(tracker, 18080)
	tracker.mu.Lock()
	tracker.isRunning = true
	tracker.mu.Unlock()

	// Handlers read tracker state while the web server drains
	lockFree := make(chan bool, 1)
	go func() {
		<-tracker.webServer.done
		ok := tracker.mu.TryRLock()
		if ok {
			tracker.GetConfig()
			tracker.mu.RUnlock()
		}
		lockFree <- ok
	}()

	tracker.Stop()

	select {
	case ok := <-lockFree:
		if !ok {
			t.Error("tracker lock held while the web server shuts down")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("web server was not stopped")
	}
	if tracker.IsRunning() {
		t.Error("tracker should not be running after Stop")
	}
}

func TestTracker_SetConfigAppliesWeatherSettings(t *testing.T) {
	tracker, _, _ := newTestTracker(t, athensConfig())
	client := tracker.getWeatherClient()

	same := athensConfig()
	tracker.SetConfig(same)
	if tracker.getWeatherClient() != client {
		t.Error("weather client should be kept when the user agent is unchanged")
	}

	changed := athensConfig()
	changed.UserAgent = "SolarTracker/2.0 (ops@example.com)"
	tracker.SetConfig(changed)
	if tracker.getWeatherClient() == client {
		t.Error("weather client should be rebuilt for a new user agent")
	}

	tracker.weatherCache.Set(forecastWithGust(9))
	if gust := tracker.currentGust(athensNoon); gust == nil {
		t.Fatal("fresh forecast should be cached")
	}

	short := athensConfig()
	short.UserAgent = changed.UserAgent
	short.WeatherUpdateInterval = time.Millisecond
	tracker.SetConfig(short)
	time.Sleep(5 * time.Millisecond)

	if gust := tracker.currentGust(athensNoon); gust != nil {
		t.Errorf("forecast should expire under the new update interval, got %v", *gust)
	}
}
