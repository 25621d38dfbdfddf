package tracker

import (
	"math"
	"testing"
	"time"
)

func TestSunSamples_SummarizeWithPeriodBoundary(t *testing.T) {
	samples := &SunSamples{}
	baseTime := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)

	// 12:00 to 12:04 in the first period, 12:05 on the boundary, 12:06 after it
	for i := range 5 {
		ts := baseTime.Add(time.Duration(i) * time.Minute)
		samples.AddSample(40+float64(i), 180+float64(i), 4.5, 22.2, ModeTracking, ts)
	}
	samples.AddSample(50, 190, 4.6, 22.3, ModeWindStow, baseTime.Add(5*time.Minute))
	samples.AddSample(99, 200, 4.7, 22.4, ModeTracking, baseTime.Add(6*time.Minute))

	cutoff := baseTime.Add(5 * time.Minute)
	summary := samples.Summarize(cutoff)

	if summary.SampleCount != 6 {
		t.Fatalf("Expected 6 samples summarized, got %d", summary.SampleCount)
	}
	if !summary.Timestamp.Equal(cutoff) {
		t.Errorf("Expected timestamp %v, got %v", cutoff, summary.Timestamp)
	}

	expectedMean := (40.0 + 41 + 42 + 43 + 44 + 50) / 6
	if math.Abs(summary.MeanElevationDeg-expectedMean) > 1e-9 {
		t.Errorf("Expected mean elevation %.3f, got %.3f", expectedMean, summary.MeanElevationDeg)
	}
	if summary.MaxElevationDeg != 50 {
		t.Errorf("Expected max elevation 50, got %.2f", summary.MaxElevationDeg)
	}
	if summary.LastAzimuthDeg != 190 || summary.Sunrise != 4.6 || summary.Sunset != 22.3 {
		t.Errorf("Expected last values from the boundary sample, got az %.1f rise %.1f set %.1f",
			summary.LastAzimuthDeg, summary.Sunrise, summary.Sunset)
	}
	if math.Abs(summary.TrackingFraction-5.0/6) > 1e-9 {
		t.Errorf("Expected tracking fraction 5/6, got %.3f", summary.TrackingFraction)
	}
	if summary.Mode != ModeTracking {
		t.Errorf("Expected dominant mode tracking, got %s", summary.Mode)
	}

	if samples.Len() != 7 {
		t.Errorf("Summarize should not remove samples, have %d", samples.Len())
	}
}

func TestSunSamples_SummarizeEmpty(t *testing.T) {
	samples := &SunSamples{}
	summary := samples.Summarize(time.Now())

	if summary.SampleCount != 0 {
		t.Errorf("Expected no samples, got %d", summary.SampleCount)
	}
	if !math.IsNaN(summary.MeanElevationDeg) || !math.IsNaN(summary.MaxElevationDeg) || !math.IsNaN(summary.LastAzimuthDeg) {
		t.Errorf("Expected NaN aggregates for an empty buffer, got %+v", summary)
	}
	if summary.Mode != "" {
		t.Errorf("Expected empty mode, got %q", summary.Mode)
	}
}

func TestSunSamples_SummarizeSkipsNaN(t *testing.T) {
	samples := &SunSamples{}
	baseTime := time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC)

	samples.AddSample(math.NaN(), math.NaN(), math.NaN(), math.NaN(), ModeNightStow, baseTime)
	samples.AddSample(10, 170, 9, 15, ModeTracking, baseTime.Add(time.Minute))
	samples.AddSample(math.NaN(), math.NaN(), math.NaN(), math.NaN(), ModeNightStow, baseTime.Add(2*time.Minute))

	summary := samples.Summarize(baseTime.Add(time.Hour))
	if summary.SampleCount != 3 {
		t.Errorf("NaN samples should still be counted, got %d", summary.SampleCount)
	}
	if summary.MeanElevationDeg != 10 || summary.MaxElevationDeg != 10 {
		t.Errorf("Expected mean and max 10, got %.2f and %.2f", summary.MeanElevationDeg, summary.MaxElevationDeg)
	}
	if !math.IsNaN(summary.LastAzimuthDeg) {
		t.Errorf("Last azimuth should come from the last sample, got %.2f", summary.LastAzimuthDeg)
	}
	if summary.Mode != ModeNightStow {
		t.Errorf("Expected night_stow, got %s", summary.Mode)
	}

	samples = &SunSamples{}
	samples.AddSample(math.NaN(), 0, 0, 0, ModeNightStow, baseTime)
	summary = samples.Summarize(baseTime)
	if !math.IsNaN(summary.MeanElevationDeg) || !math.IsNaN(summary.MaxElevationDeg) {
		t.Errorf("All-NaN elevations should give NaN mean and max, got %+v", summary)
	}
}

func TestSunSamples_ModeTieGoesToStow(t *testing.T) {
	baseTime := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		modes []Mode
		want  Mode
	}{
		{name: "tracking vs night", modes: []Mode{ModeTracking, ModeNightStow}, want: ModeNightStow},
		{name: "night vs wind", modes: []Mode{ModeNightStow, ModeWindStow}, want: ModeWindStow},
		{name: "three way", modes: []Mode{ModeTracking, ModeWindStow, ModeNightStow}, want: ModeWindStow},
		{name: "majority wins", modes: []Mode{ModeTracking, ModeTracking, ModeWindStow}, want: ModeTracking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := &SunSamples{}
			for i, m := range tt.modes {
				samples.AddSample(20, 120, 6, 18, m, baseTime.Add(time.Duration(i)*time.Minute))
			}
			if got := samples.Summarize(baseTime.Add(time.Hour)).Mode; got != tt.want {
				t.Errorf("Mode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSunSamples_ClearBefore(t *testing.T) {
	samples := &SunSamples{}
	baseTime := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)

	for i := range 10 {
		samples.AddSample(30, 180, 4, 22, ModeTracking, baseTime.Add(time.Duration(i)*time.Minute))
	}

	// Samples at or before 12:04 are removed
	samples.ClearBefore(baseTime.Add(4 * time.Minute))
	if samples.Len() != 5 {
		t.Fatalf("Expected 5 samples remaining, got %d", samples.Len())
	}

	summary := samples.Summarize(baseTime.Add(4 * time.Minute))
	if summary.SampleCount != 0 {
		t.Errorf("Cleared period should have no samples, got %d", summary.SampleCount)
	}

	samples.ClearBefore(baseTime.Add(time.Hour))
	if samples.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d", samples.Len())
	}
}
