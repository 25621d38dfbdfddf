package tracker

import (
	"math"
	"sync"
	"time"
)

// SunSample is one tracking step.
type SunSample struct {
	elevationDeg float64
	azimuthDeg   float64
	sunrise      float64
	sunset       float64
	mode         Mode
	ts           time.Time
}

// SunSamples is a thread-safe collection of tracking samples.
type SunSamples struct {
	mu      sync.Mutex
	samples []SunSample
}

// AddSample appends a sample.
func (d *SunSamples) AddSample(elevationDeg, azimuthDeg, sunrise, sunset float64, mode Mode, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, SunSample{
		elevationDeg: elevationDeg,
		azimuthDeg:   azimuthDeg,
		sunrise:      sunrise,
		sunset:       sunset,
		mode:         mode,
		ts:           ts,
	})
}

// SunSummary aggregates the samples of one persist period.
type SunSummary struct {
	Timestamp        time.Time `json:"timestamp"`
	SampleCount      int       `json:"sample_count"`
	MeanElevationDeg float64   `json:"mean_elevation_deg"`
	MaxElevationDeg  float64   `json:"max_elevation_deg"`
	LastAzimuthDeg   float64   `json:"last_azimuth_deg"`
	Sunrise          float64   `json:"sunrise"`
	Sunset           float64   `json:"sunset"`
	TrackingFraction float64   `json:"tracking_fraction"`
	Mode             Mode      `json:"mode"`
}

// Summarize folds samples with timestamp <= cutoff into a summary stamped
// with cutoff. NaN elevations are skipped in the mean and max but still
// counted. Samples are preserved; call ClearBefore once the summary is stored.
func (d *SunSamples) Summarize(cutoff time.Time) SunSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := SunSummary{
		Timestamp:        cutoff,
		MeanElevationDeg: math.NaN(),
		MaxElevationDeg:  math.NaN(),
		LastAzimuthDeg:   math.NaN(),
		Sunrise:          math.NaN(),
		Sunset:           math.NaN(),
	}

	var elevSum float64
	var elevCount, tracking int
	modeCounts := make(map[Mode]int)

	for _, sample := range d.samples {
		if sample.ts.After(cutoff) {
			continue
		}

		result.SampleCount++
		modeCounts[sample.mode]++
		if sample.mode == ModeTracking {
			tracking++
		}

		if !math.IsNaN(sample.elevationDeg) {
			elevSum += sample.elevationDeg
			elevCount++
			if math.IsNaN(result.MaxElevationDeg) || sample.elevationDeg > result.MaxElevationDeg {
				result.MaxElevationDeg = sample.elevationDeg
			}
		}

		// Keep the last values seen
		result.LastAzimuthDeg = sample.azimuthDeg
		result.Sunrise = sample.sunrise
		result.Sunset = sample.sunset
	}

	if result.SampleCount == 0 {
		return result
	}

	if elevCount > 0 {
		result.MeanElevationDeg = elevSum / float64(elevCount)
	}
	result.TrackingFraction = float64(tracking) / float64(result.SampleCount)

	// Ties go to the stow modes so a summary never hides a stow.
	best := 0
	for _, m := range []Mode{ModeWindStow, ModeNightStow, ModeTracking} {
		if modeCounts[m] > best {
			best = modeCounts[m]
			result.Mode = m
		}
	}

	return result
}

// ClearBefore removes all samples with timestamp <= cutoff.
// Should only be called after the summary for that period was stored.
func (d *SunSamples) ClearBefore(cutoff time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filtered := make([]SunSample, 0, len(d.samples))
	for _, sample := range d.samples {
		if sample.ts.After(cutoff) {
			filtered = append(filtered, sample)
		}
	}
	d.samples = filtered
}

// Len returns the number of buffered samples.
func (d *SunSamples) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}
