package tracker

import (
	"math"

	"github.com/devskill-org/solar-tracker/sundata"
)

// Mode is what the tracker asks the drive to do.
type Mode string

const (
	ModeTracking  Mode = "tracking"
	ModeNightStow Mode = "night_stow"
	ModeWindStow  Mode = "wind_stow"
)

// IsStow reports whether the mode parks the tracker.
func (m Mode) IsStow() bool {
	return m == ModeNightStow || m == ModeWindStow
}

// DecideMode picks the tracker mode for one sample. gust is the current wind
// gust in m/s, nil when no forecast is available. Wind stow is sticky: once
// entered it holds until the gust falls below WindResumeSpeed, and an unknown
// gust keeps whatever wind state prev carried.
func DecideMode(result sundata.Result, gust *float64, prev Mode, cfg *Config) Mode {
	if math.IsNaN(result.ElevationDeg) {
		return ModeNightStow
	}

	windStowed := prev == ModeWindStow
	if gust != nil {
		if windStowed {
			windStowed = *gust >= cfg.WindResumeSpeed
		} else {
			windStowed = *gust >= cfg.WindStowSpeed
		}
	}
	if windStowed {
		return ModeWindStow
	}

	if result.ElevationDeg < cfg.MinTrackingElevation {
		return ModeNightStow
	}
	return ModeTracking
}
