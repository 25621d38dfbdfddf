package reference

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/devskill-org/solar-tracker/sundata"
)

func TestWrapDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{10, 10},
		{-10, -10},
		{350, -10},
		{-350, 10},
		{540, -180},
		{725, 5},
	}

	for _, tt := range tests {
		if got := wrapDegrees(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("wrapDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPositionCompassAzimuth(t *testing.T) {
	// Athens, 21 June 2024 at 10:00 UTC: sun high in the south-south-east.
	elev, az := Position(time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC), 37.98, 23.73)

	if math.Abs(elev-74.34) > 0.2 {
		t.Errorf("elevation = %.3f, want about 74.34", elev)
	}
	if math.Abs(az-156.24) > 0.5 {
		t.Errorf("azimuth = %.3f, want about 156.24", az)
	}
}

func TestDeviationAgainstModel(t *testing.T) {
	m := sundata.New(37.98, 23.73, 2)
	m.SetTime(2024, 6, 21, 12, 0, 0)
	res := m.Calculate()

	dElev, dAz := Deviation(res, time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC), 37.98, 23.73)
	if math.Abs(dElev) > 0.5 {
		t.Errorf("elevation deviation = %.3f, want within 0.5", dElev)
	}
	if math.Abs(dAz) > 1 {
		t.Errorf("azimuth deviation = %.3f, want within 1", dAz)
	}
}

func TestBuildReport(t *testing.T) {
	m := sundata.New(56.9496, 24.1052, 2)
	date := time.Date(2024, 6, 21, 15, 30, 0, 0, time.UTC)

	report := BuildReport(m, date, time.Hour)

	if len(report.Samples)+report.Skipped != 24 {
		t.Fatalf("samples %d + skipped %d, want 24 steps", len(report.Samples), report.Skipped)
	}
	if len(report.Samples) < 15 || len(report.Samples) > 20 {
		t.Errorf("expected a long midsummer day, got %d daylight samples", len(report.Samples))
	}
	if y, mo, d := report.Date.Date(); y != 2024 || mo != time.June || d != 21 || report.Date.Hour() != 0 {
		t.Errorf("report date = %v, want local midnight of 2024-06-21", report.Date)
	}
	if report.Elevation.Mean > 0.5 || report.Elevation.Max > 1 {
		t.Errorf("elevation stats too large: %+v", report.Elevation)
	}
	if report.Azimuth.Mean > 0.5 || report.Azimuth.Max > 1 {
		t.Errorf("azimuth stats too large: %+v", report.Azimuth)
	}
	if report.Elevation.StdDev < 0 || math.IsNaN(report.Elevation.StdDev) {
		t.Errorf("unexpected elevation std dev %v", report.Elevation.StdDev)
	}
}

func TestBuildReportSubMinuteStep(t *testing.T) {
	m := sundata.New(56.9496, 24.1052, 2)
	date := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	report := BuildReport(m, date, time.Nanosecond)
	if got := len(report.Samples) + report.Skipped; got != 24*60 {
		t.Errorf("expected %d steps at the minimum step, got %d", 24*60, got)
	}
}

func TestBuildReportLeavesModelUntouched(t *testing.T) {
	m := sundata.New(56.9496, 24.1052, 2)
	m.SetTime(2024, 3, 1, 9, 0, 0)
	before := m.Calculate()

	BuildReport(m, time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), 30*time.Minute)

	if m.Last() != before {
		t.Error("BuildReport should work on a copy of the model")
	}
}

func TestBuildReportPolarNight(t *testing.T) {
	m := sundata.New(80, 15, 1)
	report := BuildReport(m, time.Date(2023, 12, 21, 0, 0, 0, 0, time.UTC), time.Hour)

	if len(report.Samples) != 0 {
		t.Errorf("expected no daylight samples, got %d", len(report.Samples))
	}
	if !math.IsNaN(report.Elevation.Mean) || !math.IsNaN(report.Azimuth.Max) {
		t.Errorf("empty report stats should be NaN, got %+v %+v", report.Elevation, report.Azimuth)
	}
}

func TestLeapRuleDivergence(t *testing.T) {
	if got := LeapRuleDivergence(1901, 2099); len(got) != 0 {
		t.Errorf("expected no divergence in 1901-2099, got %v", got)
	}

	want := []int{1800, 1900, 2100, 2200}
	if got := LeapRuleDivergence(1800, 2200); !reflect.DeepEqual(got, want) {
		t.Errorf("LeapRuleDivergence(1800, 2200) = %v, want %v", got, want)
	}
}
