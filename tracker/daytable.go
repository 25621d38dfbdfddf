package tracker

import (
	"time"

	"github.com/devskill-org/solar-tracker/sundata"
)

// TableRow is one step of a day's sun path.
type TableRow struct {
	Time   time.Time
	Result sundata.Result
}

// MinTableStep is the finest step a day table is built with.
const MinTableStep = time.Minute

// BuildDayTable sweeps the model's local day containing date. A non-positive
// step defaults to one hour; steps below MinTableStep are raised to it. The
// model is copied.
func BuildDayTable(model sundata.Model, date time.Time, step time.Duration) []TableRow {
	if step <= 0 {
		step = time.Hour
	} else if step < MinTableStep {
		step = MinTableStep
	}

	loc := model.Location()
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)

	rows := make([]TableRow, 0, int(24*time.Hour/step))
	for ts := start; ts.Before(end); ts = ts.Add(step) {
		model.SetTimeFrom(ts)
		rows = append(rows, TableRow{Time: ts, Result: model.Calculate()})
	}
	return rows
}

// DayTable returns the sun path for the tracker's site on date.
func (t *Tracker) DayTable(date time.Time, step time.Duration) []TableRow {
	t.mu.RLock()
	model := t.model
	t.mu.RUnlock()
	return BuildDayTable(model, date, step)
}
