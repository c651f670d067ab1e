package logbook

import (
	"time"

	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/period"
)

// CalendarCell is one period on the calendar grid between a challenge's
// creation and now.
type CalendarCell struct {
	Date time.Time `json:"date"`
	// PeriodNumber is the day of month in normal mode, the minute of the
	// hour in accelerated mode.
	PeriodNumber int    `json:"period_number"`
	MonthYear    string `json:"month_year"`
	HasLog       bool   `json:"has_log"`
	IsToday      bool   `json:"is_today"`
}

// CalendarWithDates expands the challenge's sparse log list into one cell
// per period from the start of createdAt's period through the current
// period, inclusive. A zero createdAt yields nil. The sequence length is
// independent of the challenge's target days; overrun is the consumer's
// concern.
func (e *Engine) CalendarWithDates(challengeID int64, createdAt time.Time) []CalendarCell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calendar(challengeID, createdAt)
}

// DensePeriodSequence is the 0/1 view of the same axis: 1 where a
// completed entry occupies the period, 0 otherwise. Derived from the
// calendar cells so the two projections cannot drift.
func (e *Engine) DensePeriodSequence(challengeID int64, createdAt time.Time) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cells := e.calendar(challengeID, createdAt)
	if cells == nil {
		return nil
	}
	seq := make([]int, len(cells))
	for i, c := range cells {
		if c.HasLog {
			seq[i] = 1
		}
	}
	return seq
}

func (e *Engine) calendar(challengeID int64, createdAt time.Time) []CalendarCell {
	if createdAt.IsZero() {
		return nil
	}

	var logs []model.LogEntry
	if i := e.groupIndex(challengeID); i >= 0 {
		logs = e.groups[i].Logs
	}

	// Keys of completed entries; duplicates collapse harmlessly.
	logged := make(map[string]struct{}, len(logs))
	for _, entry := range logs {
		if entry.Status {
			logged[period.Key(entry.Date, e.mode)] = struct{}{}
		}
	}

	now := e.clock()
	todayKey := period.Key(now, e.mode)
	end := period.Start(now, e.mode)

	var cells []CalendarCell
	for p := period.Start(createdAt, e.mode); !p.After(end); p = period.Next(p, e.mode) {
		key := period.Key(p, e.mode)
		_, hasLog := logged[key]

		num := p.Day()
		if e.mode == period.ModeAccelerated {
			num = p.Minute()
		}

		cells = append(cells, CalendarCell{
			Date:         p,
			PeriodNumber: num,
			MonthYear:    p.Format("January 2006"),
			HasLog:       hasLog,
			IsToday:      key == todayKey,
		})
	}
	return cells
}
