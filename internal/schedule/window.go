package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Window is the concrete date range a batch of items is distributed across.
// Start and End are dates at midnight in the anchor's location; End is the
// last day included in the window.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TimeFrames lists the selectors DeriveWindow accepts.
var TimeFrames = []string{"day", "week", "month", "year"}

// DeriveWindow expands an anchor date and a coarse time-frame selector into
// a concrete window. The derivation only depends on (anchor, timeFrame), so
// computing it twice always yields the same range: a month window covers the
// whole calendar month of the anchor no matter which day was supplied, a
// week window the anchor's Monday through Sunday.
func DeriveWindow(anchor time.Time, timeFrame string) (Window, error) {
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())
	switch strings.ToLower(strings.TrimSpace(timeFrame)) {
	case "day":
		return Window{Start: day, End: day}, nil
	case "week":
		// ISO week: Monday start.
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case "month":
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return Window{Start: start, End: start.AddDate(0, 1, -1)}, nil
	case "year":
		start := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		return Window{Start: start, End: time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, day.Location())}, nil
	default:
		return Window{}, fmt.Errorf("unknown time frame %q (want one of %s)", timeFrame, strings.Join(TimeFrames, ", "))
	}
}

// Days returns the number of calendar days the window spans, at least 1.
func (w Window) Days() int {
	d := int(w.End.Sub(w.Start).Hours()/24) + 1
	if d < 1 {
		return 1
	}
	return d
}

// Weeks returns the number of contiguous 7-day weeks the window partitions
// into. The first week starts at the window start; the last is truncated.
func (w Window) Weeks() int {
	return (w.Days() + 6) / 7
}
