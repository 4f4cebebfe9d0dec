package schedule

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

// Schedule places every item on a concrete date-time inside the window,
// honoring each platform's publishing constraint. Deterministic given the
// items, the window and the supplied randomness source; rng may be nil, in
// which case a time-seeded source is used.
//
// Distribution rule per platform: fill the earliest week that has no post
// yet; once every week holds at least one, place into the week with the
// fewest posts (earliest week wins ties). This spreads content across the
// window before any week doubles up.
func Schedule(items []content.WithSEO, w Window, rng *rand.Rand) ([]content.Scheduled, error) {
	if w.Start.IsZero() || w.End.Before(w.Start) {
		return nil, fmt.Errorf("invalid scheduling window [%s, %s]", w.Start, w.End)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	parts, order := partition(items)
	weeks := w.Weeks()

	var out []content.Scheduled
	for _, platform := range order {
		cs := ConstraintFor(platform)
		counts := make([]int, weeks)
		used := make([]map[time.Weekday]bool, weeks)
		lastOff := make([]int, weeks)
		for i := range used {
			used[i] = make(map[time.Weekday]bool)
			lastOff[i] = -1
		}
		for _, it := range parts[platform] {
			wk := pickWeek(counts)
			off := pickDayOffset(w, wk, cs, used[wk], lastOff[wk])
			day := w.Start.AddDate(0, 0, wk*7+off)

			hour := cs.HourStart + rng.Intn(cs.HourEnd-cs.HourStart)
			minute := rng.Intn(60)
			at := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)

			used[wk][day.Weekday()] = true
			if off > lastOff[wk] {
				lastOff[wk] = off
			}
			counts[wk]++
			out = append(out, content.Scheduled{WithSEO: it, ScheduledAt: at})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

// Fallback ignores platform constraints entirely: items are spread evenly
// across the window's days with a rotating business-hours slot. Used when
// the primary path fails; always terminates and always produces a
// plausible calendar even for malformed input.
func Fallback(items []content.WithSEO, w Window) []content.Scheduled {
	items = dedupe(items)
	n := len(items)
	if n == 0 {
		return nil
	}
	days := w.Days()
	out := make([]content.Scheduled, 0, n)
	for i, it := range items {
		day := w.Start.AddDate(0, 0, i*days/n)
		hour := 9 + i%8
		out = append(out, content.Scheduled{
			WithSEO:     it,
			ScheduledAt: day.Add(time.Duration(hour) * time.Hour),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// partition groups items by platform, preserving relative order within each
// group and the order in which platforms first appear. Items whose ID was
// already seen are dropped: a caller supplying the same item twice must not
// get it scheduled twice.
func partition(items []content.WithSEO) (map[string][]content.WithSEO, []string) {
	parts := make(map[string][]content.WithSEO)
	var order []string
	seen := make(map[string]bool)
	for _, it := range items {
		if it.ID != "" {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
		}
		if _, ok := parts[it.Platform]; !ok {
			order = append(order, it.Platform)
		}
		parts[it.Platform] = append(parts[it.Platform], it)
	}
	return parts, order
}

func dedupe(items []content.WithSEO) []content.WithSEO {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it.ID != "" {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
		}
		out = append(out, it)
	}
	return out
}

// pickWeek returns the earliest week with no posts yet, or the week with
// the fewest posts when every week already has one (earliest wins ties).
func pickWeek(counts []int) int {
	best := 0
	for i, c := range counts {
		if c == 0 {
			return i
		}
		if c < counts[best] {
			best = i
		}
	}
	return best
}

// pickDayOffset chooses a day offset (0..6) inside week wk. First choice is
// the earliest in-window day whose weekday the constraint allows and that
// is not yet used this week. When the week is exhausted (or truncated past
// every valid day), it wraps to the next valid weekday after the latest
// used offset, reusing days rather than leaving the item unscheduled.
func pickDayOffset(w Window, wk int, cs Constraint, used map[time.Weekday]bool, lastOff int) int {
	weekLen := w.Days() - wk*7
	if weekLen > 7 {
		weekLen = 7
	}
	for off := 0; off < weekLen; off++ {
		wd := w.Start.AddDate(0, 0, wk*7+off).Weekday()
		if cs.allowsDay(wd) && !used[wd] {
			return off
		}
	}
	for i := 1; i <= 7; i++ {
		off := (lastOff + i) % 7
		wd := w.Start.AddDate(0, 0, wk*7+off).Weekday()
		if cs.allowsDay(wd) {
			return off
		}
	}
	return 0
}
