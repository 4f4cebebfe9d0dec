package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

func item(id, platform string) content.WithSEO {
	return content.WithSEO{Elaborated: content.Elaborated{Idea: content.Idea{ID: id, Platform: platform, Title: "title " + id}}}
}

// twoWeeks starts on Monday 2024-03-04.
func twoWeeks() Window {
	return Window{Start: date(2024, time.March, 4), End: date(2024, time.March, 17)}
}

func weekIndex(w Window, at time.Time) int {
	return int(at.Sub(w.Start).Hours()) / 24 / 7
}

func TestScheduleFillsEmptyWeeksFirst(t *testing.T) {
	w := twoWeeks()
	items := []content.WithSEO{
		item("a", "blog"), item("b", "blog"), item("c", "blog"),
		item("d", "blog"), item("e", "blog"), item("f", "blog"), item("g", "blog"),
	}
	got, err := Schedule(items, w, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 scheduled items, got %d", len(got))
	}
	perWeek := make(map[int]int)
	for _, s := range got {
		perWeek[weekIndex(w, s.ScheduledAt)]++
	}
	// 7 items over 2 weeks: no week may be left empty while another doubles
	// up, so the split must be 4/3.
	if perWeek[0] != 4 || perWeek[1] != 3 {
		t.Fatalf("expected 4/3 split across weeks, got %v", perWeek)
	}
}

func TestScheduleOneItemPerWeekWhenSparse(t *testing.T) {
	w, err := DeriveWindow(date(2024, time.March, 15), "month")
	if err != nil {
		t.Fatalf("DeriveWindow: %v", err)
	}
	items := []content.WithSEO{item("a", "twitter"), item("b", "twitter"), item("c", "twitter")}
	got, err := Schedule(items, w, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	perWeek := make(map[int]int)
	for _, s := range got {
		perWeek[weekIndex(w, s.ScheduledAt)]++
	}
	for wk, n := range perWeek {
		if n > 1 {
			t.Fatalf("week %d got %d items while other weeks are empty", wk, n)
		}
	}
}

func TestScheduleHonorsPlatformConstraint(t *testing.T) {
	w := twoWeeks()
	items := []content.WithSEO{
		item("a", "linkedin"), item("b", "linkedin"), item("c", "linkedin"), item("d", "linkedin"),
	}
	got, err := Schedule(items, w, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	cs := ConstraintFor("linkedin")
	for _, s := range got {
		if !cs.allowsDay(s.ScheduledAt.Weekday()) {
			t.Fatalf("item %s scheduled on %s, not a valid linkedin day", s.ID, s.ScheduledAt.Weekday())
		}
		if h := s.ScheduledAt.Hour(); h < cs.HourStart || h >= cs.HourEnd {
			t.Fatalf("item %s scheduled at hour %d, outside [%d, %d)", s.ID, h, cs.HourStart, cs.HourEnd)
		}
		if s.ScheduledAt.Before(w.Start) || s.ScheduledAt.After(w.End.AddDate(0, 0, 1)) {
			t.Fatalf("item %s scheduled outside window: %s", s.ID, s.ScheduledAt)
		}
	}
}

func TestSchedulePrefersDistinctDaysWithinWeek(t *testing.T) {
	// Two blog posts in one week must land on both valid days (Mon, Thu)
	// before any day is reused.
	w := Window{Start: date(2024, time.March, 4), End: date(2024, time.March, 10)}
	got, err := Schedule([]content.WithSEO{item("a", "blog"), item("b", "blog")}, w, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	days := map[time.Weekday]bool{}
	for _, s := range got {
		days[s.ScheduledAt.Weekday()] = true
	}
	if !days[time.Monday] || !days[time.Thursday] {
		t.Fatalf("expected posts on Monday and Thursday, got %v", days)
	}
}

func TestScheduleReusesDaysWhenWeekOverflows(t *testing.T) {
	// Three blog posts, one week, two valid days: one day must carry two.
	w := Window{Start: date(2024, time.March, 4), End: date(2024, time.March, 10)}
	got, err := Schedule([]content.WithSEO{item("a", "blog"), item("b", "blog"), item("c", "blog")}, w, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all 3 items placed, got %d", len(got))
	}
	for _, s := range got {
		if wd := s.ScheduledAt.Weekday(); wd != time.Monday && wd != time.Thursday {
			t.Fatalf("overflow item %s placed on invalid day %s", s.ID, wd)
		}
	}
}

func TestScheduleDropsDuplicateIDs(t *testing.T) {
	w := twoWeeks()
	got, err := Schedule([]content.WithSEO{item("a", "twitter"), item("a", "twitter"), item("b", "twitter")}, w, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected duplicates dropped, got %d items", len(got))
	}
}

func TestScheduleDeterministicForSeed(t *testing.T) {
	w := twoWeeks()
	items := []content.WithSEO{item("a", "twitter"), item("b", "instagram"), item("c", "twitter")}
	first, err := Schedule(items, w, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	second, err := Schedule(items, w, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for i := range first {
		if !first[i].ScheduledAt.Equal(second[i].ScheduledAt) || first[i].ID != second[i].ID {
			t.Fatalf("same seed produced different calendars at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestScheduleSortedByTime(t *testing.T) {
	w := twoWeeks()
	items := []content.WithSEO{
		item("a", "twitter"), item("b", "instagram"), item("c", "facebook"), item("d", "twitter"),
	}
	got, err := Schedule(items, w, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ScheduledAt.Before(got[i-1].ScheduledAt) {
			t.Fatalf("output not sorted: %s before %s", got[i].ScheduledAt, got[i-1].ScheduledAt)
		}
	}
}

func TestScheduleRejectsInvalidWindow(t *testing.T) {
	if _, err := Schedule([]content.WithSEO{item("a", "blog")}, Window{}, nil); err == nil {
		t.Fatalf("expected error for zero window")
	}
	w := Window{Start: date(2024, time.March, 10), End: date(2024, time.March, 4)}
	if _, err := Schedule([]content.WithSEO{item("a", "blog")}, w, nil); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestConstraintForUnknownPlatform(t *testing.T) {
	cs := ConstraintFor("carrier-pigeon")
	if len(cs.ValidDays) != 7 {
		t.Fatalf("unknown platform should allow all days, got %v", cs.ValidDays)
	}
	if cs.HourStart != 9 || cs.HourEnd != 17 {
		t.Fatalf("unknown platform should get business hours, got [%d, %d)", cs.HourStart, cs.HourEnd)
	}
}

func TestFallbackSpreadsAcrossWindow(t *testing.T) {
	w := Window{Start: date(2024, time.March, 4), End: date(2024, time.March, 7)}
	items := []content.WithSEO{
		item("a", "blog"), item("a", "blog"), item("b", "twitter"),
		item("c", "linkedin"), item("d", "tiktok"),
	}
	got := Fallback(items, w)
	if len(got) != 4 {
		t.Fatalf("expected duplicate dropped and 4 items, got %d", len(got))
	}
	for i, s := range got {
		if s.ScheduledAt.Before(w.Start) || s.ScheduledAt.After(w.End.AddDate(0, 0, 1)) {
			t.Fatalf("fallback item %d outside window: %s", i, s.ScheduledAt)
		}
		if h := s.ScheduledAt.Hour(); h < 9 || h > 16 {
			t.Fatalf("fallback item %d at hour %d, outside rotating business slots", i, h)
		}
		if i > 0 && s.ScheduledAt.Before(got[i-1].ScheduledAt) {
			t.Fatalf("fallback output not sorted")
		}
	}
}

func TestFallbackEmptyInput(t *testing.T) {
	if got := Fallback(nil, twoWeeks()); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
