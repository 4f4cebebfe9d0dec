package schedule

import (
	"strings"
	"time"
)

// Constraint describes when a platform accepts new posts: the weekdays it
// may be published on and the local hour range [HourStart, HourEnd).
type Constraint struct {
	ValidDays []time.Weekday
	HourStart int
	HourEnd   int
}

// allDays is the fallback when a platform declares no valid weekdays;
// items must never be left unscheduled because of an empty constraint.
var allDays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

var platformConstraints = map[string]Constraint{
	"twitter": {
		ValidDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		HourStart: 9, HourEnd: 18,
	},
	"linkedin": {
		ValidDays: []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
		HourStart: 8, HourEnd: 12,
	},
	"instagram": {
		ValidDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday, time.Saturday},
		HourStart: 11, HourEnd: 20,
	},
	"facebook": {
		ValidDays: []time.Weekday{time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday},
		HourStart: 10, HourEnd: 16,
	},
	"tiktok": {
		ValidDays: []time.Weekday{time.Tuesday, time.Thursday, time.Friday, time.Saturday},
		HourStart: 16, HourEnd: 22,
	},
	"blog": {
		ValidDays: []time.Weekday{time.Monday, time.Thursday},
		HourStart: 7, HourEnd: 11,
	},
}

// ConstraintFor returns the publishing constraint for a platform. Unknown
// platforms and platforms with an empty weekday set get all seven weekdays
// and business hours, so scheduling always has somewhere to place an item.
func ConstraintFor(platform string) Constraint {
	c, ok := platformConstraints[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return Constraint{ValidDays: allDays, HourStart: 9, HourEnd: 17}
	}
	if len(c.ValidDays) == 0 {
		c.ValidDays = allDays
	}
	if c.HourEnd <= c.HourStart {
		c.HourStart, c.HourEnd = 9, 17
	}
	return c
}

func (c Constraint) allowsDay(d time.Weekday) bool {
	for _, v := range c.ValidDays {
		if v == d {
			return true
		}
	}
	return false
}
