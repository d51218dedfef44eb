package cron

import (
	"time"

	cronv3 "github.com/robfig/cron/v3"
)

// Schedule adapts the pattern to robfig/cron's Schedule interface, so
// a Pattern can drop into an existing robfig runner. Next is strictly
// exclusive; a pattern that never fires reports the zero time, which
// robfig treats as no further activations.
func (p Pattern) Schedule() cronv3.Schedule {
	return patternSchedule{p}
}

type patternSchedule struct{ p Pattern }

func (s patternSchedule) Next(t time.Time) time.Time {
	next, ok := s.p.Next(t, false)
	if !ok {
		return time.Time{}
	}
	return next
}
