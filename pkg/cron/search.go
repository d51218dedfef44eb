package cron

import "time"

// timePoint abstracts the calendar operations the occurrence search
// needs, so one algorithm serves both wall-clock values (zone-naive,
// used under daylight saving correction) and zone-attached times.
type timePoint[T any] interface {
	Minute() int
	Hour() int
	YMD() (int, time.Month, int)
	Weekday() time.Weekday
	WithMinute(int) T
	WithHour(int) T
	AddHours(int) T
	AddDays(int) T
	SameDate(T) bool
	Equal(T) bool
}

// wallTime is a zone-naive time point. The reading is carried as a UTC
// time.Time so that all arithmetic is pure calendar arithmetic.
type wallTime struct{ t time.Time }

// wallOf captures t's wall-clock reading in its own location.
func wallOf(t time.Time) wallTime {
	y, m, d := t.Date()
	return wallTime{time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

func (w wallTime) Minute() int                 { return w.t.Minute() }
func (w wallTime) Hour() int                   { return w.t.Hour() }
func (w wallTime) YMD() (int, time.Month, int) { return w.t.Date() }
func (w wallTime) Weekday() time.Weekday       { return w.t.Weekday() }

func (w wallTime) WithMinute(m int) wallTime {
	y, mo, d := w.t.Date()
	return wallTime{time.Date(y, mo, d, w.t.Hour(), m, w.t.Second(), w.t.Nanosecond(), time.UTC)}
}

func (w wallTime) WithHour(h int) wallTime {
	y, mo, d := w.t.Date()
	return wallTime{time.Date(y, mo, d, h, w.t.Minute(), w.t.Second(), w.t.Nanosecond(), time.UTC)}
}

func (w wallTime) AddHours(n int) wallTime { return wallTime{w.t.Add(time.Duration(n) * time.Hour)} }
func (w wallTime) AddDays(n int) wallTime  { return wallTime{w.t.AddDate(0, 0, n)} }

func (w wallTime) SameDate(o wallTime) bool {
	y1, m1, d1 := w.t.Date()
	y2, m2, d2 := o.t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (w wallTime) Equal(o wallTime) bool { return w.t.Equal(o.t) }

// zonedTime is a time point in its own location. Setting a field or
// adding a day works on the local calendar; adding an hour is instant
// arithmetic.
type zonedTime struct{ t time.Time }

func (z zonedTime) Minute() int                 { return z.t.Minute() }
func (z zonedTime) Hour() int                   { return z.t.Hour() }
func (z zonedTime) YMD() (int, time.Month, int) { return z.t.Date() }
func (z zonedTime) Weekday() time.Weekday       { return z.t.Weekday() }

func (z zonedTime) WithMinute(m int) zonedTime {
	y, mo, d := z.t.Date()
	return zonedTime{time.Date(y, mo, d, z.t.Hour(), m, z.t.Second(), z.t.Nanosecond(), z.t.Location())}
}

func (z zonedTime) WithHour(h int) zonedTime {
	y, mo, d := z.t.Date()
	return zonedTime{time.Date(y, mo, d, h, z.t.Minute(), z.t.Second(), z.t.Nanosecond(), z.t.Location())}
}

func (z zonedTime) AddHours(n int) zonedTime { return zonedTime{z.t.Add(time.Duration(n) * time.Hour)} }
func (z zonedTime) AddDays(n int) zonedTime  { return zonedTime{z.t.AddDate(0, 0, n)} }

func (z zonedTime) SameDate(o zonedTime) bool {
	y1, m1, d1 := z.t.Date()
	y2, m2, d2 := o.t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (z zonedTime) Equal(o zonedTime) bool { return z.t.Equal(o.t) }

func matchesPoint[T timePoint[T]](p Pattern, t T) bool {
	return p.minuteHourMatches(t.Minute(), t.Hour()) && dayMatchesPoint(p, t)
}

func dayMatchesPoint[T timePoint[T]](p Pattern, t T) bool {
	_, m, d := t.YMD()
	return p.dayMatches(m, d, t.Weekday())
}

// nextSameDay finds the next firing on the same calendar date as the
// input, or reports false when the date does not match or the firing
// falls on a later date.
func nextSameDay[T timePoint[T]](p Pattern, input T, inclusive bool) (T, bool) {
	var none T
	if !dayMatchesPoint(p, input) {
		return none, false
	}
	output := input
	if m, ok := p.minute.Next(output.Minute(), inclusive); ok {
		output = output.WithMinute(m)
	} else {
		output = output.AddHours(1)
		if !output.SameDate(input) {
			return none, false
		}
	}
	if !input.Equal(output) {
		inclusive = true
	}
	inputHour := input.Hour()
	h, ok := p.hour.Next(output.Hour(), inclusive)
	if !ok {
		return none, false
	}
	output = output.WithHour(h)
	if inputHour != h {
		m, _ := p.minute.Next(p.minute.Min(), true)
		output = output.WithMinute(m)
	}
	return output, true
}

// previousSameDay mirrors nextSameDay going backward.
func previousSameDay[T timePoint[T]](p Pattern, input T, inclusive bool) (T, bool) {
	var none T
	if !dayMatchesPoint(p, input) {
		return none, false
	}
	output := input
	if m, ok := p.minute.Previous(output.Minute(), inclusive); ok {
		output = output.WithMinute(m)
	} else {
		output = output.AddHours(-1)
		if !output.SameDate(input) {
			return none, false
		}
	}
	if !input.Equal(output) {
		inclusive = true
	}
	inputHour := input.Hour()
	h, ok := p.hour.Previous(output.Hour(), inclusive)
	if !ok {
		return none, false
	}
	output = output.WithHour(h)
	if inputHour != h {
		m, _ := p.minute.Previous(p.minute.Max(), true)
		output = output.WithMinute(m)
	}
	return output, true
}

// nextPoint finds the next match: first on the input's own date, then
// by stepping forward a day at a time with hour and minute pinned to
// their first selected values, so only the day rule needs testing per
// step. Emptiness is checked up front, which bounds the walk.
func nextPoint[T timePoint[T]](p Pattern, input T, inclusive bool) (T, bool) {
	var none T
	if p.empty {
		return none, false
	}
	if inclusive && matchesPoint(p, input) {
		return input, true
	}
	if out, ok := nextSameDay(p, input, inclusive); ok {
		return out, true
	}
	firstHour, _ := p.hour.Next(p.hour.Min(), true)
	firstMinute, _ := p.minute.Next(p.minute.Min(), true)
	out := input.AddDays(1).WithHour(firstHour).WithMinute(firstMinute)
	for !dayMatchesPoint(p, out) {
		out = out.AddDays(1)
	}
	return out, true
}

// previousPoint mirrors nextPoint going backward, pinning hour and
// minute to their last selected values while stepping.
func previousPoint[T timePoint[T]](p Pattern, input T, inclusive bool) (T, bool) {
	var none T
	if p.empty {
		return none, false
	}
	if inclusive && matchesPoint(p, input) {
		return input, true
	}
	if out, ok := previousSameDay(p, input, inclusive); ok {
		return out, true
	}
	lastHour, _ := p.hour.Previous(p.hour.Max(), true)
	lastMinute, _ := p.minute.Previous(p.minute.Max(), true)
	out := input.AddDays(-1).WithHour(lastHour).WithMinute(lastMinute)
	for !dayMatchesPoint(p, out) {
		out = out.AddDays(-1)
	}
	return out, true
}
