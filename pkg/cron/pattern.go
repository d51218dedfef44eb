// Package cron parses, prints, and evaluates five-field cron
// expressions at minute resolution, with calendar-correct and
// DST-correct next and previous occurrence computation in any time
// zone.
package cron

import (
	"fmt"
	"strings"
	"time"
)

// Pattern is an immutable cron pattern: one interval of selected values
// per field. Patterns are built by Parse or from intervals, and are
// safe to copy and to share between goroutines.
//
// Day selection follows vixie cron: when both day-of-month and
// day-of-week are restricted a day matches if either field matches;
// when exactly one is restricted that field alone decides.
type Pattern struct {
	minute     Interval
	hour       Interval
	dayOfMonth Interval
	month      Interval
	dayOfWeek  Interval
	source     string
	empty      bool
}

func makePattern(minute, hour, dayOfMonth, month, dayOfWeek Interval, source string) Pattern {
	p := Pattern{
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
		source:     source,
	}
	p.empty = p.computeEmpty()
	return p
}

// NewPattern builds a pattern from five intervals. Each interval's
// range must match the corresponding field's range exactly.
func NewPattern(minute, hour, dayOfMonth, month, dayOfWeek Interval) (Pattern, error) {
	intervals := [...]Interval{minute, hour, dayOfMonth, month, dayOfWeek}
	for i, f := range fields {
		if err := f.CheckInterval(intervals[i]); err != nil {
			return Pattern{}, fmt.Errorf("cron: %w", err)
		}
	}
	return makePattern(minute, hour, dayOfMonth, month, dayOfWeek, ""), nil
}

// MustPattern is like NewPattern but panics on error. Intended for
// package-level variables and tests.
func MustPattern(minute, hour, dayOfMonth, month, dayOfWeek Interval) Pattern {
	p, err := NewPattern(minute, hour, dayOfMonth, month, dayOfWeek)
	if err != nil {
		panic(err)
	}
	return p
}

// EmptyPattern returns the pattern with no values selected in any
// field. It never fires; build concrete patterns from it with the
// With* methods.
func EmptyPattern() Pattern {
	return makePattern(Minute.None(), Hour.None(), DayOfMonth.None(), Month.None(), DayOfWeek.None(), "")
}

// Interval returns the selected values for one field.
func (p Pattern) Interval(f Field) Interval {
	switch f {
	case Minute:
		return p.minute
	case Hour:
		return p.hour
	case DayOfMonth:
		return p.dayOfMonth
	case Month:
		return p.month
	case DayOfWeek:
		return p.dayOfWeek
	}
	panic(fmt.Sprintf("cron: unknown field %d", int(f)))
}

// WithInterval returns a copy of the pattern with one field's interval
// replaced. The interval's range must match the field's exactly. The
// copy has no source text.
func (p Pattern) WithInterval(f Field, iv Interval) (Pattern, error) {
	if err := f.CheckInterval(iv); err != nil {
		return Pattern{}, fmt.Errorf("cron: %w", err)
	}
	switch f {
	case Minute:
		p.minute = iv
	case Hour:
		p.hour = iv
	case DayOfMonth:
		p.dayOfMonth = iv
	case Month:
		p.month = iv
	case DayOfWeek:
		p.dayOfWeek = iv
	default:
		panic(fmt.Sprintf("cron: unknown field %d", int(f)))
	}
	p.source = ""
	p.empty = p.computeEmpty()
	return p, nil
}

// With returns a copy with a single value included or excluded in one
// field.
func (p Pattern) With(f Field, value int, on bool) (Pattern, error) {
	b := p.Interval(f).Builder()
	if err := b.Set(value, on); err != nil {
		return Pattern{}, fmt.Errorf("cron: %s field: %w", f.Name(), err)
	}
	return p.WithInterval(f, b.Build())
}

// WithRange returns a copy with the values low through high included
// or excluded in one field.
func (p Pattern) WithRange(f Field, low, high int, on bool) (Pattern, error) {
	b := p.Interval(f).Builder()
	if err := b.SetRange(low, high, on); err != nil {
		return Pattern{}, fmt.Errorf("cron: %s field: %w", f.Name(), err)
	}
	return p.WithInterval(f, b.Build())
}

// WithStep returns a copy with every step-th value from low through
// high included or excluded in one field.
func (p Pattern) WithStep(f Field, low, high, step int, on bool) (Pattern, error) {
	b := p.Interval(f).Builder()
	if err := b.SetStep(low, high, step, on); err != nil {
		return Pattern{}, fmt.Errorf("cron: %s field: %w", f.Name(), err)
	}
	return p.WithInterval(f, b.Build())
}

// WithAll returns a copy with one field's values all included or all
// excluded.
func (p Pattern) WithAll(f Field, on bool) Pattern {
	b := p.Interval(f).Builder()
	b.SetAll(on)
	out, err := p.WithInterval(f, b.Build())
	if err != nil {
		panic(err)
	}
	return out
}

// Matches reports whether the pattern fires at t's wall-clock reading
// in t's location. Components below the minute are ignored.
func (p Pattern) Matches(t time.Time) bool {
	_, m, d := t.Date()
	return p.minuteHourMatches(t.Minute(), t.Hour()) && p.dayMatches(m, d, t.Weekday())
}

func (p Pattern) minuteHourMatches(minute, hour int) bool {
	return p.minute.Test(minute) && p.hour.Test(hour)
}

func (p Pattern) dayMatches(m time.Month, day int, wd time.Weekday) bool {
	if !p.month.Test(int(m)) {
		return false
	}
	switch {
	case p.dayOfMonth.IsFull() && p.dayOfWeek.IsFull():
		return true
	case p.dayOfMonth.IsFull():
		return p.dayOfWeek.Test(int(wd))
	case p.dayOfWeek.IsFull():
		return p.dayOfMonth.Test(day)
	default:
		return p.dayOfWeek.Test(int(wd)) || p.dayOfMonth.Test(day)
	}
}

// IsEmpty reports whether the pattern can never fire: some field has no
// values, no day is selected at all, or the month and day-of-month
// selections name no real calendar date. February 29 counts as real.
func (p Pattern) IsEmpty() bool { return p.empty }

func (p Pattern) computeEmpty() bool {
	if p.minute.IsEmpty() || p.hour.IsEmpty() || p.month.IsEmpty() {
		return true
	}
	return p.dayEmpty()
}

// dayEmpty reports whether no (month, day, weekday) combination can
// satisfy the day rule. It mirrors dayMatches case by case: a full
// field is unrestricted, a restricted non-empty day-of-week fires on
// weekday matches alone, and day-of-month selections only count when
// some selected (month, day) pair names a real date. The search loops
// rely on this being exact; a pattern that slips through reporting
// non-empty would step days forever.
func (p Pattern) dayEmpty() bool {
	switch {
	case p.dayOfMonth.IsFull() && p.dayOfWeek.IsFull():
		return false
	case p.dayOfMonth.IsFull():
		return p.dayOfWeek.IsEmpty()
	case p.dayOfWeek.IsFull():
		return p.noValidMonthDay()
	default:
		return p.dayOfWeek.IsEmpty() && p.noValidMonthDay()
	}
}

// noValidMonthDay reports whether every selected (month, day-of-month)
// pair is calendrically impossible. An empty day-of-month selects no
// pair at all.
func (p Pattern) noValidMonthDay() bool {
	for m := range p.month.All(p.month.Min()) {
		for d := range p.dayOfMonth.All(p.dayOfMonth.Min()) {
			if validMonthDay(time.Month(m), d) {
				return false
			}
		}
	}
	return true
}

// monthDays holds the length of each month in a leap year.
var monthDays = [...]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func validMonthDay(m time.Month, day int) bool {
	return day <= monthDays[m-1]
}

// Next returns the earliest time strictly after input, or at input when
// inclusive, at which the pattern fires, reading the wall clock in
// input's location. The second result is false when the pattern can
// never fire. Components below the minute carry through from the input.
//
// Patterns restricted in both hour and minute name specific wall-clock
// times and receive daylight saving correction: a firing skipped by a
// gap transition runs at the first legal instant after the gap, and a
// firing duplicated by an overlap transition runs only on the earlier,
// pre-transition side.
func (p Pattern) Next(input time.Time, inclusive bool) (time.Time, bool) {
	if p.dstCorrected() {
		if adjusted, changed := p.adjustInputNext(input); changed {
			input = adjusted
			inclusive = true
		}
		out, ok := nextPoint(p, wallOf(input), inclusive)
		if !ok {
			return time.Time{}, false
		}
		return resolveWall(out, input.Location()), true
	}
	out, ok := nextPoint(p, zonedTime{input}, inclusive)
	if !ok {
		return time.Time{}, false
	}
	return out.t, true
}

// Previous returns the latest time strictly before input, or at input
// when inclusive, at which the pattern fires. It mirrors Next,
// including the daylight saving correction.
func (p Pattern) Previous(input time.Time, inclusive bool) (time.Time, bool) {
	if p.dstCorrected() {
		if adjusted, changed := p.adjustInputPrevious(input, inclusive); changed {
			input = adjusted
			inclusive = true
		}
		out, ok := previousPoint(p, wallOf(input), inclusive)
		if !ok {
			return time.Time{}, false
		}
		return resolveWall(out, input.Location()), true
	}
	out, ok := previousPoint(p, zonedTime{input}, inclusive)
	if !ok {
		return time.Time{}, false
	}
	return out.t, true
}

// dstCorrected reports whether the pattern fires at specific wall-clock
// times and therefore needs daylight saving correction. Patterns with a
// full hour or minute field fire throughout the day and follow plain
// zone arithmetic instead.
func (p Pattern) dstCorrected() bool {
	return !p.hour.IsFull() && !p.minute.IsFull()
}

// Source returns the expression text the pattern was parsed from, or
// the empty string for programmatically built patterns.
func (p Pattern) Source() string { return p.source }

// String renders the pattern in canonical form: each field prints "*"
// when full, otherwise comma-joined values with contiguous runs
// collapsed to ranges. Step syntax from the source is not preserved.
func (p Pattern) String() string {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, p.Interval(f).String())
	}
	return strings.Join(cols, " ")
}

// Equal reports whether two patterns select the same times. Source
// text is ignored.
func (p Pattern) Equal(other Pattern) bool {
	return p.minute == other.minute &&
		p.hour == other.hour &&
		p.dayOfMonth == other.dayOfMonth &&
		p.month == other.month &&
		p.dayOfWeek == other.dayOfWeek
}
