package cron

import (
	"fmt"
	"regexp"
	"strings"
)

// Field identifies one of the five columns of a cron expression, in
// column order.
type Field int

// The five pattern fields.
const (
	Minute Field = iota
	Hour
	DayOfMonth
	Month
	DayOfWeek
)

// fields lists the pattern fields in column order.
var fields = [...]Field{Minute, Hour, DayOfMonth, Month, DayOfWeek}

var fieldInfo = [...]struct {
	min, max int
	name     string
}{
	Minute:     {0, 59, "minute"},
	Hour:       {0, 23, "hour"},
	DayOfMonth: {1, 31, "dayOfMonth"},
	Month:      {1, 12, "month"},
	DayOfWeek:  {0, 6, "dayOfWeek"},
}

// Min returns the smallest legal value for the field.
func (f Field) Min() int { return fieldInfo[f].min }

// Max returns the largest legal value for the field. Day of week tops
// out at 6; a literal 7 is accepted by the parser and folded to Sunday.
func (f Field) Max() int { return fieldInfo[f].max }

// Name returns the field name as it appears in parse errors.
func (f Field) Name() string { return fieldInfo[f].name }

func (f Field) String() string { return fieldInfo[f].name }

// Builder returns an empty IntervalBuilder over the field's range.
func (f Field) Builder() *IntervalBuilder {
	return NewIntervalBuilder(f.Min(), f.Max())
}

// Full returns the interval containing every value of the field.
func (f Field) Full() Interval {
	b := f.Builder()
	b.SetAll(true)
	return b.Build()
}

// None returns the empty interval over the field's range.
func (f Field) None() Interval {
	return f.Builder().Build()
}

// CheckInterval verifies that an interval's range matches the field's
// exactly.
func (f Field) CheckInterval(iv Interval) error {
	if iv.Min() != f.Min() {
		return fmt.Errorf("interval minimum %d does not match %s minimum %d", iv.Min(), f.Name(), f.Min())
	}
	if iv.Max() != f.Max() {
		return fmt.Errorf("interval maximum %d does not match %s maximum %d", iv.Max(), f.Name(), f.Max())
	}
	return nil
}

var (
	monthAliasRE = regexp.MustCompile(`(?i)jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`)
	dowAliasRE   = regexp.MustCompile(`(?i)mon|tue|wed|thu|fri|sat|sun`)

	monthAliases = map[string]string{
		"jan": "1", "feb": "2", "mar": "3", "apr": "4",
		"may": "5", "jun": "6", "jul": "7", "aug": "8",
		"sep": "9", "oct": "10", "nov": "11", "dec": "12",
	}
	dowAliases = map[string]string{
		"mon": "1", "tue": "2", "wed": "3", "thu": "4",
		"fri": "5", "sat": "6", "sun": "7",
	}
)

// replaceAliases substitutes three-letter English month and weekday
// names, case-insensitively, with their numeric values. Sunday becomes
// 7 here; normalizeValue and normalizeRangeEnd fold it back into range
// so that both 0 and 7 denote Sunday.
func (f Field) replaceAliases(s string) string {
	switch f {
	case Month:
		return monthAliasRE.ReplaceAllStringFunc(s, func(m string) string {
			return monthAliases[strings.ToLower(m)]
		})
	case DayOfWeek:
		return dowAliasRE.ReplaceAllStringFunc(s, func(m string) string {
			return dowAliases[strings.ToLower(m)]
		})
	default:
		return s
	}
}

// normalizeValue folds the second spelling of Sunday (7) to 0 for
// single day-of-week values.
func (f Field) normalizeValue(v int) int {
	if f == DayOfWeek && v == 7 {
		return 0
	}
	return v
}

// normalizeRangeEnd folds a day-of-week range ending at 7 to 6, so
// "5-7" means Friday through Saturday rather than wrapping.
func (f Field) normalizeRangeEnd(v int) int {
	if f == DayOfWeek && v == 7 {
		return 6
	}
	return v
}
