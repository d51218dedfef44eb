package cron

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a malformed cron expression. Offset is the byte
// position of the offending column within the trimmed expression, or 0
// when the expression has the wrong number of columns.
type ParseError struct {
	Msg    string
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cron: %s at offset %d", e.Msg, e.Offset)
}

var (
	columnRE    = regexp.MustCompile(`\S+`)
	rangeRE     = regexp.MustCompile(`^(\d+)-(\d+)$`)
	rangeStepRE = regexp.MustCompile(`^(\d+)-(\d+)/(\d+)$`)
	numberRE    = regexp.MustCompile(`^\d+$`)
)

// Parse builds a Pattern from a five-column cron expression: minute,
// hour, day of month, month, day of week, separated by whitespace.
//
// Each column is a comma-separated list of buckets: a number, an
// inclusive range "low-high", a stepped range "low-high/step", or "*"
// for the whole range, with "*/step" as a stepped whole range.
// Three-letter English month and weekday names stand in for numbers,
// and Sunday is written as either 0 or 7. Errors are *ParseError
// values carrying the offending column's offset.
func Parse(expr string) (Pattern, error) {
	trimmed := strings.TrimSpace(expr)
	var cols [][]int
	if trimmed != "" {
		cols = columnRE.FindAllStringIndex(trimmed, -1)
	}
	if len(cols) != len(fields) {
		return Pattern{}, &ParseError{
			Msg: fmt.Sprintf("expected %d columns, found %d", len(fields), len(cols)),
		}
	}
	var intervals [len(fields)]Interval
	for i, f := range fields {
		lo, hi := cols[i][0], cols[i][1]
		iv, err := parseColumn(f, trimmed[lo:hi], lo)
		if err != nil {
			return Pattern{}, err
		}
		intervals[i] = iv
	}
	return makePattern(intervals[0], intervals[1], intervals[2], intervals[3], intervals[4], trimmed), nil
}

// MustParse is like Parse but panics on a malformed expression.
// Intended for package-level variables and tests.
func MustParse(expr string) Pattern {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func parseColumn(f Field, column string, offset int) (Interval, error) {
	b := f.Builder()
	for _, bucket := range splitBuckets(f.replaceAliases(column)) {
		if err := parseBucket(f, b, bucket); err != nil {
			return Interval{}, &ParseError{
				Msg:    fmt.Sprintf("%s in %s column", err, f.Name()),
				Offset: offset,
			}
		}
	}
	return b.Build(), nil
}

// splitBuckets splits a column on commas, discarding trailing empty
// buckets: "1," reads as "1", and a bare "," selects nothing.
func splitBuckets(column string) []string {
	parts := strings.Split(column, ",")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func parseBucket(f Field, b *IntervalBuilder, bucket string) error {
	if strings.HasPrefix(bucket, "*") {
		if strings.Contains(bucket[1:], "*") {
			return errors.New("wildcard syntax error")
		}
		bucket = fmt.Sprintf("%d-%d%s", f.Min(), f.Max(), bucket[1:])
	}
	if m := rangeRE.FindStringSubmatch(bucket); m != nil {
		low, high, err := parseInts(m[1], m[2])
		if err != nil {
			return err
		}
		return b.SetRange(low, f.normalizeRangeEnd(high), true)
	}
	if m := rangeStepRE.FindStringSubmatch(bucket); m != nil {
		low, high, err := parseInts(m[1], m[2])
		if err != nil {
			return err
		}
		step, err := strconv.Atoi(m[3])
		if err != nil {
			return err
		}
		return b.SetStep(low, f.normalizeRangeEnd(high), step, true)
	}
	if numberRE.MatchString(bucket) {
		v, err := strconv.Atoi(bucket)
		if err != nil {
			return err
		}
		return b.Set(f.normalizeValue(v), true)
	}
	return errors.New("unrecognized value")
}

func parseInts(a, b string) (int, int, error) {
	first, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	second, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}
