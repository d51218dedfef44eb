package cron

import "testing"

func TestFieldBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f        Field
		min, max int
		name     string
	}{
		{Minute, 0, 59, "minute"},
		{Hour, 0, 23, "hour"},
		{DayOfMonth, 1, 31, "dayOfMonth"},
		{Month, 1, 12, "month"},
		{DayOfWeek, 0, 6, "dayOfWeek"},
	}
	for _, tc := range tests {
		if tc.f.Min() != tc.min || tc.f.Max() != tc.max {
			t.Errorf("%s: bounds [%d,%d], want [%d,%d]", tc.name, tc.f.Min(), tc.f.Max(), tc.min, tc.max)
		}
		if tc.f.Name() != tc.name {
			t.Errorf("Name() = %q, want %q", tc.f.Name(), tc.name)
		}
	}
}

func TestFieldReplaceAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    Field
		in   string
		want string
	}{
		{Month, "jan", "1"},
		{Month, "JAN", "1"},
		{Month, "Dec", "12"},
		{Month, "jan-mar", "1-3"},
		{DayOfWeek, "mon-fri", "1-5"},
		{DayOfWeek, "sun", "7"},
		{DayOfWeek, "SAT,Sun", "6,7"},
		{Minute, "mon", "mon"},
		{Month, "january", "1uary"},
	}
	for _, tc := range tests {
		if got := tc.f.replaceAliases(tc.in); got != tc.want {
			t.Errorf("%s.replaceAliases(%q) = %q, want %q", tc.f, tc.in, got, tc.want)
		}
	}
}

func TestFieldNormalize(t *testing.T) {
	t.Parallel()

	if got := DayOfWeek.normalizeValue(7); got != 0 {
		t.Errorf("normalizeValue(7) = %d, want 0", got)
	}
	if got := DayOfWeek.normalizeValue(5); got != 5 {
		t.Errorf("normalizeValue(5) = %d, want 5", got)
	}
	if got := DayOfWeek.normalizeRangeEnd(7); got != 6 {
		t.Errorf("normalizeRangeEnd(7) = %d, want 6", got)
	}
	if got := Month.normalizeValue(7); got != 7 {
		t.Errorf("month normalizeValue(7) = %d, want 7", got)
	}
	if got := Month.normalizeRangeEnd(7); got != 7 {
		t.Errorf("month normalizeRangeEnd(7) = %d, want 7", got)
	}
}

func TestFieldCheckInterval(t *testing.T) {
	t.Parallel()

	if err := Minute.CheckInterval(Minute.Full()); err != nil {
		t.Errorf("CheckInterval on matching range failed: %v", err)
	}
	if err := Minute.CheckInterval(Hour.Full()); err == nil {
		t.Error("CheckInterval accepted an hour-range interval for minute")
	}
	if err := DayOfMonth.CheckInterval(NewIntervalBuilder(0, 31).Build()); err == nil {
		t.Error("CheckInterval accepted a mismatched minimum")
	}
}

func TestFieldFullNone(t *testing.T) {
	t.Parallel()

	for _, f := range fields {
		if !f.Full().IsFull() {
			t.Errorf("%s: Full() is not full", f)
		}
		if !f.None().IsEmpty() {
			t.Errorf("%s: None() is not empty", f)
		}
		if f.Full().Min() != f.Min() || f.Full().Max() != f.Max() {
			t.Errorf("%s: Full() range mismatch", f)
		}
	}
}
