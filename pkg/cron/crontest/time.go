// Package crontest provides time-construction helpers for tests that
// exercise cron patterns around zone transitions.
package crontest

import (
	"testing"
	"time"
)

// Zone loads a location by name and fails the test when the zone
// database does not know it.
func Zone(tb testing.TB, name string) *time.Location {
	tb.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		tb.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

// At returns the instant whose wall clock in loc reads the given
// values, resolved by the standard library. Use AtOffset for readings
// inside a repeated hour, where this resolution is ambiguous.
func At(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// AtOffset returns the instant whose wall clock reads the given values
// at a fixed UTC offset, attached to loc. A duplicated reading in an
// overlap is pinned to one side by naming that side's offset.
func AtOffset(loc *time.Location, offsetHours, year int, month time.Month, day, hour, minute int) time.Time {
	fixed := time.FixedZone("", offsetHours*3600)
	return time.Date(year, month, day, hour, minute, 0, 0, fixed).In(loc)
}
