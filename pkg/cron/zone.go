package cron

import "time"

// probeWindow bounds the search for a UTC-offset change near a point.
// No real zone places two transitions this close together, and no gap
// or overlap is this wide, so probing both edges classifies the
// neighborhood completely.
const probeWindow = 36 * time.Hour

// zoneTransition is one UTC-offset discontinuity in a location. When
// the offset grows the local clock jumps forward and a range of wall
// readings never happens (a gap); when it shrinks the clock repeats a
// range of wall readings (an overlap).
type zoneTransition struct {
	at           time.Time // first instant at the new offset
	offsetBefore time.Duration
	offsetAfter  time.Duration
}

func (tr zoneTransition) isGap() bool { return tr.offsetAfter > tr.offsetBefore }

// wallBefore returns the transition instant as read by the old offset.
func (tr zoneTransition) wallBefore() wallTime {
	return wallTime{tr.at.UTC().Add(tr.offsetBefore)}
}

// wallAfter returns the transition instant as read by the new offset.
func (tr zoneTransition) wallAfter() wallTime {
	return wallTime{tr.at.UTC().Add(tr.offsetAfter)}
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

func offsetOf(t time.Time) time.Duration {
	_, off := t.Zone()
	return time.Duration(off) * time.Second
}

// transitionFor returns the transition whose gap or overlap window
// contains the wall reading w in loc. A gap window spans
// [wallBefore, wallAfter) and an overlap window [wallAfter, wallBefore);
// readings outside any window resolve uniquely and report false.
func transitionFor(w wallTime, loc *time.Location) (zoneTransition, bool) {
	// The wall reading taken as an instant is within a day or so of
	// any transition whose window could contain it.
	guess := w.t
	lo := guess.Add(-probeWindow)
	hi := guess.Add(probeWindow)
	if offsetAt(lo, loc) == offsetAt(hi, loc) {
		return zoneTransition{}, false
	}
	tr := findTransition(lo, hi, loc)
	var start, end wallTime
	if tr.isGap() {
		start, end = tr.wallBefore(), tr.wallAfter()
	} else {
		start, end = tr.wallAfter(), tr.wallBefore()
	}
	if !w.t.Before(start.t) && w.t.Before(end.t) {
		return tr, true
	}
	return zoneTransition{}, false
}

// findTransition locates the instant in (lo, hi] where loc's offset
// changes. The callers guarantee exactly one change lies between the
// bounds. Zone database transitions fall on whole seconds, so the
// bisection runs on Unix seconds.
func findTransition(lo, hi time.Time, loc *time.Location) zoneTransition {
	loSec, hiSec := lo.Unix(), hi.Unix()
	offLo := offsetAt(time.Unix(loSec, 0), loc)
	for hiSec-loSec > 1 {
		mid := (loSec + hiSec) / 2
		if offsetAt(time.Unix(mid, 0), loc) == offLo {
			loSec = mid
		} else {
			hiSec = mid
		}
	}
	at := time.Unix(hiSec, 0).UTC()
	return zoneTransition{at: at, offsetBefore: offLo, offsetAfter: offsetAt(at, loc)}
}

// adjustInputNext moves a Next input lying on the late side of an
// overlap forward past the duplicated wall-clock interval. The firing
// for those wall readings already happened on the early side, so the
// search must not produce them again. The replacement input is the
// first reading after the duplicated interval, and the caller restarts
// the search inclusively from it.
func (p Pattern) adjustInputNext(input time.Time) (time.Time, bool) {
	tr, ok := transitionFor(wallOf(input), input.Location())
	if !ok {
		return input, false
	}
	if offsetOf(input) == tr.offsetAfter {
		adjusted := tr.at.Add(tr.offsetBefore - tr.offsetAfter).In(input.Location())
		return adjusted, true
	}
	return input, false
}

// adjustInputPrevious backs a Previous probe out of a gap or a
// duplicated overlap interval. The probe is the input's wall reading,
// moved one minute earlier for exclusive queries since that instant is
// the effective starting point of a backward search. The replacement
// input is the last instant before the transition, searched
// inclusively.
func (p Pattern) adjustInputPrevious(input time.Time, inclusive bool) (time.Time, bool) {
	probe := wallOf(input)
	if !inclusive {
		probe = wallTime{probe.t.Add(-time.Minute)}
	}
	tr, ok := transitionFor(probe, input.Location())
	if !ok {
		return input, false
	}
	if tr.isGap() || offsetOf(input) == tr.offsetAfter {
		adjusted := tr.at.Add(-time.Minute).In(input.Location())
		return adjusted, true
	}
	return input, false
}

// resolveWall turns a wall-clock search result back into an instant in
// loc. A unique reading attaches directly. A duplicated reading takes
// the pre-transition offset, selecting the earlier occurrence. A
// skipped reading does not exist, so the firing moves to the first
// legal instant after the gap.
func resolveWall(w wallTime, loc *time.Location) time.Time {
	tr, ok := transitionFor(w, loc)
	if !ok {
		y, m, d := w.t.Date()
		return time.Date(y, m, d, w.t.Hour(), w.t.Minute(), w.t.Second(), w.t.Nanosecond(), loc)
	}
	if tr.isGap() {
		return tr.at.In(loc)
	}
	return w.t.Add(-tr.offsetBefore).In(loc)
}
