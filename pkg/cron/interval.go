package cron

import (
	"fmt"
	"iter"
	"math/bits"
	"strconv"
	"strings"
)

// Interval is an immutable set of integers over an inclusive range
// [min, max]. Membership is held in a fixed-size bit vector, so an
// interval never spans more than 64 values; the five cron fields are
// all narrower than that. Intervals are built with an IntervalBuilder
// and are safe to copy and compare.
type Interval struct {
	min, max int
	set      uint64
}

// IntervalBuilder assembles an Interval over a fixed range. The zero
// value is not usable; call NewIntervalBuilder or Field.Builder.
type IntervalBuilder struct {
	min, max int
	set      uint64
}

// NewIntervalBuilder returns a builder for intervals over [min, max].
// It panics when min > max or when the range spans more than 64 values;
// both are programmer errors.
func NewIntervalBuilder(min, max int) *IntervalBuilder {
	if min > max {
		panic(fmt.Sprintf("cron: interval min %d greater than max %d", min, max))
	}
	if max-min+1 > 64 {
		panic(fmt.Sprintf("cron: interval range [%d,%d] spans more than 64 values", min, max))
	}
	return &IntervalBuilder{min: min, max: max}
}

// Builder returns a new builder over the same range seeded with the
// interval's members.
func (iv Interval) Builder() *IntervalBuilder {
	return &IntervalBuilder{min: iv.min, max: iv.max, set: iv.set}
}

func (b *IntervalBuilder) check(v int) error {
	if v < b.min || v > b.max {
		return fmt.Errorf("value %d out of range [%d,%d]", v, b.min, b.max)
	}
	return nil
}

func (b *IntervalBuilder) apply(v int, on bool) {
	bit := uint64(1) << uint(v-b.min)
	if on {
		b.set |= bit
	} else {
		b.set &^= bit
	}
}

// Set includes (on true) or excludes (on false) a single value.
func (b *IntervalBuilder) Set(value int, on bool) error {
	if err := b.check(value); err != nil {
		return err
	}
	b.apply(value, on)
	return nil
}

// SetRange includes or excludes every value from low through high inclusive.
func (b *IntervalBuilder) SetRange(low, high int, on bool) error {
	return b.SetStep(low, high, 1, on)
}

// SetStep includes or excludes low and every step-th value after it up to
// and including high.
func (b *IntervalBuilder) SetStep(low, high, step int, on bool) error {
	if step < 1 {
		return fmt.Errorf("step %d less than 1", step)
	}
	if err := b.check(low); err != nil {
		return err
	}
	if err := b.check(high); err != nil {
		return err
	}
	if low > high {
		return fmt.Errorf("range start %d after end %d", low, high)
	}
	for v := low; v <= high; v += step {
		b.apply(v, on)
	}
	return nil
}

// SetAll includes or excludes the whole range.
func (b *IntervalBuilder) SetAll(on bool) {
	if on {
		b.set = fullMask(b.max - b.min + 1)
	} else {
		b.set = 0
	}
}

// Build returns the assembled interval. The builder stays usable.
func (b *IntervalBuilder) Build() Interval {
	return Interval{min: b.min, max: b.max, set: b.set}
}

func fullMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

// Min returns the smallest representable value.
func (iv Interval) Min() int { return iv.min }

// Max returns the largest representable value.
func (iv Interval) Max() int { return iv.max }

func (iv Interval) mustContain(v int) {
	if v < iv.min || v > iv.max {
		panic(fmt.Sprintf("cron: value %d out of interval range [%d,%d]", v, iv.min, iv.max))
	}
}

// Test reports whether value is a member. It panics when value lies
// outside [Min, Max].
func (iv Interval) Test(value int) bool {
	iv.mustContain(value)
	return iv.set&(1<<uint(value-iv.min)) != 0
}

// IsEmpty reports whether the interval has no members.
func (iv Interval) IsEmpty() bool { return iv.set == 0 }

// IsFull reports whether every value in the range is a member.
func (iv Interval) IsFull() bool {
	return iv.set == fullMask(iv.max-iv.min+1)
}

// Next returns the smallest member at or above from, or strictly above
// when inclusive is false. The second result is false when no member
// qualifies, including an exclusive probe at Max. It panics when from
// lies outside [Min, Max].
func (iv Interval) Next(from int, inclusive bool) (int, bool) {
	iv.mustContain(from)
	if !inclusive {
		if from == iv.max {
			return 0, false
		}
		from++
	}
	rest := iv.set >> uint(from-iv.min)
	if rest == 0 {
		return 0, false
	}
	return from + bits.TrailingZeros64(rest), true
}

// Previous returns the largest member at or below from, or strictly
// below when inclusive is false. The second result is false when no
// member qualifies, including an exclusive probe at Min. It panics when
// from lies outside [Min, Max].
func (iv Interval) Previous(from int, inclusive bool) (int, bool) {
	iv.mustContain(from)
	if !inclusive {
		if from == iv.min {
			return 0, false
		}
		from--
	}
	masked := iv.set & fullMask(from-iv.min+1)
	if masked == 0 {
		return 0, false
	}
	return iv.min + bits.Len64(masked) - 1, true
}

// All iterates the members at or above from in ascending order. It
// panics when from lies outside [Min, Max].
func (iv Interval) All(from int) iter.Seq[int] {
	iv.mustContain(from)
	return func(yield func(int) bool) {
		v, ok := iv.Next(from, true)
		for ok {
			if !yield(v) {
				return
			}
			if v == iv.max {
				return
			}
			v, ok = iv.Next(v, false)
		}
	}
}

// Values returns the members in ascending order.
func (iv Interval) Values() []int {
	out := make([]int, 0, bits.OnesCount64(iv.set))
	for v := range iv.All(iv.min) {
		out = append(out, v)
	}
	return out
}

// Equal reports whether two intervals have the same range and members.
func (iv Interval) Equal(other Interval) bool {
	return iv == other
}

// String renders the members in canonical cron column form: "*" when the
// interval is full, otherwise comma-joined entries with each maximal
// contiguous run collapsed to "low-high". An empty interval renders as
// an empty string.
func (iv Interval) String() string {
	if iv.IsFull() {
		return "*"
	}
	var sb strings.Builder
	start, prev := 0, 0
	open := false
	flush := func() {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(start))
		if prev > start {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(prev))
		}
	}
	for v := range iv.All(iv.min) {
		if !open {
			start, prev, open = v, v, true
			continue
		}
		if v == prev+1 {
			prev = v
			continue
		}
		flush()
		start, prev = v, v
	}
	if open {
		flush()
	}
	return sb.String()
}
