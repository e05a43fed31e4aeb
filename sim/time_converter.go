package sim

import "math/bits"

// SimTime is a point in simulated time, counted in core ticks.
type SimTime uint64

// Cycle is a count of periods of some TimeConverter.
type Cycle uint64

// TimeConverter translates between core ticks and one external resolution.
// A converter is immutable; the TimeLord interns them so that equal factors share
// one instance.
type TimeConverter struct {
	factor uint64
}

// Factor returns the number of core ticks per unit of this resolution.
func (tc *TimeConverter) Factor() uint64 {
	return tc.factor
}

// ToCore converts a count in this resolution to core ticks. A product that does
// not fit in SimTime is reported with ErrInvalidTime.
func (tc *TimeConverter) ToCore(v uint64) (SimTime, error) {
	hi, lo := bits.Mul64(v, tc.factor)
	if hi != 0 {
		return 0, contractErr("TimeConverter.ToCore", "", ErrInvalidTime,
			"%d x %d core ticks overflows simulated time", v, tc.factor)
	}
	return SimTime(lo), nil
}

// addTime returns a+b, or ErrInvalidTime when the sum wraps.
func addTime(op string, a, b SimTime) (SimTime, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, contractErr(op, "", ErrInvalidTime, "tick %d + %d overflows simulated time", a, b)
	}
	return SimTime(sum), nil
}

// FromCore converts core ticks to this resolution by integer division.
// The result never carries a fractional residue forward, so two converters whose
// factors divide each other always agree on the tick count they describe.
func (tc *TimeConverter) FromCore(t SimTime) uint64 {
	return uint64(t) / tc.factor
}
