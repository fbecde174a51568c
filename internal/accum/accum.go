// Package accum implements the accumulate-and-dump integrator.
package accum

// Accumulator integrates mixer products against one code tap.
//
// The zero value is the reset state.
type Accumulator struct {
	Sum     int32
	Latched int32
}

type Input struct {
	Code uint8 // code tap, 0 or 1
	Sign uint8 // mixer sign, 1 is positive
	Mag  uint8 // mixer magnitude, one of 1, 2, 3, 6
	Dump bool
}

// Contribution is the signed value it adds to the sum. A code bit equal to the
// sign bit counts positive.
func Contribution(in Input) int32 {
	v := int32(in.Mag & 7)
	if in.Code&1 != in.Sign&1 {
		v = -v
	}
	return v
}

// Next integrates one sample. On a dump the sum so far is latched and the
// sample of that cycle starts the next sum.
func (a Accumulator) Next(in Input) Accumulator {
	c := Contribution(in)
	if in.Dump {
		return Accumulator{Sum: c, Latched: a.Sum}
	}
	return Accumulator{Sum: a.Sum + c, Latched: a.Latched}
}
