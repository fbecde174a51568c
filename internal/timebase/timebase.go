// Package timebase divides the sample clock into the tick and accumulate
// enables.
package timebase

const (
	DivideBits = 24
	DivideMask = 1<<DivideBits - 1
)

// TimeBase holds two reload counters. The zero value is the reset state, in
// which both counters fire on the first cycle.
type TimeBase struct {
	Tic   uint32
	Accum uint32
	// TickOut is the tic pulse of the previous cycle.
	TickOut bool
}

type Input struct {
	Reset       bool
	TicDivide   uint32
	AccumDivide uint32
}

type Output struct {
	// PreTick fires when the tic counter is at zero.
	PreTick bool
	// Tick follows PreTick by one cycle.
	Tick bool
	// Accum fires when the accumulate counter is at zero.
	Accum bool
}

func countDown(v, divide uint32) uint32 {
	if v == 0 {
		return divide & DivideMask
	}
	return (v - 1) & DivideMask
}

// Next advances both counters by one cycle. With a divide of N each enable
// fires once every N+1 cycles.
func (tb TimeBase) Next(in Input) (TimeBase, Output) {
	out := Output{
		PreTick: tb.Tic == 0,
		Tick:    tb.TickOut,
		Accum:   tb.Accum == 0,
	}
	if in.Reset {
		return TimeBase{}, out
	}
	return TimeBase{
		Tic:     countDown(tb.Tic, in.TicDivide),
		Accum:   countDown(tb.Accum, in.AccumDivide),
		TickOut: out.PreTick,
	}, out
}

// Divide returns the divide value giving the requested period in cycles.
func Divide(periodCycles uint32) uint32 {
	if periodCycles == 0 {
		return 0
	}
	return (periodCycles - 1) & DivideMask
}
