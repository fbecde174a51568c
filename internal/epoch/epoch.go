// Package epoch counts code periods into navigation data bits.
package epoch

const (
	CyclesPerBit = 20
	BitsPerFrame = 50

	Bits      = 11
	Mask      = 1<<Bits - 1
	cycleBits = 5
	cycleMask = 1<<cycleBits - 1
	bitMask   = 1<<(Bits-cycleBits) - 1
)

// Counter holds the code-period count within a data bit and the bit count
// within a frame. The zero value is the reset state.
type Counter struct {
	Cycle uint8  // 0..19
	Bit   uint8  // 0..49
	Epoch uint16 // latched on tick
}

type Input struct {
	Reset bool
	Dump  bool
	Tick  bool
	Load  bool
	Value uint16 // bits 4..0 cycle, bits 10..5 bit
}

type Output struct {
	Epoch uint16
	Check uint16
}

// Pack combines cycle and bit counts into the 11-bit epoch layout.
func Pack(cycle, bit uint8) uint16 {
	return uint16(bit)&bitMask<<cycleBits | uint16(cycle)&cycleMask
}

// Unpack splits an 11-bit epoch value.
func Unpack(v uint16) (cycle, bit uint8) {
	return uint8(v & cycleMask), uint8(v >> cycleBits & bitMask)
}

func (c Counter) Output() Output {
	return Output{Epoch: c.Epoch, Check: Pack(c.Cycle, c.Bit)}
}

// Next advances the counters on a dump. A load overrides the counters for
// this cycle; the latch on tick always samples the current counters.
func (c Counter) Next(in Input) (Counter, Output) {
	out := c.Output()
	if in.Reset {
		return Counter{}, out
	}

	next := c
	switch {
	case in.Load:
		next.Cycle, next.Bit = Unpack(in.Value)
	case in.Dump:
		if c.Cycle >= CyclesPerBit-1 {
			next.Cycle = 0
			if c.Bit >= BitsPerFrame-1 {
				next.Bit = 0
			} else {
				next.Bit = c.Bit + 1
			}
		} else {
			next.Cycle = c.Cycle + 1
		}
	}
	if in.Tick {
		next.Epoch = out.Check
	}
	return next, out
}
