package nco

const (
	CodeAccumBits = 29
	CodeFCWBits   = 28
	CodePhaseBits = 10

	codeAccumMask = 1<<CodeAccumBits - 1
	codeFCWMask   = 1<<CodeFCWBits - 1
)

// CodeNCO drives the code generator at twice the chipping rate.
//
// The zero value is the reset state.
type CodeNCO struct {
	Accum uint32 // 29 bits
	Phase uint16 // 10 bits, latched fine code phase
}

type CodeInput struct {
	Reset bool
	Tick  bool
	FCW   uint32 // 28 bits
}

type CodeOutput struct {
	// HalfChip is the accumulator carry of this cycle's add.
	HalfChip bool
	// Phase is the latched fine code phase.
	Phase uint16
}

// Next adds the control word once.
//
// On Tick the top bits of the accumulator are latched as they were before this
// cycle's add. The generator counts this cycle's HalfChip into its next state,
// so the pre-add phase pairs with the generator's current half-chip count.
func (n CodeNCO) Next(in CodeInput) (CodeNCO, CodeOutput) {
	out := CodeOutput{Phase: n.Phase}
	if in.Reset {
		return CodeNCO{}, out
	}

	sum := n.Accum + in.FCW&codeFCWMask
	out.HalfChip = sum>>CodeAccumBits != 0

	next := n
	next.Accum = sum & codeAccumMask
	if in.Tick {
		next.Phase = uint16(n.Accum >> (CodeAccumBits - CodePhaseBits))
	}
	return next, out
}

// CodeFCW returns the control word for a half-chip rate of 2*chipRateHz at the
// given sample rate. The result is clamped to the control word width.
func CodeFCW(chipRateHz, sampleRateHz float64) uint32 {
	if sampleRateHz <= 0 || chipRateHz <= 0 {
		return 0
	}
	w := 2 * chipRateHz / sampleRateHz * float64(uint64(1)<<CodeAccumBits)
	if w >= codeFCWMask {
		return codeFCWMask
	}
	return uint32(w + 0.5)
}
