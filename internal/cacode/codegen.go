package cacode

const (
	// NominalHalfChips is the dump-to-dump period in half-chip pulses with
	// no slew applied.
	NominalHalfChips = 2 * CodeLength

	SlewBits      = 11
	SlewMask      = 1<<SlewBits - 1
	CodePhaseBits = 11
	CodePhaseMask = 1<<CodePhaseBits - 1

	// dumpCount is the local half-chip count at which the dump fires.
	dumpCount = 3
	// slewCount is the local half-chip count at which an armed slew is applied.
	slewCount = 1
)

// Generator is the register state of the code generator. The zero value is
// the reset state; a key must be loaded before the chip stream is meaningful.
type Generator struct {
	G1, G2   uint16
	G1Q, G2Q uint8 // delayed register outputs
	Taps     uint8 // bit0 early, bit1 prompt, bit2 late

	HalfCount  uint8
	Suspend    uint16 // half-chips left with full-chip pulses held off
	EpochCount uint16 // half-chips since the last wrap
	Extension  uint16 // extra half-chips in the current period

	SlewArmed  bool
	SlewAmount uint16

	FullChip bool
	Dump     bool

	CodePhase uint16
}

type GenInput struct {
	Reset    bool
	HalfChip bool
	Tick     bool

	KeyLoad bool
	Key     uint16

	SlewEnable bool
	Slew       uint16
}

type GenOutput struct {
	Early, Prompt, Late uint8
	Chip                uint8
	FullChip            bool
	Dump                bool
	CodePhase           uint16
}

// Output derives this cycle's outputs from the current registers.
func (g Generator) Output() GenOutput {
	return GenOutput{
		Early:     g.Taps & 1,
		Prompt:    g.Taps >> 1 & 1,
		Late:      g.Taps >> 2 & 1,
		Chip:      g.chip(),
		FullChip:  g.FullChip,
		Dump:      g.Dump,
		CodePhase: g.CodePhase,
	}
}

func (g Generator) chip() uint8 { return (g.G1Q ^ g.G2Q) & 1 }

// Next returns the state after one cycle along with the outputs for this
// cycle. Pulses are registered: a full-chip or dump computed now is output
// on the following cycle.
func (g Generator) Next(in GenInput) (Generator, GenOutput) {
	out := g.Output()

	if in.Reset {
		return Generator{}, out
	}
	if in.KeyLoad {
		next := Generator{
			G1:        g1Preset,
			G2:        in.Key & KeyMask,
			CodePhase: g.CodePhase,
		}
		out.FullChip = false
		out.Dump = false
		return next, out
	}

	next := g
	if g.FullChip {
		next.G1Q, next.G1 = uint8(g.G1&1), shiftG1(g.G1)
		next.G2Q, next.G2 = uint8(g.G2&1), shiftG2(g.G2)
	}
	next.FullChip = false
	next.Dump = false

	applied := false
	if in.HalfChip {
		next.Taps = (g.Taps<<1 | g.chip()) & 7

		switch {
		case g.Suspend != 0:
			next.Suspend = g.Suspend - 1
		case g.HalfCount == 1:
			next.HalfCount = 0
			next.FullChip = true
		default:
			next.HalfCount = 1
		}

		if uint32(g.EpochCount) >= NominalHalfChips-1+uint32(g.Extension) {
			next.EpochCount = 0
			next.Extension = 0
		} else {
			next.EpochCount = g.EpochCount + 1
		}
		if next.EpochCount == slewCount && g.SlewArmed {
			next.Extension = g.SlewAmount
			next.Suspend = g.SlewAmount
			applied = true
		}
		if next.EpochCount == dumpCount {
			next.Dump = true
		}
	}

	switch {
	case in.SlewEnable:
		next.SlewArmed = true
		next.SlewAmount = in.Slew & SlewMask
	case applied, g.Dump:
		next.SlewArmed = false
	}

	if in.Tick {
		next.CodePhase = g.EpochCount & CodePhaseMask
	}
	return next, out
}
