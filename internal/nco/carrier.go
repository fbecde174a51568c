package nco

const (
	CarrierAccumBits  = 30
	CarrierFCWBits    = 29
	CarrierCycleBits  = 22
	CarrierPhaseBits  = 10
	carrierAccumMask  = 1<<CarrierAccumBits - 1
	carrierFCWMask    = 1<<CarrierFCWBits - 1
	carrierCycleMask  = 1<<CarrierCycleBits - 1
	carrierKeyShift   = CarrierAccumBits - 4
	carrierPhaseShift = CarrierAccumBits - CarrierPhaseBits
)

// PhasePoint is one entry of the pseudo-sinusoid table: the I and Q carrier
// replica as sign/magnitude pairs. A sign of 1 is positive; a magnitude bit of
// 1 stands for 2, 0 for 1.
type PhasePoint struct {
	ISign, IMag uint8
	QSign, QMag uint8
}

// phaseTable maps the top four accumulator bits to one of eight phase states,
// two keys per state, centred on 22.5°+k·45°. The (I,Q) magnitudes alternate
// between (2,1) and (1,2), which keeps the envelope constant at √5.
var phaseTable = [16]PhasePoint{
	0x0: {1, 1, 1, 0}, 0x1: {1, 1, 1, 0}, //  22.5°: +2 +1
	0x2: {1, 0, 1, 1}, 0x3: {1, 0, 1, 1}, //  67.5°: +1 +2
	0x4: {0, 0, 1, 1}, 0x5: {0, 0, 1, 1}, // 112.5°: -1 +2
	0x6: {0, 1, 1, 0}, 0x7: {0, 1, 1, 0}, // 157.5°: -2 +1
	0x8: {0, 1, 0, 0}, 0x9: {0, 1, 0, 0}, // 202.5°: -2 -1
	0xA: {0, 0, 0, 1}, 0xB: {0, 0, 0, 1}, // 247.5°: -1 -2
	0xC: {1, 0, 0, 1}, 0xD: {1, 0, 0, 1}, // 292.5°: +1 -2
	0xE: {1, 1, 0, 0}, 0xF: {1, 1, 0, 0}, // 337.5°: +2 -1
}

// Phase returns the table entry for a 4-bit key.
func Phase(key uint8) PhasePoint {
	return phaseTable[key&0xF]
}

// CarrierNCO generates the local carrier replica.
//
// The zero value is the reset state.
type CarrierNCO struct {
	Accum  uint32 // 30 bits
	Cycles uint32 // 22 bits, carries since the last tick
	Value  uint32 // latched {Cycles, top 10 accumulator bits}
}

type CarrierInput struct {
	Reset bool
	Tick  bool
	FCW   uint32 // 29 bits
}

type CarrierOutput struct {
	PhasePoint
	// Key is the 4-bit table selector taken from the post-add sum.
	Key   uint8
	Carry bool
	// Value is the latched diagnostic word.
	Value uint32
}

func (n CarrierNCO) Next(in CarrierInput) (CarrierNCO, CarrierOutput) {
	if in.Reset {
		return CarrierNCO{}, CarrierOutput{PhasePoint: phaseTable[0], Value: n.Value}
	}

	sum := n.Accum + in.FCW&carrierFCWMask
	key := uint8(sum>>carrierKeyShift) & 0xF

	out := CarrierOutput{
		PhasePoint: phaseTable[key],
		Key:        key,
		Carry:      sum>>CarrierAccumBits != 0,
		Value:      n.Value,
	}

	next := n
	next.Accum = sum & carrierAccumMask
	switch {
	case in.Tick:
		next.Value = n.Cycles<<CarrierPhaseBits | n.Accum>>carrierPhaseShift
		next.Cycles = 0
	case out.Carry:
		next.Cycles = (n.Cycles + 1) & carrierCycleMask
	}
	return next, out
}

// CarrierFCW returns the control word for an intermediate frequency at the
// given sample rate. Frequencies at or above half the sample rate clamp to the
// control word width.
func CarrierFCW(ifHz, sampleRateHz float64) uint32 {
	if sampleRateHz <= 0 || ifHz <= 0 {
		return 0
	}
	w := ifHz / sampleRateHz * float64(uint64(1)<<CarrierAccumBits)
	if w >= carrierFCWMask {
		return carrierFCWMask
	}
	return uint32(w + 0.5)
}
