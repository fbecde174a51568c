// Package mixer implements the carrier wipe-off multiplier of the correlator.
//
// Both operands are 2-bit sign/magnitude values. A sign bit of 1 means
// positive. The signal magnitude bit selects 1 or 3; the carrier magnitude bit
// selects 1 or 2. The product is a sign bit plus a 3-bit magnitude code that
// only ever takes the values 1, 2, 3 and 6.
package mixer

// Sample is a 2-bit sign/magnitude operand.
type Sample struct {
	Sign uint8 // 1 bit, 1 = positive
	Mag  uint8 // 1 bit
}

// Product is the mixer output.
type Product struct {
	Sign uint8 // 1 bit, 1 = positive
	Mag  uint8 // 3 bits, one of 1, 2, 3, 6
}

// Mix multiplies a signal sample by a carrier sample. It has no state.
func Mix(signal, carrier Sample) Product {
	sm := signal.Mag & 1
	cm := carrier.Mag & 1

	mag := (^cm & 1) | (sm|cm)<<1 | (sm&cm)<<2
	sign := ^(signal.Sign ^ carrier.Sign) & 1
	return Product{Sign: sign, Mag: mag}
}

// SignalValue returns the signed integer a signal sample stands for (±1, ±3).
func SignalValue(s Sample) int {
	v := 1
	if s.Mag&1 != 0 {
		v = 3
	}
	if s.Sign&1 == 0 {
		v = -v
	}
	return v
}

// CarrierValue returns the signed integer a carrier sample stands for (±1, ±2).
func CarrierValue(s Sample) int {
	v := 1
	if s.Mag&1 != 0 {
		v = 2
	}
	if s.Sign&1 == 0 {
		v = -v
	}
	return v
}

// Value returns the signed product.
func (p Product) Value() int {
	v := int(p.Mag & 7)
	if p.Sign&1 == 0 {
		v = -v
	}
	return v
}
