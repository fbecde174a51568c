// Package cacode generates the GPS L1 C/A ranging code and its chip timing.
//
// The code is the XOR of two 10-stage linear-feedback shift registers. G1 is
// always preset to all ones; G2 is preset to a per-satellite key, which is
// equivalent to the G2 delay of IS-GPS-200. Registers are stored with stage 1
// in bit 9 and stage 10 (the output stage) in bit 0, and shift towards bit 0.
package cacode

const (
	// CodeLength is the number of chips in one C/A code period.
	CodeLength = 1023

	KeyBits = 10
	KeyMask = 1<<KeyBits - 1

	g1Preset = KeyMask
)

// shiftG1 advances G1 (1 + x^3 + x^10) once.
func shiftG1(g uint16) uint16 {
	fb := (g>>7 ^ g) & 1
	return (g >> 1) | fb<<9
}

// shiftG2 advances G2 (1 + x^2 + x^3 + x^6 + x^8 + x^9 + x^10) once.
func shiftG2(g uint16) uint16 {
	fb := (g>>8 ^ g>>7 ^ g>>4 ^ g>>2 ^ g>>1 ^ g) & 1
	return (g >> 1) | fb<<9
}

// g2Delay is the IS-GPS-200 G2 delay in chips for PRN 1..37.
var g2Delay = [...]int{
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862, 863, 950, 947, 948, 950,
}

// MaxPRN is the highest PRN with a key.
const MaxPRN = len(g2Delay)

// prnKeys holds the G2 preset for each PRN. Delaying G2 by d chips is the
// same as starting it from the state it reaches after CodeLength-d shifts.
var prnKeys = func() [MaxPRN]uint16 {
	var keys [MaxPRN]uint16
	for i, d := range g2Delay {
		g := uint16(KeyMask)
		for n := 0; n < CodeLength-d; n++ {
			g = shiftG2(g)
		}
		keys[i] = g
	}
	return keys
}()

// KeyForPRN returns the G2 preset for a PRN in 1..MaxPRN.
func KeyForPRN(prn int) (uint16, bool) {
	if prn < 1 || prn > MaxPRN {
		return 0, false
	}
	return prnKeys[prn-1], true
}

// PRNForKey reports which PRN a key selects, or 0 if it is not a standard key.
// PRN 34 and 37 share a key; 34 is returned.
func PRNForKey(key uint16) int {
	key &= KeyMask
	for i, k := range prnKeys {
		if k == key {
			return i + 1
		}
	}
	return 0
}

// Sequence returns one period of the code for key as 0/1 chips, starting at
// the first chip after a key load.
func Sequence(key uint16) []uint8 {
	g1, g2 := uint16(g1Preset), key&KeyMask
	out := make([]uint8, CodeLength)
	for i := range out {
		out[i] = uint8((g1 ^ g2) & 1)
		g1, g2 = shiftG1(g1), shiftG2(g2)
	}
	return out
}
