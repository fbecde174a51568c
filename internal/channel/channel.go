// Package channel wires the correlator components of one tracking channel.
//
// Every component is a value with a Next method that computes its next
// registers from its current registers. Step evaluates all of them against
// the state at the start of the cycle and only then commits the results, so
// no component ever observes another component's update from the same cycle.
package channel

import (
	"gps-correlator/internal/accum"
	"gps-correlator/internal/cacode"
	"gps-correlator/internal/epoch"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/nco"
)

// Integrator indexes into Output.Accums.
type Integrator int

const (
	IE Integrator = iota
	IP
	IL
	QE
	QP
	QL
	NumIntegrators
)

var integratorNames = [NumIntegrators]string{"ie", "ip", "il", "qe", "qp", "ql"}

func (i Integrator) String() string {
	if i < 0 || i >= NumIntegrators {
		return "unknown"
	}
	return integratorNames[i]
}

type tap int

const (
	tapEarly tap = iota
	tapPrompt
	tapLate
)

type arm int

const (
	armI arm = iota
	armQ
)

// wiring pairs each integrator with its code tap and mixer arm.
var wiring = [NumIntegrators]struct {
	tap tap
	arm arm
}{
	IE: {tapEarly, armI},
	IP: {tapPrompt, armI},
	IL: {tapLate, armI},
	QE: {tapEarly, armQ},
	QP: {tapPrompt, armQ},
	QL: {tapLate, armQ},
}

// Channel is the register state of one tracking channel. The zero value is
// the reset state.
type Channel struct {
	CodeNCO nco.CodeNCO
	Carrier nco.CarrierNCO
	Gen     cacode.Generator
	Epoch   epoch.Counter
	Accums  [NumIntegrators]accum.Accumulator
}

// Input holds the control signals and the sample for one cycle.
type Input struct {
	Reset   bool
	Tick    bool
	PreTick bool

	CarrierFCW uint32 // 29 bits
	CodeFCW    uint32 // 28 bits

	KeyLoad bool
	Key     uint16 // 10 bits

	SlewEnable bool
	Slew       uint16 // 11 bits

	EpochLoad bool
	Epoch     uint16 // 11 bits

	Sample mixer.Sample
}

// Output is what the channel exposes after a cycle. Dump and the diagnostic
// pulses are those active during the cycle; the latched values are read after
// the cycle's update, so on a dump Accums already holds the finished period.
type Output struct {
	Dump   bool
	Accums [NumIntegrators]int32

	Carrier    uint32
	CodePhase  uint32 // half-chip count << 10 | fine phase
	Epoch      uint16
	EpochCheck uint16

	HalfChip bool
	FullChip bool
	Prompt   uint8
}

// Step advances the channel by one cycle.
func (c Channel) Step(in Input) (Channel, Output) {
	// Both halves of the code phase latch on pre-tick, one cycle ahead of
	// the carrier and epoch latches.
	codeNext, codeOut := c.CodeNCO.Next(nco.CodeInput{
		Reset: in.Reset,
		Tick:  in.PreTick,
		FCW:   in.CodeFCW,
	})
	carrierNext, carrierOut := c.Carrier.Next(nco.CarrierInput{
		Reset: in.Reset,
		Tick:  in.Tick,
		FCW:   in.CarrierFCW,
	})
	genNext, genOut := c.Gen.Next(cacode.GenInput{
		Reset:      in.Reset,
		HalfChip:   codeOut.HalfChip,
		Tick:       in.PreTick,
		KeyLoad:    in.KeyLoad,
		Key:        in.Key,
		SlewEnable: in.SlewEnable,
		Slew:       in.Slew,
	})
	epochNext, _ := c.Epoch.Next(epoch.Input{
		Reset: in.Reset,
		Dump:  genOut.Dump,
		Tick:  in.Tick,
		Load:  in.EpochLoad,
		Value: in.Epoch,
	})

	products := [2]mixer.Product{
		armI: mixer.Mix(in.Sample, mixer.Sample{Sign: carrierOut.ISign, Mag: carrierOut.IMag}),
		armQ: mixer.Mix(in.Sample, mixer.Sample{Sign: carrierOut.QSign, Mag: carrierOut.QMag}),
	}
	codes := [3]uint8{
		tapEarly:  genOut.Early,
		tapPrompt: genOut.Prompt,
		tapLate:   genOut.Late,
	}

	next := Channel{
		CodeNCO: codeNext,
		Carrier: carrierNext,
		Gen:     genNext,
		Epoch:   epochNext,
	}
	for i, w := range wiring {
		if in.Reset {
			continue
		}
		p := products[w.arm]
		next.Accums[i] = c.Accums[i].Next(accum.Input{
			Code: codes[w.tap],
			Sign: p.Sign,
			Mag:  p.Mag,
			Dump: genOut.Dump,
		})
	}

	out := next.Latched()
	out.Dump = genOut.Dump
	out.HalfChip = codeOut.HalfChip
	out.FullChip = genOut.FullChip
	out.Prompt = genOut.Prompt
	return next, out
}

// Latched returns the latched values without advancing the channel. Pulse
// fields are left clear.
func (c Channel) Latched() Output {
	e := c.Epoch.Output()
	out := Output{
		Carrier:    c.Carrier.Value,
		CodePhase:  uint32(c.Gen.CodePhase)<<nco.CodePhaseBits | uint32(c.CodeNCO.Phase),
		Epoch:      e.Epoch,
		EpochCheck: e.Check,
	}
	for i := range c.Accums {
		out.Accums[i] = c.Accums[i].Latched
	}
	return out
}
