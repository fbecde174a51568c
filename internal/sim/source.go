package sim

import (
	"io"
	"math"
	"math/rand/v2"
	"time"

	"gps-correlator/internal/cacode"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/nco"
)

const (
	ChipRateHz = 1.023e6
	L1Hz       = 1575.42e6
)

// satellite mirrors the replica half of a tracking channel, so a channel
// loaded with the same key on the same cycle sees its own prompt code.
type satellite struct {
	key     uint16
	delay   uint16
	code    nco.CodeNCO
	carrier nco.CarrierNCO
	gen     cacode.Generator

	amp        float64
	codeFCW    uint32
	carrierFCW uint32
}

// Replica is what one satellite model produced for a sample.
type Replica struct {
	Prompt  uint8
	Carrier nco.PhasePoint
}

// I and Q return the carrier replica as signed integers.
func (r Replica) I() int {
	return mixer.CarrierValue(mixer.Sample{Sign: r.Carrier.ISign, Mag: r.Carrier.IMag})
}

func (r Replica) Q() int {
	return mixer.CarrierValue(mixer.Sample{Sign: r.Carrier.QSign, Mag: r.Carrier.QMag})
}

// Source synthesizes a quantized IF stream from a Scenario. It implements
// the engine's sample source interface.
type Source struct {
	scn  *Scenario
	sats []satellite
	rng  *rand.Rand

	n       int64
	total   int64
	refresh int64

	// Loop restarts the scenario timeline instead of ending at Duration.
	// Signal state carries over; only keyframe time wraps.
	Loop bool
	// Tap, when set, sees satellite 0's replica for every sample.
	Tap func(r Replica)
}

func NewSource(scn *Scenario) *Source {
	s := &Source{
		scn:     scn,
		rng:     rand.New(rand.NewPCG(scn.script.Seed, scn.script.Seed^0x9E3779B97F4A7C15)),
		total:   scn.Samples(),
		refresh: int64(scn.script.SampleRateHz / 1000),
	}
	if s.refresh <= 0 {
		s.refresh = 1
	}
	s.sats = make([]satellite, len(scn.script.Satellites))
	for i, sat := range scn.script.Satellites {
		s.sats[i] = satellite{key: scn.keys[i], delay: uint16(sat.CodeDelayHalfChips)}
	}
	s.update()
	return s
}

// Position is the number of samples produced so far.
func (s *Source) Position() int64 { return s.n }

func (s *Source) elapsed() time.Duration {
	return time.Duration(float64(s.n) / s.scn.script.SampleRateHz * float64(time.Second))
}

// update refreshes amplitudes and control words from the keyframes.
func (s *Source) update() {
	fs := s.scn.script.SampleRateHz
	for _, st := range s.scn.StateAt(s.elapsed(), s.Loop) {
		sat := &s.sats[st.Index]
		sat.amp = st.Amplitude
		sat.carrierFCW = nco.CarrierFCW(s.scn.script.IFHz+st.DopplerHz, fs)
		sat.codeFCW = nco.CodeFCW(ChipRateHz*(1+st.DopplerHz/L1Hz), fs)
	}
}

func (sat *satellite) step(n int64) Replica {
	codeNext, codeOut := sat.code.Next(nco.CodeInput{FCW: sat.codeFCW})
	carrierNext, carrierOut := sat.carrier.Next(nco.CarrierInput{FCW: sat.carrierFCW})
	genNext, genOut := sat.gen.Next(cacode.GenInput{
		HalfChip:   codeOut.HalfChip,
		KeyLoad:    n == 0,
		Key:        sat.key,
		SlewEnable: n == 1 && sat.delay != 0,
		Slew:       sat.delay,
	})
	sat.code, sat.carrier, sat.gen = codeNext, carrierNext, genNext
	return Replica{Prompt: genOut.Prompt, Carrier: carrierOut.PhasePoint}
}

// Next produces one sample.
func (s *Source) Next() mixer.Sample {
	if s.n > 0 && s.n%s.refresh == 0 {
		s.update()
	}
	x := 0.0
	for i := range s.sats {
		sat := &s.sats[i]
		r := sat.step(s.n)
		if i == 0 && s.Tap != nil {
			s.Tap(r)
		}
		chip := 2*float64(r.Prompt) - 1
		x += sat.amp * chip * float64(r.I())
	}
	if sigma := s.scn.script.NoiseSigma; sigma > 0 {
		x += s.rng.NormFloat64() * sigma
	}
	s.n++
	return quantize(x, s.scn.script.Threshold)
}

func quantize(x, threshold float64) mixer.Sample {
	var out mixer.Sample
	if x >= 0 {
		out.Sign = 1
	}
	if math.Abs(x) > threshold {
		out.Mag = 1
	}
	return out
}

// ReadSamples fills dst until the scenario duration is reached.
func (s *Source) ReadSamples(dst []mixer.Sample) (int, error) {
	n := len(dst)
	if !s.Loop {
		left := s.total - s.n
		if left <= 0 {
			return 0, io.EOF
		}
		if int64(n) > left {
			n = int(left)
		}
	}
	for i := 0; i < n; i++ {
		dst[i] = s.Next()
	}
	return n, nil
}
