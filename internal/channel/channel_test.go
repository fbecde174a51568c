package channel

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gps-correlator/internal/cacode"
	"gps-correlator/internal/epoch"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/nco"
)

const (
	sampleRate  = 16.368e6
	cyclesPerMs = 16368
)

var (
	codeFCW    = nco.CodeFCW(1.023e6, sampleRate)
	carrierFCW = nco.CarrierFCW(4.092e6, sampleRate)
)

func keyFor(t *testing.T, p int) uint16 {
	t.Helper()
	key, ok := cacode.KeyForPRN(p)
	require.True(t, ok)
	return key
}

func loaded(key uint16) Channel {
	c, _ := Channel{}.Step(Input{KeyLoad: true, Key: key, CodeFCW: codeFCW, CarrierFCW: carrierFCW})
	return c
}

// correlate drives trk with a signal built from a second channel loaded with
// srcKey. The source channel's prompt code and I carrier on each cycle form
// the signal, so with equal keys the two channels are aligned.
func correlate(srcKey, trkKey uint16, amp float64, cycles int) []Output {
	rng := rand.New(rand.NewPCG(1, 2))
	src, trk := loaded(srcKey), loaded(trkKey)

	var dumps []Output
	for n := 0; n < cycles; n++ {
		_, carrier := src.Carrier.Next(nco.CarrierInput{FCW: carrierFCW})
		chip := 2*float64(src.Gen.Output().Prompt) - 1
		i := float64(mixer.CarrierValue(mixer.Sample{Sign: carrier.ISign, Mag: carrier.IMag}))

		x := amp*chip*i + rng.NormFloat64()
		s := mixer.Sample{}
		if x >= 0 {
			s.Sign = 1
		}
		if math.Abs(x) > 1 {
			s.Mag = 1
		}

		in := Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW, Sample: s}
		src, _ = src.Step(in)
		var out Output
		trk, out = trk.Step(in)
		if out.Dump {
			dumps = append(dumps, out)
		}
	}
	return dumps
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestChannel_CorrelatesMatchedCode(t *testing.T) {
	key := keyFor(t, 1)
	dumps := correlate(key, key, 0.5, 4*cyclesPerMs)
	require.GreaterOrEqual(t, len(dumps), 3)

	for _, d := range dumps[1:] {
		a := d.Accums
		assert.Greater(t, a[IP], int32(10000))
		assert.Less(t, abs(a[QP]), a[IP]/4)
		assert.Less(t, a[IE], a[IP])
		assert.Less(t, a[IL], a[IP])
		assert.Greater(t, a[IE], a[IP]/4, "half a chip early still correlates")
	}
}

func TestChannel_RejectsOtherCode(t *testing.T) {
	matched := correlate(keyFor(t, 1), keyFor(t, 1), 0.5, 3*cyclesPerMs)
	other := correlate(keyFor(t, 1), keyFor(t, 2), 0.5, 3*cyclesPerMs)
	require.GreaterOrEqual(t, len(matched), 2)
	require.GreaterOrEqual(t, len(other), 2)

	for _, d := range other[1:] {
		assert.Less(t, abs(d.Accums[IP]), matched[1].Accums[IP]/4)
	}
}

func TestChannel_DumpEveryCodePeriod(t *testing.T) {
	c := loaded(keyFor(t, 5))
	var at []int
	for n := 1; n <= 5*cyclesPerMs; n++ {
		var out Output
		c, out = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
		if out.Dump {
			at = append(at, n)
		}
	}
	require.Len(t, at, 5)
	for i := 1; i < len(at); i++ {
		assert.Equal(t, cyclesPerMs, at[i]-at[i-1])
	}
	assert.Equal(t, epoch.Pack(5, 0), c.Latched().EpochCheck)
}

func TestChannel_SlewDelaysDump(t *testing.T) {
	c := loaded(keyFor(t, 5))
	var at []int
	armed := false
	for n := 1; n <= 4*cyclesPerMs; n++ {
		in := Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW}
		if len(at) == 1 && !armed {
			in.SlewEnable, in.Slew = true, 4
			armed = true
		}
		var out Output
		c, out = c.Step(in)
		if out.Dump {
			at = append(at, n)
		}
	}
	require.GreaterOrEqual(t, len(at), 4)
	// One half-chip is eight cycles at this code rate.
	assert.Equal(t, cyclesPerMs, at[1]-at[0])
	assert.Equal(t, cyclesPerMs+4*8, at[2]-at[1])
	assert.Equal(t, cyclesPerMs, at[3]-at[2])
}

// stepToCarry advances c to the cycle whose code NCO add carries.
func stepToCarry(t *testing.T, c Channel) Channel {
	t.Helper()
	for n := 0; n < 64; n++ {
		if (c.CodeNCO.Accum+codeFCW)>>nco.CodeAccumBits != 0 {
			return c
		}
		c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
	}
	t.Fatalf("no half-chip carry within 64 cycles")
	return c
}

func latchCodePhase(c Channel) (Channel, Output) {
	c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW, PreTick: true})
	return c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW, Tick: true})
}

func wantCodePhase(c Channel) uint32 {
	fine := c.CodeNCO.Accum >> (nco.CodeAccumBits - nco.CodePhaseBits)
	return uint32(c.Gen.EpochCount&cacode.CodePhaseMask)<<nco.CodePhaseBits | fine
}

func TestChannel_TickLatchesPhase(t *testing.T) {
	c := loaded(keyFor(t, 1))
	for n := 0; n < 1000; n++ {
		c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
	}
	c = stepToCarry(t, c)
	before := c

	// The pre-tick cycle itself advances the half-chip count.
	after, _ := c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
	require.NotEqual(t, before.Gen.EpochCount, after.Gen.EpochCount)

	_, out := latchCodePhase(c)
	assert.Equal(t, wantCodePhase(before), out.CodePhase)
	assert.NotZero(t, out.Carrier)
	assert.Equal(t, out.EpochCheck, out.Epoch)
}

func TestChannel_CodePhaseCoherent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key, _ := cacode.KeyForPRN(1)
		c := loaded(key)
		steps := rapid.IntRange(0, 2*cyclesPerMs).Draw(t, "steps")
		for n := 0; n < steps; n++ {
			c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
		}
		_, out := latchCodePhase(c)
		if got, want := out.CodePhase, wantCodePhase(c); got != want {
			t.Fatalf("code phase after %d steps: got %#x want %#x", steps, got, want)
		}
	})
}

func TestChannel_EpochLoad(t *testing.T) {
	c := loaded(keyFor(t, 1))
	c, out := c.Step(Input{EpochLoad: true, Epoch: epoch.Pack(19, 49)})
	assert.Equal(t, epoch.Pack(19, 49), out.EpochCheck)
	assert.Equal(t, uint16(0), out.Epoch)
}

func TestChannel_StepLeavesReceiverUntouched(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := loaded(uint16(rapid.IntRange(1, cacode.KeyMask).Draw(t, "key")))
		steps := rapid.IntRange(0, 3000).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW})
		}
		in := Input{
			CodeFCW:    codeFCW,
			CarrierFCW: carrierFCW,
			Tick:       rapid.Bool().Draw(t, "tick"),
			Sample:     mixer.Sample{Sign: 1, Mag: 1},
		}
		snapshot := c
		a, outA := c.Step(in)
		b, outB := c.Step(in)
		if c != snapshot {
			t.Fatalf("step mutated its receiver")
		}
		if a != b || outA != outB {
			t.Fatalf("step is not deterministic")
		}
	})
}

func TestChannel_Reset(t *testing.T) {
	c := loaded(keyFor(t, 1))
	for n := 0; n < 2*cyclesPerMs; n++ {
		c, _ = c.Step(Input{CodeFCW: codeFCW, CarrierFCW: carrierFCW, Sample: mixer.Sample{Sign: 1}})
	}
	require.NotEqual(t, Channel{}, c)
	c, _ = c.Step(Input{Reset: true, CodeFCW: codeFCW})
	assert.Equal(t, Channel{}, c)
}

func TestIntegrator_String(t *testing.T) {
	assert.Equal(t, "qp", QP.String())
	assert.Equal(t, "unknown", NumIntegrators.String())
}
