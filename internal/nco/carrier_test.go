package nco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func signed(sign, mag uint8, big int) int {
	v := 1
	if mag != 0 {
		v = big
	}
	if sign == 0 {
		v = -v
	}
	return v
}

func TestPhaseTable_ConstantEnvelope(t *testing.T) {
	for key := uint8(0); key < 16; key++ {
		p := Phase(key)
		i := signed(p.ISign, p.IMag, 2)
		q := signed(p.QSign, p.QMag, 2)
		assert.Equalf(t, 5, i*i+q*q, "key=%d", key)
	}
}

func TestPhaseTable_HalfTurnNegates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := uint8(rapid.IntRange(0, 7).Draw(t, "key"))
		a, b := Phase(key), Phase(key+8)
		if a.IMag != b.IMag || a.QMag != b.QMag || a.ISign == b.ISign || a.QSign == b.QSign {
			t.Fatalf("key %d and %d are not opposite: %+v %+v", key, key+8, a, b)
		}
	})
}

func TestPhaseTable_KeysPairUp(t *testing.T) {
	for key := uint8(0); key < 16; key += 2 {
		assert.Equal(t, Phase(key), Phase(key+1))
	}
	assert.NotEqual(t, Phase(1), Phase(2))
}

func TestCarrierNCO_KeyFromPostAddSum(t *testing.T) {
	n := CarrierNCO{Accum: 1<<26 - 1}
	_, out := n.Next(CarrierInput{FCW: 1})
	assert.Equal(t, uint8(1), out.Key)
	assert.Equal(t, Phase(1), out.PhasePoint)
}

func TestCarrierNCO_CountsCyclesAndLatchesOnTick(t *testing.T) {
	fcw := CarrierFCW(4.092e6, 16.368e6)
	require.Equal(t, uint32(1<<28), fcw)

	var n CarrierNCO
	for i := 0; i < 40; i++ {
		n, _ = n.Next(CarrierInput{FCW: fcw})
	}
	// 40 adds of a quarter turn = 10 carries.
	require.Equal(t, uint32(10), n.Cycles)

	n, _ = n.Next(CarrierInput{FCW: 1 << 20})
	require.Equal(t, uint32(1<<20), n.Accum)

	next, out := n.Next(CarrierInput{FCW: fcw, Tick: true})
	assert.Equal(t, uint32(0), out.Value, "value is a latch, visible after the tick")
	assert.Equal(t, uint32(10<<10|1), next.Value)
	assert.Equal(t, uint32(0), next.Cycles)
}

func TestCarrierNCO_CycleCounterWraps(t *testing.T) {
	n := CarrierNCO{Accum: carrierAccumMask, Cycles: carrierCycleMask}
	next, out := n.Next(CarrierInput{FCW: 1})
	assert.True(t, out.Carry)
	assert.Equal(t, uint32(0), next.Cycles)
	assert.Equal(t, uint32(0), next.Accum)
}

func TestCarrierNCO_Reset(t *testing.T) {
	n := CarrierNCO{Accum: 5, Cycles: 6, Value: 7}
	next, _ := n.Next(CarrierInput{Reset: true, FCW: 1})
	assert.Equal(t, CarrierNCO{}, next)
}
