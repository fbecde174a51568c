package cacode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstChipsOctal(key uint16) int {
	v := 0
	for _, c := range Sequence(key)[:10] {
		v = v<<1 | int(c)
	}
	return v
}

func TestKeyForPRN(t *testing.T) {
	want := map[int]uint16{1: 0x3EC, 2: 0x3D8, 3: 0x3B0, 4: 0x360, 5: 0x096}
	for prn, key := range want {
		got, ok := KeyForPRN(prn)
		require.Truef(t, ok, "prn=%d", prn)
		assert.Equalf(t, key, got, "prn=%d", prn)
	}

	_, ok := KeyForPRN(0)
	assert.False(t, ok)
	_, ok = KeyForPRN(MaxPRN + 1)
	assert.False(t, ok)
}

func TestSequence_FirstChips(t *testing.T) {
	// First ten chips in octal, IS-GPS-200 table 3-Ia.
	want := []int{01440, 01620, 01710, 01744}
	for i, w := range want {
		key, _ := KeyForPRN(i + 1)
		assert.Equalf(t, w, firstChipsOctal(key), "prn=%d", i+1)
	}
}

func TestSequence_Balanced(t *testing.T) {
	for prn := 1; prn <= MaxPRN; prn++ {
		key, _ := KeyForPRN(prn)
		ones := 0
		for _, c := range Sequence(key) {
			ones += int(c)
		}
		assert.Equalf(t, 512, ones, "prn=%d", prn)
	}
}

func TestPRNForKey(t *testing.T) {
	for prn := 1; prn <= 33; prn++ {
		key, _ := KeyForPRN(prn)
		assert.Equal(t, prn, PRNForKey(key))
	}
	k34, _ := KeyForPRN(34)
	k37, _ := KeyForPRN(37)
	assert.Equal(t, k34, k37)
	assert.Equal(t, 34, PRNForKey(k37))
	assert.Equal(t, 0, PRNForKey(0))
}

func TestShiftG1_Period(t *testing.T) {
	g := uint16(g1Preset)
	for n := 1; n <= CodeLength; n++ {
		g = shiftG1(g)
		if g == g1Preset {
			require.Equal(t, CodeLength, n)
		}
	}
	assert.Equal(t, uint16(g1Preset), g)
}
