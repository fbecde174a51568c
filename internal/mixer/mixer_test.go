package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMix_MagnitudeTruthTable(t *testing.T) {
	cases := []struct {
		sigMag, carMag uint8
		want           uint8
	}{
		{0, 0, 1},
		{1, 0, 3},
		{0, 1, 2},
		{1, 1, 6},
	}
	for _, tc := range cases {
		got := Mix(Sample{Sign: 1, Mag: tc.sigMag}, Sample{Sign: 1, Mag: tc.carMag})
		assert.Equalf(t, tc.want, got.Mag, "sig=%d car=%d", tc.sigMag, tc.carMag)
	}
}

func TestMix_SignIsXNOR(t *testing.T) {
	cases := []struct {
		sigSign, carSign uint8
		want             uint8
	}{
		{0, 0, 1},
		{0, 1, 0},
		{1, 0, 0},
		{1, 1, 1},
	}
	for _, tc := range cases {
		got := Mix(Sample{Sign: tc.sigSign}, Sample{Sign: tc.carSign})
		assert.Equalf(t, tc.want, got.Sign, "sig=%d car=%d", tc.sigSign, tc.carSign)
	}
}

func TestMix_MatchesIntegerProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sig := Sample{
			Sign: uint8(rapid.IntRange(0, 1).Draw(t, "sigSign")),
			Mag:  uint8(rapid.IntRange(0, 1).Draw(t, "sigMag")),
		}
		car := Sample{
			Sign: uint8(rapid.IntRange(0, 1).Draw(t, "carSign")),
			Mag:  uint8(rapid.IntRange(0, 1).Draw(t, "carMag")),
		}
		got := Mix(sig, car).Value()
		want := SignalValue(sig) * CarrierValue(car)
		if got != want {
			t.Fatalf("Mix(%+v,%+v)=%d want %d", sig, car, got, want)
		}
	})
}

func TestMix_IgnoresUpperBits(t *testing.T) {
	a := Mix(Sample{Sign: 0xFF, Mag: 0xFE}, Sample{Sign: 0xFD, Mag: 0xFF})
	b := Mix(Sample{Sign: 1, Mag: 0}, Sample{Sign: 1, Mag: 1})
	assert.Equal(t, b, a)
}
