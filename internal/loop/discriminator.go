// Package loop closes the carrier and code tracking loops in software, once
// per dump, from the integrator values the correlator reports.
package loop

import (
	"math"

	"gps-correlator/internal/channel"
)

// CodeError is the normalized early-minus-late envelope discriminator. A
// positive value means the signal correlates better with the early tap, so
// the replica lags the signal. The result is in chips for taps one half-chip
// from prompt.
func CodeError(a [channel.NumIntegrators]int32) float64 {
	e := math.Hypot(float64(a[channel.IE]), float64(a[channel.QE]))
	l := math.Hypot(float64(a[channel.IL]), float64(a[channel.QL]))
	if e+l == 0 {
		return 0
	}
	return 0.5 * (e - l) / (e + l)
}

// CarrierError is the Costas two-quadrant arctangent discriminator in cycles,
// insensitive to data bit sign. The Q arm multiplies by the sine replica, so
// QP carries the sign of IP when the replica phase leads the signal.
func CarrierError(ip, qp int32) float64 {
	if ip == 0 {
		switch {
		case qp > 0:
			return 0.25
		case qp < 0:
			return -0.25
		}
		return 0
	}
	return math.Atan(float64(qp)/float64(ip)) / (2 * math.Pi)
}

// Filter is the second-order loop filter of a classic software receiver:
// natural frequency from the noise bandwidth and a damping of 0.707.
type Filter struct {
	Aw float64
	W2 float64

	out     float64
	lastErr float64
}

func NewFilter(bandwidthHz float64) Filter {
	wn := bandwidthHz / 0.53
	return Filter{Aw: 1.414 * wn, W2: wn * wn}
}

// Update feeds one discriminator output taken over dt seconds and returns the
// accumulated correction.
func (f *Filter) Update(err, dt float64) float64 {
	f.out += f.Aw*(err-f.lastErr) + f.W2*dt*err
	f.lastErr = err
	return f.out
}

func (f *Filter) Output() float64 { return f.out }

func (f *Filter) Reset() { f.out, f.lastErr = 0, 0 }
