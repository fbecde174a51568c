package loop

// LockDetector estimates carrier phase lock from prompt I/Q over a window of
// dumps. Cos2Phi approaches 1 when all prompt energy sits in I.
type LockDetector struct {
	Window    int
	Threshold float64

	n      int
	ii, qq float64

	cos2phi float64
	locked  bool
}

func NewLockDetector(window int, threshold float64) *LockDetector {
	if window <= 0 {
		window = 20
	}
	if threshold <= 0 {
		threshold = 0.8
	}
	return &LockDetector{Window: window, Threshold: threshold}
}

// Add accumulates one dump and re-evaluates at the end of each window.
func (d *LockDetector) Add(ip, qp int32) {
	i, q := float64(ip), float64(qp)
	d.ii += i * i
	d.qq += q * q
	d.n++
	if d.n < d.Window {
		return
	}
	if p := d.ii + d.qq; p > 0 {
		d.cos2phi = (d.ii - d.qq) / p
	} else {
		d.cos2phi = 0
	}
	d.locked = d.cos2phi >= d.Threshold
	d.n, d.ii, d.qq = 0, 0, 0
}

func (d *LockDetector) Cos2Phi() float64 { return d.cos2phi }
func (d *LockDetector) Locked() bool { return d.locked }
