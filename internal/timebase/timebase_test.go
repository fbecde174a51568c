package timebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTimeBase_OnePulsePerPeriod(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := uint32(rapid.IntRange(0, 300).Draw(t, "divide"))
		m := uint32(rapid.IntRange(0, 300).Draw(t, "accumDivide"))

		tb, _ := TimeBase{Tic: 5, Accum: 9}.Next(Input{Reset: true})
		var tics, accums []int
		for i := 0; i < 5*int(n+1)+1; i++ {
			var out Output
			tb, out = tb.Next(Input{TicDivide: n, AccumDivide: m})
			if out.PreTick {
				tics = append(tics, i)
			}
			if out.Accum {
				accums = append(accums, i)
			}
		}
		for k, at := range tics {
			if at != k*int(n+1) {
				t.Fatalf("tic %d at cycle %d, want %d", k, at, k*int(n+1))
			}
		}
		if len(tics) != 6 {
			t.Fatalf("got %d tics", len(tics))
		}
		for k, at := range accums {
			if at != k*int(m+1) {
				t.Fatalf("accum %d at cycle %d, want %d", k, at, k*int(m+1))
			}
		}
	})
}

func TestTimeBase_TickFollowsPreTick(t *testing.T) {
	var tb TimeBase
	var pre, tick []bool
	for i := 0; i < 20; i++ {
		var out Output
		tb, out = tb.Next(Input{TicDivide: 3})
		pre = append(pre, out.PreTick)
		tick = append(tick, out.Tick)
	}
	assert.False(t, tick[0])
	for i := 1; i < len(pre); i++ {
		assert.Equalf(t, pre[i-1], tick[i], "cycle %d", i)
	}
}

func TestTimeBase_DivideMasked(t *testing.T) {
	next, _ := TimeBase{}.Next(Input{TicDivide: 0xFF000010, AccumDivide: 1 << 24})
	assert.Equal(t, uint32(0x10), next.Tic)
	assert.Equal(t, uint32(0), next.Accum)
}

func TestTimeBase_WrapKeepsWidth(t *testing.T) {
	assert.Equal(t, uint32(DivideMask), countDown(0, DivideMask))
	assert.Equal(t, uint32(DivideMask-1), countDown(DivideMask, 0))
}

func TestDivide(t *testing.T) {
	assert.Equal(t, uint32(16367), Divide(16368))
	assert.Equal(t, uint32(0), Divide(0))
}
