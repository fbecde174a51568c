package record

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing.
//
// Record spacing is the cycle difference at sampleRateHz. The callback is
// invoked for every data record; START markers reset the origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(records []Record, sampleRateHz, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(r Record) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sampleRateHz <= 0 {
		return fmt.Errorf("sampleRateHz must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var last uint64
		var haveLast bool

		for _, r := range records {
			if r.Start {
				haveLast = false
				continue
			}

			if haveLast && r.Cycle > last {
				wait := time.Duration(math.Round(float64(r.Cycle-last) / sampleRateHz / speedMultiplier * float64(time.Second)))
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r); err != nil {
				return err
			}

			last = r.Cycle
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
