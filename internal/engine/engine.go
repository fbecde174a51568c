// Package engine runs one tracking channel against a stream of IF samples.
//
// The engine owns the time base, the channel and the status register that
// software reads once per accumulate interval. Control writes are queued and
// applied as one-cycle strobes on the next step, the way register writes on
// the correlator bus behave.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/mixer"
	"gps-correlator/internal/timebase"
)

// DefaultBlockSize is the number of samples read from a source per call.
const DefaultBlockSize = 16 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before Run gives up.
const maxEmptyReads = 100

// SampleSource supplies 2-bit IF samples. ReadSamples returns io.EOF once the
// source is exhausted.
type SampleSource interface {
	ReadSamples(dst []mixer.Sample) (int, error)
}

// Sink receives one report per accumulate interval. Publish is called on the
// goroutine running the engine and must not block for long.
type Sink interface {
	Publish(r Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Report) error

func (f SinkFunc) Publish(r Report) error { return f(r) }

type Config struct {
	RunID string

	TicDivide   uint32
	AccumDivide uint32

	CarrierFCW uint32
	CodeFCW    uint32
	Key        uint16

	// Epoch is loaded together with the key when LoadEpoch is set.
	LoadEpoch bool
	Epoch     uint16

	BlockSize int
	Logger    *log.Logger
}

func (c Config) validate() error {
	if c.AccumDivide == 0 {
		return errors.New("accum divide must be > 0")
	}
	if c.TicDivide == 0 {
		return errors.New("tic divide must be > 0")
	}
	if c.CodeFCW == 0 {
		return errors.New("code fcw must be > 0")
	}
	return nil
}

type control struct {
	reset bool

	keyLoad bool
	key     uint16

	slew       bool
	slewAmount uint16

	epochLoad bool
	epoch     uint16
}

type Engine struct {
	cfg    Config
	logger *log.Logger

	// Registers touched only by the goroutine in Run.
	tb      timebase.TimeBase
	ch      channel.Channel
	cycle   uint64
	newData bool
	last    channel.Output
	lastAt  uint64
	dumps   uint64
	reports uint64

	carrierFCW atomic.Uint32
	codeFCW    atomic.Uint32

	pendingSet atomic.Bool
	mu         sync.Mutex
	pending    control

	sinksMu sync.Mutex
	sinks   []Sink
	sinkErr []string

	snap atomic.Value // Snapshot
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{cfg: cfg, logger: logger}
	e.carrierFCW.Store(cfg.CarrierFCW)
	e.codeFCW.Store(cfg.CodeFCW)
	e.LoadKey(cfg.Key)
	if cfg.LoadEpoch {
		e.LoadEpoch(cfg.Epoch)
	}
	e.snap.Store(Snapshot{RunID: cfg.RunID})
	return e, nil
}

// AddSink registers s for reports. Sinks are called in registration order.
func (e *Engine) AddSink(s Sink) {
	if s == nil {
		return
	}
	e.sinksMu.Lock()
	e.sinks = append(e.sinks, s)
	e.sinkErr = append(e.sinkErr, "")
	e.sinksMu.Unlock()
}

func (e *Engine) SetCarrierFCW(v uint32) { e.carrierFCW.Store(v) }
func (e *Engine) SetCodeFCW(v uint32) { e.codeFCW.Store(v) }
func (e *Engine) CarrierFCW() uint32 { return e.carrierFCW.Load() }
func (e *Engine) CodeFCW() uint32 { return e.codeFCW.Load() }

func (e *Engine) queue(f func(c *control)) {
	e.mu.Lock()
	f(&e.pending)
	e.pendingSet.Store(true)
	e.mu.Unlock()
}

// LoadKey reloads the code generator with a G2 key on the next cycle.
func (e *Engine) LoadKey(key uint16) {
	e.queue(func(c *control) { c.keyLoad, c.key = true, key })
}

// Slew stretches the next code period by halfChips half-chips.
func (e *Engine) Slew(halfChips uint16) {
	e.queue(func(c *control) { c.slew, c.slewAmount = true, halfChips })
}

func (e *Engine) LoadEpoch(v uint16) {
	e.queue(func(c *control) { c.epochLoad, c.epoch = true, v })
}

// Reset returns the time base and channel to their reset state on the next
// cycle. Queued writes from before the reset are dropped and the key has to
// be loaded again; writes queued after it apply one cycle later.
func (e *Engine) Reset() {
	e.queue(func(c *control) { *c = control{reset: true} })
}

// under fills writes missing from c with those in older. A newer reset
// discards older entirely.
func (c *control) under(older control) {
	if c.reset {
		return
	}
	if !c.keyLoad && older.keyLoad {
		c.keyLoad, c.key = true, older.key
	}
	if !c.slew && older.slew {
		c.slew, c.slewAmount = true, older.slewAmount
	}
	if !c.epochLoad && older.epochLoad {
		c.epochLoad, c.epoch = true, older.epoch
	}
}

func (e *Engine) takePending() control {
	if !e.pendingSet.Load() {
		return control{}
	}
	e.mu.Lock()
	c := e.pending
	e.pending = control{}
	e.pendingSet.Store(false)
	e.mu.Unlock()
	return c
}

// Step advances the time base and the channel by one cycle.
func (e *Engine) Step(s mixer.Sample) {
	c := e.takePending()
	if c.reset {
		// Writes queued after a reset land on the cycle that follows it.
		carry := c
		carry.reset = false
		c = control{reset: true}
		if carry != (control{}) {
			e.queue(func(p *control) { p.under(carry) })
		}
	}

	tbNext, tb := e.tb.Next(timebase.Input{
		Reset:       c.reset,
		TicDivide:   e.cfg.TicDivide,
		AccumDivide: e.cfg.AccumDivide,
	})
	chNext, out := e.ch.Step(channel.Input{
		Reset:      c.reset,
		Tick:       tb.Tick,
		PreTick:    tb.PreTick,
		CarrierFCW: e.carrierFCW.Load(),
		CodeFCW:    e.codeFCW.Load(),
		KeyLoad:    c.keyLoad,
		Key:        c.key,
		SlewEnable: c.slew,
		Slew:       c.slewAmount,
		EpochLoad:  c.epochLoad,
		Epoch:      c.epoch,
		Sample:     s,
	})
	e.tb, e.ch = tbNext, chNext

	if c.reset {
		e.newData = false
	}
	if out.Dump {
		e.newData = true
		e.last = out
		e.lastAt = e.cycle
		e.dumps++
	}
	if tb.Accum && !c.reset {
		e.report(out)
	}
	e.cycle++
}

func (e *Engine) report(out channel.Output) {
	r := Report{
		RunID:      e.cfg.RunID,
		Cycle:      e.cycle,
		NewData:    e.newData,
		DumpCycle:  e.lastAt,
		Dumps:      e.dumps,
		Accums:     e.last.Accums,
		Epoch:      out.Epoch,
		EpochCheck: out.EpochCheck,
		Carrier:    out.Carrier,
		CodePhase:  out.CodePhase,
		CarrierFCW: e.carrierFCW.Load(),
		CodeFCW:    e.codeFCW.Load(),
	}
	e.newData = false
	e.reports++

	e.snap.Store(Snapshot{
		RunID:   e.cfg.RunID,
		Cycle:   e.cycle,
		Dumps:   e.dumps,
		Reports: e.reports,
		Last:    r,
		HasLast: true,
	})

	e.sinksMu.Lock()
	sinks := e.sinks
	e.sinksMu.Unlock()
	for i, s := range sinks {
		err := s.Publish(r)
		e.noteSinkErr(i, err)
	}
}

// noteSinkErr logs a sink failure once until the sink recovers or fails
// differently.
func (e *Engine) noteSinkErr(i int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.sinksMu.Lock()
	prev := e.sinkErr[i]
	e.sinkErr[i] = msg
	e.sinksMu.Unlock()

	switch {
	case msg != "" && msg != prev:
		e.logger.Warn("report sink failed", "sink", i, "err", err)
	case msg == "" && prev != "":
		e.logger.Info("report sink recovered", "sink", i)
	}
}

// Snapshot returns the state as of the last report. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	return e.snap.Load().(Snapshot)
}

// Run steps the engine once per sample until src is exhausted or ctx is done.
// The context is checked between blocks. A source that keeps returning no
// samples and no error fails with io.ErrNoProgress.
func (e *Engine) Run(ctx context.Context, src SampleSource) error {
	if src == nil {
		return errors.New("sample source is nil")
	}
	buf := make([]mixer.Sample, e.cfg.BlockSize)
	e.logger.Info("engine started", "run", e.cfg.RunID, "carrier_fcw", e.CarrierFCW(), "code_fcw", e.CodeFCW())
	empty := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.ReadSamples(buf)
		for _, s := range buf[:n] {
			e.Step(s)
		}
		if n == 0 && err == nil {
			if empty++; empty >= maxEmptyReads {
				return fmt.Errorf("read samples: %w", io.ErrNoProgress)
			}
			continue
		}
		empty = 0
		if errors.Is(err, io.EOF) {
			snap := e.Snapshot()
			e.logger.Info("engine finished", "run", e.cfg.RunID, "cycles", e.cycle, "dumps", e.dumps, "reports", snap.Reports)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read samples: %w", err)
		}
	}
}

// Cycles returns the number of cycles stepped. Only meaningful from the
// goroutine that calls Step or after Run returns.
func (e *Engine) Cycles() uint64 { return e.cycle }
