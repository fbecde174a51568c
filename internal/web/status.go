package web

import (
	"sync/atomic"
	"time"

	"gps-correlator/internal/engine"
	"gps-correlator/internal/loop"
)

// Info describes the running configuration.
type Info struct {
	RunID        string  `json:"run_id"`
	PRN          int     `json:"prn,omitempty"`
	Key          uint16  `json:"key"`
	Input        string  `json:"input"`
	SampleRateHz float64 `json:"sample_rate_hz"`
	IFHz         float64 `json:"if_hz"`
	ClosedLoop   bool    `json:"closed_loop"`
}

type Status struct {
	startUnixNano int64
	info          atomic.Value // Info
	engine        atomic.Value // func() engine.Snapshot
	tracking      atomic.Value // func() loop.State
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.info.Store(Info{})
	s.engine.Store((func() engine.Snapshot)(nil))
	s.tracking.Store((func() loop.State)(nil))
	return s
}

func (s *Status) SetInfo(info Info) { s.info.Store(info) }

func (s *Status) Info() Info { return s.info.Load().(Info) }

// SetEngine registers the engine snapshot source.
func (s *Status) SetEngine(fn func() engine.Snapshot) { s.engine.Store(fn) }

// SetTracking registers the loop state source. Leave unset for open-loop runs.
func (s *Status) SetTracking(fn func() loop.State) { s.tracking.Store(fn) }

type StatusSnapshot struct {
	Service   string           `json:"service"`
	NowUTC    string           `json:"now_utc"`
	UptimeSec int64            `json:"uptime_sec"`
	Info      Info             `json:"info"`
	Engine    *engine.Snapshot `json:"engine,omitempty"`
	Tracking  *loop.State      `json:"tracking,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "gps-correlator",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Info:      s.Info(),
	}
	if fn := s.engine.Load().(func() engine.Snapshot); fn != nil {
		es := fn()
		snap.Engine = &es
	}
	if fn := s.tracking.Load().(func() loop.State); fn != nil {
		ts := fn()
		snap.Tracking = &ts
	}
	return snap
}
