// Package influx writes correlator reports to InfluxDB 2.x.
package influx

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/engine"
)

type Options struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	RunID       string
	// Points are stamped Start + Cycle/SampleRateHz.
	SampleRateHz float64
	Start        time.Time
	Logger       *log.Logger
}

type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

type Sink struct {
	opts  Options
	w     pointWriter
	close func()
	done  chan struct{}
	once  sync.Once
}

// New connects a non-blocking write API. Write errors are logged
// asynchronously; Publish never blocks on the network.
func New(opts Options) *Sink {
	if opts.Measurement == "" {
		opts.Measurement = "correlator"
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC()
	}
	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().SetBatchSize(500).SetPrecision(time.Microsecond))
	api := client.WriteAPI(opts.Org, opts.Bucket)

	s := newSink(opts, api, client.Close)
	go func() {
		defer close(s.done)
		for err := range api.Errors() {
			if opts.Logger != nil {
				opts.Logger.Warn("influx write failed", "err", err)
			}
		}
	}()
	return s
}

func newSink(opts Options, w pointWriter, closeFn func()) *Sink {
	return &Sink{opts: opts, w: w, close: closeFn, done: make(chan struct{})}
}

// Point renders r as signed integer fields; stale reports carry only the
// counters and control words.
func (s *Sink) Point(r engine.Report) *write.Point {
	ts := s.opts.Start
	if s.opts.SampleRateHz > 0 {
		ts = ts.Add(time.Duration(float64(r.Cycle) / s.opts.SampleRateHz * float64(time.Second)))
	}
	p := influxdb2.NewPointWithMeasurement(s.opts.Measurement).
		AddField("cycle", int64(r.Cycle)).
		AddField("dumps", int64(r.Dumps)).
		AddField("carrier_fcw", int64(r.CarrierFCW)).
		AddField("code_fcw", int64(r.CodeFCW)).
		SetTime(ts)
	if s.opts.RunID != "" {
		p.AddTag("run_id", s.opts.RunID)
	}
	if r.NewData {
		for i := channel.Integrator(0); i < channel.NumIntegrators; i++ {
			p.AddField(i.String(), int64(r.Get(i)))
		}
		p.AddField("epoch", int64(r.Epoch)).
			AddField("carrier", int64(r.Carrier)).
			AddField("code_phase", int64(r.CodePhase))
	}
	return p
}

func (s *Sink) Publish(r engine.Report) error {
	s.w.WritePoint(s.Point(r))
	return nil
}

func (s *Sink) Close() error {
	s.once.Do(func() {
		s.w.Flush()
		if s.close != nil {
			s.close()
			<-s.done
		}
	})
	return nil
}
