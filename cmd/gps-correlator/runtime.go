package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gps-correlator/internal/announce"
	"gps-correlator/internal/cacode"
	"gps-correlator/internal/config"
	"gps-correlator/internal/engine"
	"gps-correlator/internal/frontend"
	"gps-correlator/internal/ifsample"
	"gps-correlator/internal/influx"
	"gps-correlator/internal/loop"
	"gps-correlator/internal/metrics"
	"gps-correlator/internal/nco"
	"gps-correlator/internal/record"
	"gps-correlator/internal/sim"
	"gps-correlator/internal/strobe"
	"gps-correlator/internal/udp"
	"gps-correlator/internal/web"
)

type runtime struct {
	cfg    config.Config
	runID  string
	logger *log.Logger

	eng     *engine.Engine
	src     engine.SampleSource
	status  *web.Status
	tracker *loop.Tracker
	reports *web.ReportBroadcaster
	metrics *metrics.Collector
	rec     *record.Writer
	webLogs *web.LogBuffer

	closers []io.Closer
}

// resolveKey maps the channel section to a G2 key. An explicit key wins.
func resolveKey(c config.ChannelConfig) (uint16, error) {
	if c.Key != 0 {
		return c.Key, nil
	}
	key, ok := cacode.KeyForPRN(c.PRN)
	if !ok {
		return 0, fmt.Errorf("no key for prn %d", c.PRN)
	}
	return key, nil
}

// controlWords derives the initial NCO words from rate, IF and Doppler unless
// the config overrides them.
func controlWords(c config.ChannelConfig) (carrierFCW, codeFCW uint32) {
	carrierFCW = c.CarrierFCW
	if carrierFCW == 0 {
		carrierFCW = nco.CarrierFCW(c.IFHz+c.DopplerHz, c.SampleRateHz)
	}
	codeFCW = c.CodeFCW
	if codeFCW == 0 {
		codeFCW = nco.CodeFCW(loop.ChipRateHz*(1+c.DopplerHz/frontend.L1Hz), c.SampleRateHz)
	}
	return carrierFCW, codeFCW
}

func openSource(ctx context.Context, cfg config.Config, logger *log.Logger) (engine.SampleSource, io.Closer, error) {
	in := cfg.Input
	switch in.Source {
	case "file":
		format, err := ifsample.ParseFormat(in.Format)
		if err != nil {
			return nil, nil, err
		}
		r, err := ifsample.Open(in.Path, ifsample.Options{Format: format, Threshold: in.Threshold, Loop: in.Loop})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reading samples", "path", in.Path, "format", format, "samples", r.Len())
		return r, r, nil
	case "sim":
		script, err := sim.LoadScenarioScript(in.Scenario)
		if err != nil {
			return nil, nil, fmt.Errorf("load scenario: %w", err)
		}
		if script.SampleRateHz == 0 {
			script.SampleRateHz = cfg.Channel.SampleRateHz
		}
		if script.IFHz == 0 {
			script.IFHz = cfg.Channel.IFHz
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			return nil, nil, fmt.Errorf("scenario: %w", err)
		}
		src := sim.NewSource(scn)
		src.Loop = in.Loop
		logger.Info("simulating samples", "scenario", in.Scenario, "satellites", len(script.Satellites), "duration", scn.Duration())
		return src, nil, nil
	case "rtlsdr":
		devs, err := frontend.DetectDevices(ctx)
		if err != nil {
			return nil, nil, err
		}
		dev, err := frontend.SelectDevice(devs, in.Device)
		if err != nil {
			return nil, nil, err
		}
		threshold := in.Threshold
		if threshold == 0 {
			threshold = ifsample.DefaultThreshold
		}
		c, err := frontend.StartCapture(ctx, frontend.CaptureParams{
			Device:       dev,
			SampleRateHz: cfg.Channel.SampleRateHz,
			IFHz:         cfg.Channel.IFHz,
			GainDB:       in.GainDB,
		}, threshold)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("capturing from rtl-sdr", "devices", frontend.FormatDevices(devs), "selected", dev.Index)
		return c, c, nil
	}
	return nil, nil, fmt.Errorf("unknown input source %q", in.Source)
}

func newRuntime(ctx context.Context, cfg config.Config, logger *log.Logger, logs *web.LogBuffer) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		runID:  uuid.NewString(),
		logger: logger,
		status: web.NewStatus(),
	}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	key, err := resolveKey(cfg.Channel)
	if err != nil {
		return nil, err
	}
	carrierFCW, codeFCW := controlWords(cfg.Channel)

	ecfg := engine.Config{
		RunID:       rt.runID,
		TicDivide:   cfg.TicDivide(),
		AccumDivide: cfg.AccumDivide(),
		CarrierFCW:  carrierFCW,
		CodeFCW:     codeFCW,
		Key:         key,
		Logger:      logger,
	}
	if cfg.Channel.Epoch != nil {
		ecfg.LoadEpoch = true
		ecfg.Epoch = *cfg.Channel.Epoch
	}
	rt.eng, err = engine.New(ecfg)
	if err != nil {
		return nil, err
	}

	src, closer, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.src = src
	rt.addCloser(closer)

	if cfg.Tracking.ClosedLoop {
		rt.tracker = loop.NewTracker(loop.Config{
			SampleRateHz:   cfg.Channel.SampleRateHz,
			IFHz:           cfg.Channel.IFHz,
			DopplerHz:      cfg.Channel.DopplerHz,
			PLLBandwidthHz: cfg.Tracking.PLLBandwidthHz,
			DLLBandwidthHz: cfg.Tracking.DLLBandwidthHz,
			DumpSeconds:    float64(cfg.AccumDivide()+1) / cfg.Channel.SampleRateHz,
			Logger:         logger,
		}, rt.eng)
		rt.eng.AddSink(rt.tracker)
		rt.status.SetTracking(rt.tracker.State)
	}

	if cfg.Record.Enable {
		w, err := record.CreateWriter(cfg.Record.Path, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		w.OnlyNew = cfg.Record.OnlyNew
		rt.addCloser(w)
		if err := writeRecordHeader(w, rt.runID, key, carrierFCW, codeFCW); err != nil {
			return nil, err
		}
		rt.rec = w
		rt.eng.AddSink(w)
		logger.Info("recording reports", "path", w.Path(), "only_new", w.OnlyNew)
	}

	if cfg.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.UDP.Dest)
		if err != nil {
			return nil, fmt.Errorf("udp: %w", err)
		}
		b.OnlyNew = true
		rt.addCloser(b)
		rt.eng.AddSink(b)
		logger.Info("sending reports", "dest", b.Dest())
	}

	if cfg.Influx.Enable {
		s := influx.New(influx.Options{
			URL:          cfg.Influx.URL,
			Token:        cfg.Influx.Token,
			Org:          cfg.Influx.Org,
			Bucket:       cfg.Influx.Bucket,
			Measurement:  cfg.Influx.Measurement,
			RunID:        rt.runID,
			SampleRateHz: cfg.Channel.SampleRateHz,
			Logger:       logger,
		})
		rt.addCloser(s)
		rt.eng.AddSink(s)
	}

	if cfg.Strobe.Enable {
		ev, err := strobe.ParseEvent(cfg.Strobe.Event)
		if err != nil {
			return nil, err
		}
		s, err := strobe.Open(cfg.Strobe.Pin, ev)
		if err != nil {
			// Keep running without the strobe.
			logger.Warn("strobe init failed", "err", err)
		} else {
			rt.addCloser(s)
			rt.eng.AddSink(s)
		}
	}

	if cfg.Web.Enable {
		rt.metrics = metrics.New(rt.runID)
		rt.reports = web.NewReportBroadcaster()
		rt.eng.AddSink(rt.metrics)
		rt.eng.AddSink(rt.reports)
		rt.status.SetEngine(rt.eng.Snapshot)
	}
	rt.status.SetInfo(web.Info{
		RunID:        rt.runID,
		PRN:          cacode.PRNForKey(key),
		Key:          key,
		Input:        cfg.Input.Source,
		SampleRateHz: cfg.Channel.SampleRateHz,
		IFHz:         cfg.Channel.IFHz,
		ClosedLoop:   cfg.Tracking.ClosedLoop,
	})
	rt.webLogs = logs

	ok = true
	return rt, nil
}

// writeRecordHeader notes the run parameters at the top of a record log and
// flushes them so an unwritable log fails at startup.
func writeRecordHeader(w *record.Writer, runID string, key uint16, carrierFCW, codeFCW uint32) error {
	if err := w.Comment(fmt.Sprintf("run_id=%s key=%#o carrier_fcw=%d code_fcw=%d", runID, key, carrierFCW, codeFCW)); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

func (rt *runtime) addCloser(c io.Closer) {
	if c != nil {
		rt.closers = append(rt.closers, c)
	}
}

// Run drives the engine until the source ends or ctx is cancelled, serving
// the web surface alongside.
func (rt *runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return rt.eng.Run(runCtx, rt.src)
	})

	if rt.cfg.Web.Enable {
		handler := web.Handler(rt.status, web.Handlers{
			Logs:    rt.webLogs,
			Reports: rt.reports,
			Control: rt.eng,
			Metrics: rt.metrics.Handler(),
		})
		g.Go(func() error {
			rt.logger.Info("web listening", "addr", rt.cfg.Web.Listen)
			return ignoreCanceled(web.Serve(runCtx, rt.cfg.Web.Listen, handler))
		})
		if rt.cfg.Web.Announce {
			g.Go(func() error {
				port, err := announce.PortFromListen(rt.cfg.Web.Listen)
				if err != nil {
					return err
				}
				key := rt.key()
				text := map[string]string{
					"run_id": rt.runID,
					"prn":    strconv.Itoa(cacode.PRNForKey(key)),
					"key":    fmt.Sprintf("%#o", key),
				}
				if err := announce.Run(runCtx, rt.cfg.Web.Name, port, text, rt.logger); err != nil {
					// Discovery is optional.
					rt.logger.Warn("announce failed", "err", err)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	snap := rt.eng.Snapshot()
	rt.logger.Info("gps-correlator stopping", "cycles", rt.eng.Cycles(), "dumps", snap.Dumps, "reports", snap.Reports)
	if rt.tracker != nil {
		st := rt.tracker.State()
		rt.logger.Info("tracking state", "carrier_hz", st.CarrierHz, "code_hz", st.CodeHz, "phase_locked", st.PhaseLocked)
	}
	if err != nil && ctx.Err() != nil {
		// Shutdown was requested.
		return nil
	}
	return err
}

func (rt *runtime) key() uint16 {
	key, _ := resolveKey(rt.cfg.Channel)
	return key
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases sinks and sources in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.logger.Warn("close failed", "err", err)
		}
	}
	rt.closers = nil
}
