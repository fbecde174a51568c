package loop

import (
	"sync"

	"github.com/charmbracelet/log"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/engine"
	"gps-correlator/internal/nco"
)

const (
	ChipRateHz = 1.023e6
	// carrierAiding is the L1 carrier to C/A chip rate ratio.
	carrierAiding = 1540.0
)

// Controller accepts control word updates. *engine.Engine implements it.
type Controller interface {
	SetCarrierFCW(v uint32)
	SetCodeFCW(v uint32)
}

type Config struct {
	SampleRateHz float64
	IFHz         float64
	// DopplerHz seeds the carrier and code frequencies.
	DopplerHz float64

	PLLBandwidthHz float64
	DLLBandwidthHz float64
	// DumpSeconds is the integration time per dump.
	DumpSeconds float64

	Logger *log.Logger
}

// State is a copy of the tracker's loop values.
type State struct {
	Updates     uint64  `json:"updates"`
	CarrierHz   float64 `json:"carrier_hz"`
	CodeHz      float64 `json:"code_hz"`
	CarrierErr  float64 `json:"carrier_err_cycles"`
	CodeErr     float64 `json:"code_err_chips"`
	Cos2Phi     float64 `json:"cos2phi"`
	PhaseLocked bool    `json:"phase_locked"`
	CarrierFCW  uint32  `json:"carrier_fcw"`
	CodeFCW     uint32  `json:"code_fcw"`
}

// Tracker runs the PLL and DLL on every report that carries a new dump and
// writes the resulting control words back to the correlator.
type Tracker struct {
	cfg    Config
	ctl    Controller
	logger *log.Logger

	pll  Filter
	dll  Filter
	lock *LockDetector

	baseCarrierHz float64
	baseCodeHz    float64

	mu    sync.Mutex
	state State
}

func NewTracker(cfg Config, ctl Controller) *Tracker {
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16.368e6
	}
	if cfg.PLLBandwidthHz <= 0 {
		cfg.PLLBandwidthHz = 15
	}
	if cfg.DLLBandwidthHz <= 0 {
		cfg.DLLBandwidthHz = 2
	}
	if cfg.DumpSeconds <= 0 {
		cfg.DumpSeconds = 1e-3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	t := &Tracker{
		cfg:           cfg,
		ctl:           ctl,
		logger:        logger,
		pll:           NewFilter(cfg.PLLBandwidthHz),
		dll:           NewFilter(cfg.DLLBandwidthHz),
		lock:          NewLockDetector(20, 0.8),
		baseCarrierHz: cfg.IFHz + cfg.DopplerHz,
		baseCodeHz:    ChipRateHz * (1 + cfg.DopplerHz/(ChipRateHz*carrierAiding)),
	}
	t.state.CarrierHz = t.baseCarrierHz
	t.state.CodeHz = t.baseCodeHz
	return t
}

// Publish implements engine.Sink.
func (t *Tracker) Publish(r engine.Report) error {
	if !r.NewData {
		return nil
	}
	t.Update(r.Accums)
	return nil
}

// Update runs both loops on one set of integrator values.
func (t *Tracker) Update(a [channel.NumIntegrators]int32) State {
	dt := t.cfg.DumpSeconds
	carrierErr := CarrierError(a[channel.IP], a[channel.QP])
	codeErr := CodeError(a)

	carrierHz := t.baseCarrierHz - t.pll.Update(carrierErr, dt)
	doppler := carrierHz - t.cfg.IFHz
	codeHz := t.baseCodeHz + t.dll.Update(codeErr, dt) + (doppler-t.cfg.DopplerHz)/carrierAiding

	carrierFCW := nco.CarrierFCW(carrierHz, t.cfg.SampleRateHz)
	codeFCW := nco.CodeFCW(codeHz, t.cfg.SampleRateHz)
	if t.ctl != nil {
		t.ctl.SetCarrierFCW(carrierFCW)
		t.ctl.SetCodeFCW(codeFCW)
	}

	t.lock.Add(a[channel.IP], a[channel.QP])

	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.state.PhaseLocked
	t.state = State{
		Updates:     t.state.Updates + 1,
		CarrierHz:   carrierHz,
		CodeHz:      codeHz,
		CarrierErr:  carrierErr,
		CodeErr:     codeErr,
		Cos2Phi:     t.lock.Cos2Phi(),
		PhaseLocked: t.lock.Locked(),
		CarrierFCW:  carrierFCW,
		CodeFCW:     codeFCW,
	}
	if was != t.state.PhaseLocked {
		t.logger.Info("phase lock changed", "locked", t.state.PhaseLocked, "cos2phi", t.state.Cos2Phi)
	}
	return t.state
}

// State returns a copy of the latest loop values. Safe for concurrent use.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
