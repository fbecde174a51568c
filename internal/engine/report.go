package engine

import "gps-correlator/internal/channel"

// Report is the status register contents read at one accumulate pulse.
type Report struct {
	RunID string `json:"run_id,omitempty"`
	Cycle uint64 `json:"cycle"`

	// NewData is set when a dump happened since the previous report.
	NewData   bool                          `json:"new_data"`
	DumpCycle uint64                        `json:"dump_cycle"`
	Dumps     uint64                        `json:"dumps"`
	Accums    [channel.NumIntegrators]int32 `json:"accums"`

	Epoch      uint16 `json:"epoch"`
	EpochCheck uint16 `json:"epoch_check"`
	Carrier    uint32 `json:"carrier"`
	CodePhase  uint32 `json:"code_phase"`

	CarrierFCW uint32 `json:"carrier_fcw"`
	CodeFCW    uint32 `json:"code_fcw"`
}

func (r Report) Get(i channel.Integrator) int32 { return r.Accums[i] }

type Snapshot struct {
	RunID   string `json:"run_id"`
	Cycle   uint64 `json:"cycle"`
	Dumps   uint64 `json:"dumps"`
	Reports uint64 `json:"reports"`
	HasLast bool   `json:"has_last"`
	Last    Report `json:"last"`
}
