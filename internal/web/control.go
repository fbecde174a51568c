package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gps-correlator/internal/cacode"
)

// Controller is the write side of the correlator. *engine.Engine
// implements it.
type Controller interface {
	LoadKey(key uint16)
	Slew(halfChips uint16)
	LoadEpoch(v uint16)
	Reset()
	SetCarrierFCW(v uint32)
	SetCodeFCW(v uint32)
}

// ControlRequest is one register write. Exactly one field must be set,
// except that Reset may be combined with Key to restart on a new code.
type ControlRequest struct {
	PRN        *int    `json:"prn,omitempty"`
	Key        *uint16 `json:"key,omitempty"`
	Slew       *uint16 `json:"slew,omitempty"`
	Epoch      *uint16 `json:"epoch,omitempty"`
	CarrierFCW *uint32 `json:"carrier_fcw,omitempty"`
	CodeFCW    *uint32 `json:"code_fcw,omitempty"`
	Reset      bool    `json:"reset,omitempty"`
}

func decodeControlRequest(body []byte) (ControlRequest, error) {
	var req ControlRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return ControlRequest{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ControlRequest{}, fmt.Errorf("invalid json: trailing data")
	}
	return req, nil
}

func validateControlRequest(req ControlRequest) error {
	if req.PRN != nil && req.Key != nil {
		return fmt.Errorf("prn and key are mutually exclusive")
	}
	if req.PRN != nil {
		if _, ok := cacode.KeyForPRN(*req.PRN); !ok {
			return fmt.Errorf("prn must be in 1..%d", cacode.MaxPRN)
		}
	}
	if req.Key != nil && *req.Key > cacode.KeyMask {
		return fmt.Errorf("key must fit in %d bits", cacode.KeyBits)
	}
	if req.Slew != nil && *req.Slew > cacode.SlewMask {
		return fmt.Errorf("slew must fit in %d bits", cacode.SlewBits)
	}
	if req.Epoch != nil && *req.Epoch > 0x7FF {
		return fmt.Errorf("epoch must fit in 11 bits")
	}
	if req.CarrierFCW != nil && *req.CarrierFCW >= 1<<29 {
		return fmt.Errorf("carrier_fcw must fit in 29 bits")
	}
	if req.CodeFCW != nil && *req.CodeFCW >= 1<<28 {
		return fmt.Errorf("code_fcw must fit in 28 bits")
	}
	load := req.PRN != nil || req.Key != nil
	n := 0
	for _, set := range []bool{load, req.Slew != nil, req.Epoch != nil, req.CarrierFCW != nil, req.CodeFCW != nil} {
		if set {
			n++
		}
	}
	if n > 1 || (n == 0 && !req.Reset) {
		return fmt.Errorf("exactly one register write is required")
	}
	if req.Reset && n == 1 && !load {
		return fmt.Errorf("reset may only be combined with prn or key")
	}
	return nil
}

func applyControlRequest(ctl Controller, req ControlRequest) {
	if req.Reset {
		ctl.Reset()
	}
	switch {
	case req.PRN != nil:
		key, _ := cacode.KeyForPRN(*req.PRN)
		ctl.LoadKey(key)
	case req.Key != nil:
		ctl.LoadKey(*req.Key)
	case req.Slew != nil:
		ctl.Slew(*req.Slew)
	case req.Epoch != nil:
		ctl.LoadEpoch(*req.Epoch)
	case req.CarrierFCW != nil:
		ctl.SetCarrierFCW(*req.CarrierFCW)
	case req.CodeFCW != nil:
		ctl.SetCodeFCW(*req.CodeFCW)
	}
}

// ControlHandler accepts POSTed ControlRequest bodies. Writes take effect on
// the next correlator step.
func ControlHandler(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ctl == nil {
			http.Error(w, "control unavailable", http.StatusNotFound)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
			return
		}
		req, err := decodeControlRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateControlRequest(req); err != nil {
			http.Error(w, fmt.Sprintf("invalid control: %v", err), http.StatusBadRequest)
			return
		}
		applyControlRequest(ctl, req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})
}
