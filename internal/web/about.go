package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
)

// AboutResponse identifies the build and the satellite this run tracks.
type AboutResponse struct {
	Service string `json:"service"`
	RunID   string `json:"run_id"`
	PRN     int    `json:"prn,omitempty"`
	Key     string `json:"key"`
	Input   string `json:"input"`

	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

func buildDetails(resp *AboutResponse) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	resp.Module = bi.Main.Path
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		resp.Module += "@" + bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			resp.Commit = s.Value
		}
		if s.Key == "vcs.modified" {
			resp.Dirty = s.Value == "true"
		}
	}
}

// AboutHandler serves GET /api/about. The key is shown in octal, the way
// G2 initial states are tabulated.
func AboutHandler(status *Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		info := status.Info()
		resp := AboutResponse{
			Service:   "gps-correlator",
			RunID:     info.RunID,
			PRN:       info.PRN,
			Key:       fmt.Sprintf("%#o", info.Key),
			Input:     info.Input,
			GoVersion: runtime.Version(),
		}
		buildDetails(&resp)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
