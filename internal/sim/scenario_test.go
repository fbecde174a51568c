package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScenario_ParseAndInterpolate(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
noise_sigma: 0.5
seed: 7
satellites:
  - prn: 3
    code_delay_half_chips: 4
    keyframes:
      - t: 0s
        amplitude: 0.2
        doppler_hz: -1000
      - t: 10ms
        amplitude: 0.6
        doppler_hz: 1000
`)

	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Duration() != 10*time.Millisecond {
		t.Fatalf("duration: got %s want %s", scn.Duration(), 10*time.Millisecond)
	}
	if scn.Samples() != 163680 {
		t.Fatalf("samples: got %d want 163680", scn.Samples())
	}
	if got := scn.Script().SampleRateHz; got != DefaultSampleRateHz {
		t.Fatalf("default sample rate: got %v", got)
	}
	if got := scn.Script().Threshold; got != DefaultThreshold {
		t.Fatalf("default threshold: got %v", got)
	}
	if scn.Key(0) != 0x3B0 {
		t.Fatalf("key: got %#x want 0x3b0", scn.Key(0))
	}

	st := scn.StateAt(5*time.Millisecond, false)
	if len(st) != 1 {
		t.Fatalf("states: got %d want 1", len(st))
	}
	if st[0].DopplerHz != 0 {
		t.Fatalf("doppler interpolation: got %v want 0", st[0].DopplerHz)
	}
	if d := st[0].Amplitude - 0.4; d > 1e-12 || d < -1e-12 {
		t.Fatalf("amplitude interpolation: got %v want 0.4", st[0].Amplitude)
	}
}

func TestScenario_LoopAndClamp(t *testing.T) {
	yaml := []byte(`
version: 1
duration: 10s
satellites:
  - key: 0x155
    keyframes:
      - t: 0s
        amplitude: 0
      - t: 10s
        amplitude: 10
`)

	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Key(0) != 0x155 {
		t.Fatalf("key override: got %#x", scn.Key(0))
	}

	// Clamp (no loop): 11s -> end state.
	st := scn.StateAt(11*time.Second, false)
	if st[0].Amplitude != 10 {
		t.Fatalf("clamp amplitude: got %v want 10", st[0].Amplitude)
	}

	// Loop: 11s -> 1s.
	st2 := scn.StateAt(11*time.Second, true)
	if st2[0].Amplitude != 1 {
		t.Fatalf("loop amplitude: got %v want 1", st2[0].Amplitude)
	}
}

func TestNewScenario_Validation(t *testing.T) {
	kf := []SatelliteKeyframe{{T: time.Millisecond, Amplitude: 1}}
	cases := []struct {
		name   string
		script ScenarioScript
		want   string
	}{
		{"version", ScenarioScript{Version: 2}, "unsupported scenario version 2"},
		{"no satellites", ScenarioScript{}, "satellites is required"},
		{"if above nyquist", ScenarioScript{IFHz: 9e6, Satellites: []ScenarioSatellite{{PRN: 1, Keyframes: kf}}}, "if_hz must be in (0, sample_rate_hz/2)"},
		{"noise", ScenarioScript{NoiseSigma: -1, Satellites: []ScenarioSatellite{{PRN: 1, Keyframes: kf}}}, "noise_sigma must be >= 0"},
		{"bad prn", ScenarioScript{Satellites: []ScenarioSatellite{{PRN: 40, Keyframes: kf}}}, "satellites[0].prn must be in 1..37"},
		{"no prn", ScenarioScript{Satellites: []ScenarioSatellite{{Keyframes: kf}}}, "satellites[0].prn or satellites[0].key is required"},
		{"delay", ScenarioScript{Satellites: []ScenarioSatellite{{PRN: 1, CodeDelayHalfChips: 2046, Keyframes: kf}}}, "satellites[0].code_delay_half_chips must be in 0..2045"},
		{"no keyframes", ScenarioScript{Satellites: []ScenarioSatellite{{PRN: 1}}}, "satellites[0].keyframes is required"},
		{"unsorted", ScenarioScript{Satellites: []ScenarioSatellite{{PRN: 1, Keyframes: []SatelliteKeyframe{{T: 2}, {T: 1}}}}}, "satellites[0].keyframes must be sorted by t (index 1)"},
		{"no duration", ScenarioScript{Satellites: []ScenarioSatellite{{PRN: 1, Keyframes: []SatelliteKeyframe{{}}}}}, "duration is required (or deriveable from keyframes)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewScenario(c.script)
			if err == nil {
				t.Fatalf("expected error")
			}
			if err.Error() != c.want {
				t.Fatalf("got %q want %q", err.Error(), c.want)
			}
		})
	}
}

func TestLoadScenarioScript(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scn.yaml")
	if err := os.WriteFile(p, []byte("duration: 1ms\nsatellites:\n  - prn: 1\n    keyframes:\n      - t: 0s\n        amplitude: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	script, err := LoadScenarioScript(p)
	if err != nil {
		t.Fatalf("LoadScenarioScript: %v", err)
	}
	if script.Duration != time.Millisecond {
		t.Fatalf("duration: got %s", script.Duration)
	}
	if _, err := LoadScenarioScript(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
