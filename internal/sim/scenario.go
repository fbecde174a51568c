package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"gps-correlator/internal/cacode"
)

// ScenarioScript is a deterministic, script-driven IF signal description.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 20ms
//	sample_rate_hz: 16368000
//	if_hz: 4092000
//	noise_sigma: 1.0
//	threshold: 1.0
//	seed: 1
//	satellites:
//	  - prn: 1
//	    code_delay_half_chips: 0
//	    keyframes:
//	      - t: 0s
//	        amplitude: 0.5
//	        doppler_hz: 0
//
// Keyframes of each satellite must use non-decreasing t values. Amplitude and
// Doppler are interpolated linearly between keyframes.
//
// Keep this struct stable: scripts are test fixtures.
//
//nolint:revive // exported for YAML, but used primarily internally
type ScenarioScript struct {
	Version      int                 `yaml:"version"`
	Duration     time.Duration       `yaml:"duration"`
	SampleRateHz float64             `yaml:"sample_rate_hz"`
	IFHz         float64             `yaml:"if_hz"`
	NoiseSigma   float64             `yaml:"noise_sigma"`
	Threshold    float64             `yaml:"threshold"`
	Seed         uint64              `yaml:"seed"`
	Satellites   []ScenarioSatellite `yaml:"satellites"`
}

// ScenarioSatellite describes one satellite signal.
//
// Key overrides the key derived from PRN when non-zero.
//
//nolint:revive
type ScenarioSatellite struct {
	PRN                int                 `yaml:"prn"`
	Key                uint16              `yaml:"key"`
	CodeDelayHalfChips int                 `yaml:"code_delay_half_chips"`
	Keyframes          []SatelliteKeyframe `yaml:"keyframes"`
}

// SatelliteKeyframe is a time-stamped signal state.
//
//nolint:revive
type SatelliteKeyframe struct {
	T         time.Duration `yaml:"t"`
	Amplitude float64       `yaml:"amplitude"`
	DopplerHz float64       `yaml:"doppler_hz"`
}

const (
	DefaultSampleRateHz = 16.368e6
	DefaultIFHz         = 4.092e6
	DefaultThreshold    = 1.0

	// MaxCodeDelay is the largest delay one stretched code period can hold.
	MaxCodeDelay = cacode.NominalHalfChips - 1
)

// Scenario is the validated, runtime representation.
//
//nolint:revive
type Scenario struct {
	script ScenarioScript
	keys   []uint16
	// Derived duration (script.Duration or max keyframe time).
	duration time.Duration
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script, applies defaults and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if script.SampleRateHz == 0 {
		script.SampleRateHz = DefaultSampleRateHz
	}
	if script.SampleRateHz < 0 {
		return nil, fmt.Errorf("sample_rate_hz must be > 0")
	}
	if script.IFHz == 0 {
		script.IFHz = DefaultIFHz
	}
	if script.IFHz < 0 || script.IFHz >= script.SampleRateHz/2 {
		return nil, fmt.Errorf("if_hz must be in (0, sample_rate_hz/2)")
	}
	if script.NoiseSigma < 0 {
		return nil, fmt.Errorf("noise_sigma must be >= 0")
	}
	if script.Threshold == 0 {
		script.Threshold = DefaultThreshold
	}
	if script.Threshold < 0 {
		return nil, fmt.Errorf("threshold must be > 0")
	}
	if len(script.Satellites) == 0 {
		return nil, fmt.Errorf("satellites is required")
	}

	keys := make([]uint16, len(script.Satellites))
	for i, sat := range script.Satellites {
		switch {
		case sat.Key != 0:
			keys[i] = sat.Key & cacode.KeyMask
		case sat.PRN != 0:
			k, ok := cacode.KeyForPRN(sat.PRN)
			if !ok {
				return nil, fmt.Errorf("satellites[%d].prn must be in 1..%d", i, cacode.MaxPRN)
			}
			keys[i] = k
		default:
			return nil, fmt.Errorf("satellites[%d].prn or satellites[%d].key is required", i, i)
		}
		if sat.CodeDelayHalfChips < 0 || sat.CodeDelayHalfChips > MaxCodeDelay {
			return nil, fmt.Errorf("satellites[%d].code_delay_half_chips must be in 0..%d", i, MaxCodeDelay)
		}
		if len(sat.Keyframes) == 0 {
			return nil, fmt.Errorf("satellites[%d].keyframes is required", i)
		}
		if err := validateNonDecreasing(sat.Keyframes, i); err != nil {
			return nil, err
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = maxKeyframeTime(script)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}

	return &Scenario{script: script, keys: keys, duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// Samples is the number of IF samples covering Duration.
func (s *Scenario) Samples() int64 {
	if s == nil {
		return 0
	}
	return int64(s.duration.Seconds()*s.script.SampleRateHz + 0.5)
}

func (s *Scenario) Script() ScenarioScript { return s.script }

// Key returns the G2 key of satellite i.
func (s *Scenario) Key(i int) uint16 { return s.keys[i] }

// SatelliteState is the computed state of one satellite at a time.
//
//nolint:revive
type SatelliteState struct {
	Index     int
	Key       uint16
	Amplitude float64
	DopplerHz float64
}

// StateAt computes the satellite states at elapsed.
//
// If loop is true, elapsed wraps around Duration(). Otherwise elapsed is clamped
// to [0, Duration()].
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) []SatelliteState {
	if s == nil {
		return nil
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	out := make([]SatelliteState, 0, len(s.script.Satellites))
	for i, sat := range s.script.Satellites {
		kf0, kf1, alpha := selectSegment(sat.Keyframes, elapsed)
		out = append(out, SatelliteState{
			Index:     i,
			Key:       s.keys[i],
			Amplitude: lerp(kf0.Amplitude, kf1.Amplitude, alpha),
			DopplerHz: lerp(kf0.DopplerHz, kf1.DopplerHz, alpha),
		})
	}
	return out
}

func validateNonDecreasing(kfs []SatelliteKeyframe, si int) error {
	for i := range kfs {
		if kfs[i].T < 0 {
			return fmt.Errorf("satellites[%d].keyframes[%d].t must be >= 0", si, i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return fmt.Errorf("satellites[%d].keyframes must be sorted by t (index %d)", si, i)
		}
	}
	return nil
}

func maxKeyframeTime(s ScenarioScript) time.Duration {
	max := time.Duration(0)
	for _, sat := range s.Satellites {
		for _, kf := range sat.Keyframes {
			if kf.T > max {
				max = kf.T
			}
		}
	}
	return max
}

func selectSegment(kfs []SatelliteKeyframe, t time.Duration) (SatelliteKeyframe, SatelliteKeyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
