package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioScript is a deterministic, script-driven glider flight.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 120s
//	start:
//	  lat_deg: 48.0
//	  lon_deg: 11.0
//	  alt_m: 1000
//	  heading_deg: 0
//	wind:
//	  north_mps: -3
//	  east_mps: 0
//	field:
//	  inclination_deg: 64
//	  declination_deg: 0
//	sensors:
//	  mag_trusted: true
//	  dgnss_heading: false
//	  mag_offset: [0.05, -0.02, 0.1]
//	  mag_scale: [1.1, 0.95, 1.0]
//	  gyro_bias: [0.002, -0.001, 0.0005]
//	keyframes:
//	  - t: 0s
//	    tas_mps: 25
//	    turn_rate_dps: 0
//	    climb_mps: 0
//	  - t: 30s
//	    tas_mps: 25
//	    turn_rate_dps: 18
//	    climb_mps: 1.5
//	    gnss_fix: false
//
// Keyframes must be sorted by time. Continuous values are interpolated
// linearly; gnss_fix holds from its keyframe until the next one that sets it.
//
//nolint:revive // exported for YAML, but used primarily internally
type ScenarioScript struct {
	Version   int              `yaml:"version"`
	Duration  time.Duration    `yaml:"duration"`
	Start     ScenarioStart    `yaml:"start"`
	Wind      ScenarioWind     `yaml:"wind"`
	Field     ScenarioField    `yaml:"field"`
	Sensors   ScenarioSensors  `yaml:"sensors"`
	Keyframes []FlightKeyframe `yaml:"keyframes"`
}

//nolint:revive
type ScenarioStart struct {
	LatDeg     float64 `yaml:"lat_deg"`
	LonDeg     float64 `yaml:"lon_deg"`
	AltM       float64 `yaml:"alt_m"`
	HeadingDeg float64 `yaml:"heading_deg"`
}

//nolint:revive
type ScenarioWind struct {
	NorthMps float64 `yaml:"north_mps"`
	EastMps  float64 `yaml:"east_mps"`
}

// ScenarioField describes the earth magnetic field direction.
//
//nolint:revive
type ScenarioField struct {
	InclinationDeg float64 `yaml:"inclination_deg"`
	DeclinationDeg float64 `yaml:"declination_deg"`
}

// ScenarioSensors describes sensor availability and systematic errors.
// mag_scale entries of 0 mean 1.
//
//nolint:revive
type ScenarioSensors struct {
	MagTrusted   bool       `yaml:"mag_trusted"`
	DGNSSHeading bool       `yaml:"dgnss_heading"`
	MagOffset    [3]float64 `yaml:"mag_offset"`
	MagScale     [3]float64 `yaml:"mag_scale"`
	GyroBias     [3]float64 `yaml:"gyro_bias"`
	NoiseSeed    int64      `yaml:"noise_seed"`
	GyroNoise    float64    `yaml:"gyro_noise"`
	AccNoise     float64    `yaml:"acc_noise"`
}

// FlightKeyframe is a time-stamped flight condition.
//
//nolint:revive
type FlightKeyframe struct {
	T           time.Duration `yaml:"t"`
	TASMps      float64       `yaml:"tas_mps"`
	TurnRateDps float64       `yaml:"turn_rate_dps"`
	ClimbMps    float64       `yaml:"climb_mps"`
	GNSSFix     *bool         `yaml:"gnss_fix"`
}

// Scenario is the validated, runtime representation.
//
//nolint:revive
type Scenario struct {
	script ScenarioScript
	// Derived duration (script.Duration or max keyframe time).
	duration time.Duration
	// fix[i] is the effective GNSS fix state from keyframe i on.
	fix []bool
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

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.TASMps <= 0 {
			return nil, fmt.Errorf("keyframes[%d].tas_mps must be > 0", i)
		}
		if kf.ClimbMps >= kf.TASMps || -kf.ClimbMps >= kf.TASMps {
			return nil, fmt.Errorf("keyframes[%d].climb_mps must be smaller than tas_mps", i)
		}
	}
	for i := range script.Sensors.MagScale {
		if script.Sensors.MagScale[i] == 0 {
			script.Sensors.MagScale[i] = 1
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}

	fix := make([]bool, len(script.Keyframes))
	cur := true
	for i, kf := range script.Keyframes {
		if kf.GNSSFix != nil {
			cur = *kf.GNSSFix
		}
		fix[i] = cur
	}

	return &Scenario{script: script, duration: dur, fix: fix}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

func (s *Scenario) Script() ScenarioScript { return s.script }

// FlightCondition is the commanded flight state at a time.
//
//nolint:revive
type FlightCondition struct {
	TAS      float64 // m/s
	TurnRate float64 // rad/s, positive right
	Climb    float64 // m/s
	GNSSFix  bool
}

// ConditionAt computes the commanded flight condition at elapsed, clamped to
// [0, Duration()].
func (s *Scenario) ConditionAt(elapsed time.Duration) FlightCondition {
	if s == nil {
		return FlightCondition{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.duration {
		elapsed = s.duration
	}
	i0, i1, alpha := selectSegment(s.script.Keyframes, elapsed)
	k0, k1 := s.script.Keyframes[i0], s.script.Keyframes[i1]
	return FlightCondition{
		TAS:      lerp(k0.TASMps, k1.TASMps, alpha),
		TurnRate: deg2rad(lerp(k0.TurnRateDps, k1.TurnRateDps, alpha)),
		Climb:    lerp(k0.ClimbMps, k1.ClimbMps, alpha),
		GNSSFix:  s.fix[i0],
	}
}

func selectSegment(kfs []FlightKeyframe, t time.Duration) (int, int, float64) {
	if len(kfs) == 1 {
		return 0, 0, 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return 0, 0, 0
	}
	if idx >= len(kfs) {
		last := len(kfs) - 1
		return last, last, 0
	}
	dt := kfs[idx].T - kfs[idx-1].T
	if dt <= 0 {
		return idx, idx, 0
	}
	alpha := float64(t-kfs[idx-1].T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return idx - 1, idx, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
