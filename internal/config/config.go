// Package config loads the YAML host configuration and maps it onto the
// estimator configurations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"glidernav/internal/ahrs"
	"glidernav/internal/observer"
	"glidernav/internal/realtime"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SamplePeriod time.Duration     `yaml:"sample_period"`
	AHRS         AHRSConfig        `yaml:"ahrs"`
	Observer     ObserverConfig    `yaml:"observer"`
	Calibration  CalibrationConfig `yaml:"calibration"`
	Source       SourceConfig      `yaml:"source"`
	Record       RecordConfig      `yaml:"record"`
	Output       OutputConfig      `yaml:"output"`
	Web          WebConfig         `yaml:"web"`
	Realtime     RealtimeConfig    `yaml:"realtime"`
}

type AHRSConfig struct {
	Antenna        AntennaConfig `yaml:"antenna"`
	InclinationDeg *float64      `yaml:"inclination_deg"`
	DeclinationDeg float64       `yaml:"declination_deg"`

	AutoMagneticCalibration *bool `yaml:"auto_magnetic_calibration"`
	AutoEarthField          *bool `yaml:"auto_earth_field"`
	DisableCircling         bool  `yaml:"disable_circling"`
	CrossGainOnly           bool  `yaml:"cross_gain_only"`

	Gains    GainsConfig    `yaml:"gains"`
	Circling CirclingConfig `yaml:"circling"`

	AngleCutoffHz              float64 `yaml:"angle_cutoff_hz"`
	GLoadCutoffHz              float64 `yaml:"g_load_cutoff_hz"`
	NavCorrectionLimit         float64 `yaml:"nav_correction_limit"`
	InductionStdDeviationLimit float64 `yaml:"induction_std_deviation_limit"`
}

type AntennaConfig struct {
	BaseLengthM float64 `yaml:"base_length_m"`
	SlaveDownM  float64 `yaml:"slave_down_m"`
	SlaveRightM float64 `yaml:"slave_right_m"`
}

// GainsConfig values of 0 select the built-in gain.
type GainsConfig struct {
	P     float64 `yaml:"p"`
	I     float64 `yaml:"i"`
	H     float64 `yaml:"h"`
	Cross float64 `yaml:"cross"`
	MH    float64 `yaml:"mh"`
}

type CirclingConfig struct {
	Limit           int     `yaml:"limit"`
	HighTurnRateDps float64 `yaml:"high_turn_rate_dps"`
	LowTurnRateDps  float64 `yaml:"low_turn_rate_dps"`
}

type ObserverConfig struct {
	VerticalEnergyTuningFactor *float64 `yaml:"vertical_energy_tuning_factor"`
	VarioCutoffHz              float64  `yaml:"vario_cutoff_hz"`
	FusionCutoffHz             float64  `yaml:"fusion_cutoff_hz"`
	WindDecimation             int      `yaml:"wind_decimation"`
	WindCutoffHz               float64  `yaml:"wind_cutoff_hz"`
	WindAverageCutoffHz        float64  `yaml:"wind_average_cutoff_hz"`
}

type CalibrationConfig struct {
	Path string `yaml:"path"`
}

type SourceConfig struct {
	Kind     string       `yaml:"kind"` // sim | replay
	Scenario string       `yaml:"scenario"`
	Replay   ReplayConfig `yaml:"replay"`
	// Realtime paces the simulator at wall-clock speed.
	Realtime bool `yaml:"realtime"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type OutputConfig struct {
	UDPDest       string        `yaml:"udp_dest"`
	SerialDevice  string        `yaml:"serial_device"`
	SerialBaud    int           `yaml:"serial_baud"`
	NMEAInterval  time.Duration `yaml:"nmea_interval"`
	SupplyVoltage float64       `yaml:"supply_voltage"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type RealtimeConfig struct {
	LockMemory bool `yaml:"lock_memory"`
	Nice       int  `yaml:"nice"`
}

const (
	SourceSim    = "sim"
	SourceReplay = "replay"
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, rejecting unknown fields, then applies defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config contains unknown fields or invalid values: %w", err)
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and checks the result.
func DefaultAndValidate(cfg *Config) error {
	if cfg.SamplePeriod == 0 {
		cfg.SamplePeriod = 10 * time.Millisecond
	}
	if cfg.SamplePeriod < 0 {
		return fmt.Errorf("sample_period must be > 0")
	}

	if cfg.AHRS.Antenna.BaseLengthM == 0 {
		cfg.AHRS.Antenna.BaseLengthM = 1
	}
	if cfg.AHRS.Antenna.BaseLengthM < 0 {
		return fmt.Errorf("ahrs.antenna.base_length_m must be > 0")
	}
	if cfg.AHRS.InclinationDeg != nil && math.Abs(*cfg.AHRS.InclinationDeg) > 90 {
		return fmt.Errorf("ahrs.inclination_deg must be in [-90, 90]")
	}
	if math.Abs(cfg.AHRS.DeclinationDeg) > 180 {
		return fmt.Errorf("ahrs.declination_deg must be in [-180, 180]")
	}
	if cfg.AHRS.Circling.Limit < 0 {
		return fmt.Errorf("ahrs.circling.limit must be >= 0")
	}
	if cfg.AHRS.Circling.LowTurnRateDps != 0 && cfg.AHRS.Circling.HighTurnRateDps != 0 &&
		cfg.AHRS.Circling.LowTurnRateDps > cfg.AHRS.Circling.HighTurnRateDps {
		return fmt.Errorf("ahrs.circling.low_turn_rate_dps must not exceed ahrs.circling.high_turn_rate_dps")
	}

	if cfg.Observer.WindAverageCutoffHz == 0 {
		cfg.Observer.WindAverageCutoffHz = 0.02
	}
	if nyquist := 0.5 / cfg.SamplePeriod.Seconds(); !(cfg.Observer.WindAverageCutoffHz > 0 && cfg.Observer.WindAverageCutoffHz < nyquist) {
		return fmt.Errorf("observer.wind_average_cutoff_hz must be in (0, %v)", nyquist)
	}

	if cfg.Calibration.Path == "" {
		cfg.Calibration.Path = "./magnetic_calibration.yaml"
	}

	switch cfg.Source.Kind {
	case "":
		cfg.Source.Kind = SourceSim
		fallthrough
	case SourceSim:
		if cfg.Source.Scenario == "" {
			return fmt.Errorf("source.scenario is required when source.kind is 'sim'")
		}
	case SourceReplay:
		if cfg.Source.Replay.Path == "" {
			return fmt.Errorf("source.replay.path is required when source.kind is 'replay'")
		}
		if cfg.Source.Replay.Speed == 0 {
			cfg.Source.Replay.Speed = 1
		}
		if cfg.Source.Replay.Speed < 0 {
			return fmt.Errorf("source.replay.speed must be > 0")
		}
		if cfg.Record.Enable {
			return fmt.Errorf("record and source.kind 'replay' cannot be combined")
		}
	default:
		return fmt.Errorf("source.kind must be 'sim' or 'replay', got %q", cfg.Source.Kind)
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Output.NMEAInterval == 0 {
		cfg.Output.NMEAInterval = 100 * time.Millisecond
	}
	if cfg.Output.NMEAInterval < cfg.SamplePeriod {
		return fmt.Errorf("output.nmea_interval must be >= sample_period")
	}
	if cfg.Output.SerialDevice != "" && cfg.Output.SerialBaud == 0 {
		cfg.Output.SerialBaud = 115200
	}
	if cfg.Output.SerialBaud < 0 {
		return fmt.Errorf("output.serial_baud must be > 0")
	}

	if err := cfg.RealtimeOptions().Validate(); err != nil {
		return fmt.Errorf("realtime.nice must be in [-20, 19]")
	}

	if err := cfg.AHRSConfig().Validate(); err != nil {
		return err
	}
	return cfg.ObserverConfig().Validate()
}

// AHRSConfig maps the YAML settings onto the estimator defaults.
func (c Config) AHRSConfig() ahrs.Config {
	out := ahrs.DefaultConfig()
	out.SamplePeriod = c.SamplePeriod.Seconds()
	a := c.AHRS
	out.Antenna = ahrs.AntennaConfig{
		BaseLength: a.Antenna.BaseLengthM,
		SlaveDown:  a.Antenna.SlaveDownM,
		SlaveRight: a.Antenna.SlaveRightM,
	}
	if a.InclinationDeg != nil {
		out.Inclination = deg2rad(*a.InclinationDeg)
	}
	out.Declination = deg2rad(a.DeclinationDeg)
	if a.AutoMagneticCalibration != nil {
		out.AutoMagneticCalibration = *a.AutoMagneticCalibration
	}
	if a.AutoEarthField != nil {
		out.AutoEarthField = *a.AutoEarthField
	}
	out.DisableCircling = a.DisableCircling
	out.CrossGainOnly = a.CrossGainOnly

	setIfNonZero(&out.Gains.P, a.Gains.P)
	setIfNonZero(&out.Gains.I, a.Gains.I)
	setIfNonZero(&out.Gains.H, a.Gains.H)
	setIfNonZero(&out.Gains.Cross, a.Gains.Cross)
	setIfNonZero(&out.Gains.MH, a.Gains.MH)

	if a.Circling.Limit > 0 {
		out.Circling.Limit = a.Circling.Limit
	}
	if a.Circling.HighTurnRateDps != 0 {
		out.Circling.HighTurnRate = deg2rad(a.Circling.HighTurnRateDps)
	}
	if a.Circling.LowTurnRateDps != 0 {
		out.Circling.LowTurnRate = deg2rad(a.Circling.LowTurnRateDps)
	}
	setIfNonZero(&out.AngleCutoff, a.AngleCutoffHz)
	setIfNonZero(&out.GLoadCutoff, a.GLoadCutoffHz)
	setIfNonZero(&out.NavCorrectionLimit, a.NavCorrectionLimit)
	setIfNonZero(&out.InductionStdDeviationLimit, a.InductionStdDeviationLimit)
	return out
}

func (c Config) ObserverConfig() observer.Config {
	out := observer.DefaultConfig(c.SamplePeriod.Seconds())
	o := c.Observer
	if o.VerticalEnergyTuningFactor != nil {
		out.VerticalEnergyTuningFactor = *o.VerticalEnergyTuningFactor
	}
	setIfNonZero(&out.VarioCutoff, o.VarioCutoffHz)
	setIfNonZero(&out.FusionCutoff, o.FusionCutoffHz)
	setIfNonZero(&out.WindCutoff, o.WindCutoffHz)
	if o.WindDecimation != 0 {
		out.WindDecimation = o.WindDecimation
	}
	return out
}

func (c Config) RealtimeOptions() realtime.Options {
	return realtime.Options{LockMemory: c.Realtime.LockMemory, Nice: c.Realtime.Nice}
}

func setIfNonZero(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
