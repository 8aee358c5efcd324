package ahrs

import (
	"fmt"
	"math"
)

// Config holds the tuning of the attitude estimator. Angles are radians,
// rates rad/s, frequencies Hz.
type Config struct {
	SamplePeriod float64

	Antenna AntennaConfig

	Inclination float64
	Declination float64

	AutoMagneticCalibration bool
	AutoEarthField          bool
	DisableCircling         bool
	CrossGainOnly           bool

	Gains    Gains
	Circling CirclingConfig

	AngleCutoff float64
	GLoadCutoff float64

	NavCorrectionLimit         float64
	InductionStdDeviationLimit float64
}

// AntennaConfig is the D-GNSS slave antenna position relative to the master,
// in meters.
type AntennaConfig struct {
	BaseLength float64
	SlaveDown  float64
	SlaveRight float64
}

type Gains struct {
	P     float64 // proportional, all axes
	I     float64 // integral
	H     float64 // D-GNSS heading
	Cross float64 // acceleration cross product heading
	MH    float64 // magnetic heading
}

type CirclingConfig struct {
	Limit        int
	HighTurnRate float64
	LowTurnRate  float64
}

// AccOnlyStraightCrossScale boosts the cross product heading cue in straight
// flight when neither magnetometer nor D-GNSS heading is usable (flight tuned).
const AccOnlyStraightCrossScale = 40

func DefaultConfig() Config {
	return Config{
		SamplePeriod:            0.01,
		Antenna:                 AntennaConfig{BaseLength: 1},
		Inclination:             64 * math.Pi / 180,
		AutoMagneticCalibration: true,
		AutoEarthField:          true,
		Gains: Gains{
			P:     0.03,
			I:     0.00006,
			H:     38,
			Cross: 0.05,
			MH:    10,
		},
		Circling: CirclingConfig{
			Limit:        500,
			HighTurnRate: 0.15,
			LowTurnRate:  0.0707,
		},
		AngleCutoff:                0.5,
		GLoadCutoff:                1,
		NavCorrectionLimit:         2,
		InductionStdDeviationLimit: 0.1,
	}
}

func (c Config) Validate() error {
	if !(c.SamplePeriod > 0) {
		return fmt.Errorf("ahrs: sample period must be > 0")
	}
	if c.Antenna.BaseLength == 0 {
		return fmt.Errorf("ahrs: antenna base length must not be 0")
	}
	if c.Circling.Limit <= 0 {
		return fmt.Errorf("ahrs: circling limit must be > 0")
	}
	if c.Circling.LowTurnRate > c.Circling.HighTurnRate {
		return fmt.Errorf("ahrs: low turn rate %v above high turn rate %v", c.Circling.LowTurnRate, c.Circling.HighTurnRate)
	}
	nyquist := 0.5 / c.SamplePeriod
	if !(c.AngleCutoff > 0 && c.AngleCutoff < nyquist) || !(c.GLoadCutoff > 0 && c.GLoadCutoff < nyquist) {
		return fmt.Errorf("ahrs: averager cutoff must be in (0, %v)", nyquist)
	}
	return nil
}
