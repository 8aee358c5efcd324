// Package ahrs estimates the glider attitude with a complementary filter:
// gyro integration on a quaternion, corrected by leveling and heading cues
// through a PI loop with a gyro bias integrator.
//
// Axes: body frame front/right/down, navigation frame north/east/down.
// The estimator is not safe for concurrent use; call it from the tick loop.
package ahrs

import (
	"fmt"
	"math"

	"glidernav/internal/filter"
	"glidernav/internal/magcal"
	"glidernav/internal/navmath"

	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode is the heading correction source used for a tick.
type Mode int

const (
	ModeDifferentialGNSS Mode = iota
	ModeCompass
	ModeAccelerationOnly
)

func (m Mode) String() string {
	switch m {
	case ModeDifferentialGNSS:
		return "dgnss"
	case ModeCompass:
		return "compass"
	case ModeAccelerationOnly:
		return "acc-only"
	default:
		return "unknown"
	}
}

// Source tags a calibration report with the heading reference that was
// active while the data was collected.
type Source byte

const (
	SourceDGNSS   Source = 's'
	SourceCompass Source = 'm'
)

// Input is one tick of sensor data. Gyro in rad/s, accelerations in m/s^2,
// magnetometer in sensor units. GNSSAcceleration is NED.
type Input struct {
	Gyro r3.Vec
	Acc  r3.Vec
	Mag  r3.Vec

	GNSSAcceleration r3.Vec
	GNSSHeading      float64
	GNSSHeadingValid bool

	MagnetometerTrusted bool
}

// SelectMode picks the correction source for the input.
func SelectMode(in Input) Mode {
	switch {
	case in.GNSSHeadingValid:
		return ModeDifferentialGNSS
	case in.MagnetometerTrusted:
		return ModeCompass
	default:
		return ModeAccelerationOnly
	}
}

// Calibrator converts raw magnetometer readings and learns from collected data.
type Calibrator interface {
	Done() bool
	Calibrate(raw r3.Vec) r3.Vec
	SetIfChanged(col *magcal.Collector, turningRight bool) bool
	Coefficients() [3]magcal.AxisCalibration
}

// Reporter receives calibration changes. It is called synchronously from Update.
type Reporter interface {
	CalibrationChanged(rep magcal.Report, src Source)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(rep magcal.Report, src Source)

func (f ReporterFunc) CalibrationChanged(rep magcal.Report, src Source) { f(rep, src) }

type Estimator struct {
	cfg Config

	attitude navmath.Matrix3 // body -> nav
	q        quaternion.Quaternion
	euler    navmath.Euler

	gyroIntegrator r3.Vec
	navCorrection  r3.Vec
	gyroCorrection r3.Vec

	navAcceleration r3.Vec
	navInduction    r3.Vec

	expectedNavInduction r3.Vec
	magneticControlGain  float64

	antennaDownCorrection  float64
	antennaRightCorrection float64

	headingDifference   float64
	magneticDisturbance float64

	classifier *Classifier
	state      CirclingState
	mode       Mode

	turnRate *filter.LowPass[float64]
	slip     *filter.LowPass[float64]
	nick     *filter.LowPass[float64]
	gLoad    *filter.LowPass[float64]

	cal       Calibrator
	collector magcal.Collector
	earth     *magcal.EarthInductionCollector
	reporter  Reporter
}

// New builds an estimator in the level north facing attitude. Call Setup
// with the first sensor sample before the first Update. rep may be nil.
func New(cfg Config, cal Calibrator, rep Reporter) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, fmt.Errorf("ahrs: calibrator is nil")
	}
	fs := 1 / cfg.SamplePeriod
	e := &Estimator{
		cfg:                    cfg,
		q:                      navmath.IdentityQuaternion(),
		attitude:               navmath.Identity3(),
		antennaDownCorrection:  cfg.Antenna.SlaveDown / cfg.Antenna.BaseLength,
		antennaRightCorrection: cfg.Antenna.SlaveRight / cfg.Antenna.BaseLength,
		classifier:             NewClassifier(cfg.Circling, cfg.DisableCircling),
		turnRate:               filter.NewLowPass[float64](cfg.AngleCutoff, fs),
		slip:                   filter.NewLowPass[float64](cfg.AngleCutoff, fs),
		nick:                   filter.NewLowPass[float64](cfg.AngleCutoff, fs),
		gLoad:                  filter.NewLowPass[float64](cfg.GLoadCutoff, fs),
		cal:                    cal,
		earth:                  magcal.NewEarthInductionCollector(),
		reporter:               rep,
	}
	e.expectedNavInduction = ExpectedInduction(cfg.Inclination, cfg.Declination)
	e.updateMagneticLoopGain()
	return e, nil
}

// ExpectedInduction is the unit earth field direction in NED for the given
// inclination and declination.
func ExpectedInduction(inclination, declination float64) r3.Vec {
	ci := math.Cos(inclination)
	return r3.Vec{
		X: ci * math.Cos(declination),
		Y: ci * math.Sin(declination),
		Z: math.Sin(inclination),
	}
}

func (e *Estimator) updateMagneticLoopGain() {
	h := e.expectedNavInduction.X*e.expectedNavInduction.X + e.expectedNavInduction.Y*e.expectedNavInduction.Y
	if h < 1e-6 {
		e.magneticControlGain = e.cfg.Gains.MH
		return
	}
	e.magneticControlGain = e.cfg.Gains.MH / h
}

// Setup derives the attitude from gravity and the magnetic field. The gyro
// integrator is kept.
func (e *Estimator) Setup(acc, mag r3.Vec) error {
	induction := e.cal.Calibrate(mag)

	down, err := navmath.Unit(r3.Scale(-1, acc))
	if err != nil {
		return fmt.Errorf("ahrs: setup acceleration: %w", err)
	}
	north, err := navmath.Unit(induction)
	if err != nil {
		return fmt.Errorf("ahrs: setup induction: %w", err)
	}
	east, err := navmath.Unit(r3.Cross(down, north))
	if err != nil {
		return fmt.Errorf("ahrs: setup induction parallel to gravity: %w", err)
	}
	north, err = navmath.Unit(r3.Cross(east, down))
	if err != nil {
		return fmt.Errorf("ahrs: setup: %w", err)
	}

	e.q = navmath.FromMatrix(navmath.FromRows(north, east, down))
	e.attitude = navmath.RotationMatrix(e.q)
	e.euler = navmath.EulerAngles(e.q)
	return nil
}
