// Package observer derives variometer, speed compensation and wind data from
// the AHRS NAV-frame acceleration, barometric altitude and GNSS velocity.
//
// All vertical quantities inside the Kalman estimators are NED (down
// positive). Published varios are positive when climbing.
package observer

import (
	"fmt"

	"glidernav/internal/ahrs"
	"glidernav/internal/filter"
	"glidernav/internal/kalman"
	"glidernav/internal/navmath"

	"gonum.org/v1/gonum/spatial/r3"
)

const oneByTwoG = 1 / (2 * navmath.Gravity)

type Config struct {
	SamplePeriod float64

	// VerticalEnergyTuningFactor weights the vertical kinetic energy in the
	// GNSS based speed compensation.
	VerticalEnergyTuningFactor float64

	VarioCutoff    float64 // Hz, vario averagers
	FusionCutoff   float64 // Hz, speed compensation fusioner
	WindDecimation int     // input samples per wind sample
	WindCutoff     float64 // Hz, wind decimation low pass

	PressureKalman   kalman.VerticalConfig
	GNSSKalman       kalman.VerticalConfig
	HorizontalKalman kalman.HorizontalConfig
}

func DefaultConfig(samplePeriod float64) Config {
	return Config{
		SamplePeriod:               samplePeriod,
		VerticalEnergyTuningFactor: 1,
		VarioCutoff:                0.5,
		FusionCutoff:               0.2,
		WindDecimation:             10,
		WindCutoff:                 1,
		PressureKalman:             kalman.DefaultPressureConfig(samplePeriod),
		GNSSKalman:                 kalman.DefaultGNSSConfig(samplePeriod),
		HorizontalKalman:           kalman.DefaultHorizontalConfig(samplePeriod),
	}
}

func (c Config) Validate() error {
	if !(c.SamplePeriod > 0) {
		return fmt.Errorf("observer: sample period must be > 0")
	}
	nyquist := 0.5 / c.SamplePeriod
	for _, f := range []float64{c.VarioCutoff, c.FusionCutoff, c.WindCutoff} {
		if !(f > 0 && f < nyquist) {
			return fmt.Errorf("observer: cutoff %v must be in (0, %v)", f, nyquist)
		}
	}
	if c.WindDecimation < 1 {
		return fmt.Errorf("observer: wind decimation must be >= 1")
	}
	if c.VerticalEnergyTuningFactor < 0 {
		return fmt.Errorf("observer: vertical energy tuning factor must be >= 0")
	}
	return nil
}

// Input is one tick. Vectors are NED; NavAcceleration is the AHRS specific
// force in the NAV frame and HeadingVector the horizontal unit heading.
type Input struct {
	GNSSVelocity     r3.Vec
	GNSSAcceleration r3.Vec
	NavAcceleration  r3.Vec
	HeadingVector    r3.Vec

	GNSSNegAltitude     float64
	PressureNegAltitude float64

	TAS float64
	IAS float64

	// Circling is carried for the host; the observer does not branch on it.
	Circling    ahrs.CirclingState
	WindAverage r3.Vec
	GNSSFix     bool
}

// Observer is not safe for concurrent use.
type Observer struct {
	cfg Config

	pressure   *kalman.VerticalPVA
	gnss       *kalman.VerticalPVA
	horizontal [2]*kalman.HorizontalVA

	kineticEnergy  *filter.Differentiator[float64]
	specificEnergy *filter.Differentiator[float64]
	fusioner       *filter.Fusioner[float64]
	pressureVario  *filter.LowPass[float64]
	gnssVario      *filter.LowPass[float64]
	wind           *filter.Decimator

	uncompensatedPressure float64
	compensationIAS       float64
	uncompensatedGNSS     float64
	compensationGNSS      float64
	compensationINS       float64
	compensationKalman    float64
	compensationEnergy    float64
	energy                float64
	windReady             bool
}

func New(cfg Config) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs := 1 / cfg.SamplePeriod
	return &Observer{
		cfg:      cfg,
		pressure: kalman.NewVerticalPVA(cfg.PressureKalman),
		gnss:     kalman.NewVerticalPVA(cfg.GNSSKalman),
		horizontal: [2]*kalman.HorizontalVA{
			kalman.NewHorizontalVA(cfg.HorizontalKalman),
			kalman.NewHorizontalVA(cfg.HorizontalKalman),
		},
		kineticEnergy:  filter.NewDifferentiator[float64](cfg.SamplePeriod),
		specificEnergy: filter.NewDifferentiator[float64](cfg.SamplePeriod),
		fusioner:       filter.NewFusioner[float64](cfg.FusionCutoff, fs),
		pressureVario:  filter.NewLowPass[float64](cfg.VarioCutoff, fs),
		gnssVario:      filter.NewLowPass[float64](cfg.VarioCutoff, fs),
		wind:           filter.NewDecimator(cfg.WindDecimation, cfg.WindCutoff, fs),
	}, nil
}

// Update runs one tick. Call it after the AHRS update of the same tick.
func (o *Observer) Update(in Input) {
	accDown := in.NavAcceleration.Z

	o.uncompensatedPressure = -o.pressure.UpdatePressure(in.PressureNegAltitude, accDown)
	o.compensationIAS = o.kineticEnergy.Respond(in.IAS * in.IAS * oneByTwoG)
	o.pressureVario.Respond(o.uncompensatedPressure + o.compensationIAS)

	if !in.GNSSFix {
		o.uncompensatedGNSS = o.uncompensatedPressure
		o.compensationGNSS = o.compensationIAS
		o.gnssVario.Respond(o.uncompensatedPressure + o.compensationIAS)
		o.windReady = false
		return
	}

	air := r3.Scale(in.TAS, in.HeadingVector)
	o.windReady = o.wind.Respond(r3.Sub(in.GNSSVelocity, air))

	o.uncompensatedGNSS = -o.gnss.UpdateGNSS(in.GNSSNegAltitude, in.GNSSVelocity.Z, accDown)
	kVario := o.gnss.Get(kalman.Vario)
	kAcc := o.gnss.Get(kalman.Acceleration)

	// Mechanism 1: air velocity dot INS acceleration.
	airVel := navmath.WithDown(r3.Sub(in.GNSSVelocity, in.WindAverage), kVario)
	acc := navmath.WithDown(in.NavAcceleration, kAcc)
	o.compensationINS = r3.Dot(airVel, acc) / navmath.Gravity

	// Mechanism 2: Kalman filtered horizontal air velocity and acceleration.
	n, e := o.horizontal[0], o.horizontal[1]
	n.Update(in.GNSSVelocity.X-in.WindAverage.X, in.NavAcceleration.X)
	e.Update(in.GNSSVelocity.Y-in.WindAverage.Y, in.NavAcceleration.Y)
	o.compensationKalman = (n.Get(kalman.Velocity)*n.Get(kalman.HorizontalAcceleration) +
		e.Get(kalman.Velocity)*e.Get(kalman.HorizontalAcceleration) +
		kVario*kAcc*o.cfg.VerticalEnergyTuningFactor) / navmath.Gravity

	// Mechanism 3: derivative of the specific energy.
	vn := in.GNSSVelocity.X - in.WindAverage.X
	ve := in.GNSSVelocity.Y - in.WindAverage.Y
	vd := in.GNSSVelocity.Z
	o.energy = (vn*vn + ve*ve + vd*vd*o.cfg.VerticalEnergyTuningFactor) * oneByTwoG
	o.compensationEnergy = o.specificEnergy.Respond(o.energy)

	o.compensationGNSS = o.fusioner.Respond(0.5*(o.compensationINS+o.compensationKalman), o.compensationEnergy)
	o.gnssVario.Respond(o.uncompensatedGNSS + o.compensationGNSS)
}

// Reset restarts both vertical estimators at the given negative altitudes
// with zero vario. Call it when the GNSS fix state changes.
func (o *Observer) Reset(pressureNegAltitude, gnssNegAltitude float64) {
	o.pressure.Reset(pressureNegAltitude, -navmath.Gravity)
	o.gnss.Reset(gnssNegAltitude, -navmath.Gravity)
}

// UncompensatedPressureVario is the barometric climb rate in m/s.
func (o *Observer) UncompensatedPressureVario() float64 { return o.uncompensatedPressure }

// SpeedCompensationIAS is d/dt of IAS^2/2g.
func (o *Observer) SpeedCompensationIAS() float64 { return o.compensationIAS }

// PressureVario is the averaged total energy vario from the pressure path.
func (o *Observer) PressureVario() float64 { return o.pressureVario.Output() }

func (o *Observer) UncompensatedGNSSVario() float64 { return o.uncompensatedGNSS }

func (o *Observer) SpeedCompensationINS() float64 { return o.compensationINS }

func (o *Observer) SpeedCompensationKalman() float64 { return o.compensationKalman }

func (o *Observer) SpeedCompensationEnergy() float64 { return o.compensationEnergy }

// SpeedCompensationGNSS is the fused compensation of the GNSS path.
func (o *Observer) SpeedCompensationGNSS() float64 { return o.compensationGNSS }

// GNSSVario is the averaged total energy vario from the GNSS path.
func (o *Observer) GNSSVario() float64 { return o.gnssVario.Output() }

// SpecificEnergy is the latest air kinetic energy per mass over g, in m.
func (o *Observer) SpecificEnergy() float64 { return o.energy }

// WindSample returns the latest decimated instant wind and whether the last
// Update produced it.
func (o *Observer) WindSample() (r3.Vec, bool) { return o.wind.Output(), o.windReady }

// Snapshot is a copy of the observer outputs for display and logging.
type Snapshot struct {
	PressureVario           float64 `json:"pressure_vario"`
	GNSSVario               float64 `json:"gnss_vario"`
	UncompensatedPressure   float64 `json:"uncompensated_pressure_vario"`
	UncompensatedGNSS       float64 `json:"uncompensated_gnss_vario"`
	SpeedCompensationIAS    float64 `json:"speed_compensation_ias"`
	SpeedCompensationGNSS   float64 `json:"speed_compensation_gnss"`
	SpeedCompensationINS    float64 `json:"speed_compensation_ins"`
	SpeedCompensationKalman float64 `json:"speed_compensation_kalman"`
	SpeedCompensationEnergy float64 `json:"speed_compensation_energy"`
	InstantWindNorth        float64 `json:"instant_wind_north"`
	InstantWindEast         float64 `json:"instant_wind_east"`
}

func (o *Observer) Snapshot() Snapshot {
	w := o.wind.Output()
	return Snapshot{
		PressureVario:           o.PressureVario(),
		GNSSVario:               o.GNSSVario(),
		UncompensatedPressure:   o.uncompensatedPressure,
		UncompensatedGNSS:       o.uncompensatedGNSS,
		SpeedCompensationIAS:    o.compensationIAS,
		SpeedCompensationGNSS:   o.compensationGNSS,
		SpeedCompensationINS:    o.compensationINS,
		SpeedCompensationKalman: o.compensationKalman,
		SpeedCompensationEnergy: o.compensationEnergy,
		InstantWindNorth:        w.X,
		InstantWindEast:         w.Y,
	}
}
