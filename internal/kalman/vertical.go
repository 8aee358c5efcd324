package kalman

import (
	"gonum.org/v1/gonum/mat"
)

// VerticalField indexes the state of VerticalPVA.
type VerticalField int

const (
	Position VerticalField = iota
	Vario
	Acceleration
	AccelerationOffset
)

// VerticalConfig tunes a vertical position/velocity/acceleration filter.
// All quantities are along the NAV down axis.
type VerticalConfig struct {
	SamplePeriod float64

	QPosition           float64
	QVario              float64
	QAcceleration       float64
	QAccelerationOffset float64

	RPosition     float64
	RVelocity     float64
	RAcceleration float64

	InitialCovariance [4]float64
}

// DefaultPressureConfig is tuned for barometric altitude with IMU acceleration.
func DefaultPressureConfig(samplePeriod float64) VerticalConfig {
	return VerticalConfig{
		SamplePeriod:        samplePeriod,
		QPosition:           1e-6,
		QVario:              1e-6,
		QAcceleration:       2.5e-3,
		QAccelerationOffset: 1e-8,
		RPosition:           0.01,
		RVelocity:           0.01,
		RAcceleration:       0.01,
		InitialCovariance:   [4]float64{1, 10, 1, 0.1},
	}
}

// DefaultGNSSConfig is tuned for GNSS altitude and down velocity.
func DefaultGNSSConfig(samplePeriod float64) VerticalConfig {
	c := DefaultPressureConfig(samplePeriod)
	c.RPosition = 0.5
	return c
}

// VerticalPVA estimates down position, down velocity, down acceleration and
// the accelerometer offset. The acceleration measurement is the NAV down
// specific force, modelled as acceleration + offset.
type VerticalPVA struct {
	cfg VerticalConfig
	kf  *Filter

	hPos, hVel, hAcc *mat.VecDense
}

func NewVerticalPVA(cfg VerticalConfig) *VerticalPVA {
	t := cfg.SamplePeriod
	f := mat.NewDense(4, 4, []float64{
		1, t, t * t / 2, 0,
		0, 1, t, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	q := diag(cfg.QPosition, cfg.QVario, cfg.QAcceleration, cfg.QAccelerationOffset)
	x0 := mat.NewVecDense(4, []float64{0, 0, 0, -9.81})
	p0 := diag(cfg.InitialCovariance[:]...)
	kf, err := NewFilter(f, q, x0, p0)
	if err != nil {
		// Dimensions are fixed above.
		panic(err)
	}
	return &VerticalPVA{
		cfg:  cfg,
		kf:   kf,
		hPos: mat.NewVecDense(4, []float64{1, 0, 0, 0}),
		hVel: mat.NewVecDense(4, []float64{0, 1, 0, 0}),
		hAcc: mat.NewVecDense(4, []float64{0, 0, 1, 1}),
	}
}

// UpdatePressure runs one cycle with a position and an acceleration
// measurement and returns the down velocity.
func (v *VerticalPVA) UpdatePressure(pos, acc float64) float64 {
	v.kf.Predict()
	v.kf.Correct(v.hPos, pos, v.cfg.RPosition)
	v.kf.Correct(v.hAcc, acc, v.cfg.RAcceleration)
	return v.kf.State(int(Vario))
}

// UpdateGNSS additionally fuses a down velocity measurement.
func (v *VerticalPVA) UpdateGNSS(pos, vel, acc float64) float64 {
	v.kf.Predict()
	v.kf.Correct(v.hPos, pos, v.cfg.RPosition)
	v.kf.Correct(v.hVel, vel, v.cfg.RVelocity)
	v.kf.Correct(v.hAcc, acc, v.cfg.RAcceleration)
	return v.kf.State(int(Vario))
}

func (v *VerticalPVA) Get(field VerticalField) float64 {
	return v.kf.State(int(field))
}

// Reset restarts the filter at position pos with zero velocity and
// acceleration and the given acceleration offset.
func (v *VerticalPVA) Reset(pos, accOffset float64) {
	v.kf.Reset([]float64{pos, 0, 0, accOffset}, v.cfg.InitialCovariance[:])
}
