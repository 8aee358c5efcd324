package kalman

import "gonum.org/v1/gonum/mat"

// HorizontalField indexes the state of HorizontalVA.
type HorizontalField int

const (
	Velocity HorizontalField = iota
	HorizontalAcceleration
	HorizontalAccelerationOffset
)

type HorizontalConfig struct {
	SamplePeriod float64

	QVelocity     float64
	QAcceleration float64
	QOffset       float64

	RVelocity     float64
	RAcceleration float64

	InitialCovariance [3]float64
}

func DefaultHorizontalConfig(samplePeriod float64) HorizontalConfig {
	return HorizontalConfig{
		SamplePeriod:      samplePeriod,
		QVelocity:         1e-6,
		QAcceleration:     2.5e-3,
		QOffset:           1e-8,
		RVelocity:         0.01,
		RAcceleration:     0.01,
		InitialCovariance: [3]float64{10, 1, 0.1},
	}
}

// HorizontalVA estimates velocity, acceleration and accelerometer offset along
// one horizontal NAV axis.
type HorizontalVA struct {
	cfg HorizontalConfig
	kf  *Filter

	hVel, hAcc *mat.VecDense
}

func NewHorizontalVA(cfg HorizontalConfig) *HorizontalVA {
	t := cfg.SamplePeriod
	f := mat.NewDense(3, 3, []float64{
		1, t, 0,
		0, 1, 0,
		0, 0, 1,
	})
	kf, err := NewFilter(f,
		diag(cfg.QVelocity, cfg.QAcceleration, cfg.QOffset),
		mat.NewVecDense(3, nil),
		diag(cfg.InitialCovariance[:]...))
	if err != nil {
		panic(err)
	}
	return &HorizontalVA{
		cfg:  cfg,
		kf:   kf,
		hVel: mat.NewVecDense(3, []float64{1, 0, 0}),
		hAcc: mat.NewVecDense(3, []float64{0, 1, 1}),
	}
}

// Update runs one cycle and returns the filtered velocity.
func (h *HorizontalVA) Update(vel, acc float64) float64 {
	h.kf.Predict()
	h.kf.Correct(h.hVel, vel, h.cfg.RVelocity)
	h.kf.Correct(h.hAcc, acc, h.cfg.RAcceleration)
	return h.kf.State(int(Velocity))
}

func (h *HorizontalVA) Get(field HorizontalField) float64 {
	return h.kf.State(int(field))
}
