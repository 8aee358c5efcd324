package ahrs

import (
	"glidernav/internal/navmath"

	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/spatial/r3"
)

func (e *Estimator) Quaternion() quaternion.Quaternion { return e.q }

// Body2Nav returns the body -> nav rotation matrix.
func (e *Estimator) Body2Nav() navmath.Matrix3 { return e.attitude }

func (e *Estimator) Euler() navmath.Euler { return e.euler }

// TurnRate is the smoothed rotation rate about the nav down axis, positive
// turning right.
func (e *Estimator) TurnRate() float64 { return e.turnRate.Output() }

func (e *Estimator) SlipAngle() float64 { return e.slip.Output() }

func (e *Estimator) NickAngle() float64 { return e.nick.Output() }

// GLoad is the smoothed specific force magnitude in m/s^2.
func (e *Estimator) GLoad() float64 { return e.gLoad.Output() }

func (e *Estimator) CirclingState() CirclingState { return e.state }

func (e *Estimator) Mode() Mode { return e.mode }

// HeadingDifferenceDGNSS is the last D-GNSS minus AHRS heading.
func (e *Estimator) HeadingDifferenceDGNSS() float64 { return e.headingDifference }

func (e *Estimator) MagneticDisturbance() float64 { return e.magneticDisturbance }

func (e *Estimator) NavAcceleration() r3.Vec { return e.navAcceleration }

func (e *Estimator) NavInduction() r3.Vec { return e.navInduction }

// HeadingVector is the unit horizontal direction of the body front axis.
func (e *Estimator) HeadingVector() r3.Vec {
	u, err := navmath.Unit(r3.Vec{X: e.attitude[0][0], Y: e.attitude[1][0]})
	if err != nil {
		return r3.Vec{X: 1}
	}
	return u
}

func (e *Estimator) ExpectedNavInduction() r3.Vec { return e.expectedNavInduction }

func (e *Estimator) GyroIntegrator() r3.Vec { return e.gyroIntegrator }

func (e *Estimator) NavCorrection() r3.Vec { return e.navCorrection }

func (e *Estimator) GyroCorrection() r3.Vec { return e.gyroCorrection }

// Snapshot is a copy of the estimator outputs for display and logging.
type Snapshot struct {
	Roll                float64 `json:"roll"`
	Nick                float64 `json:"nick"`
	Yaw                 float64 `json:"yaw"`
	TurnRate            float64 `json:"turn_rate"`
	SlipAngle           float64 `json:"slip_angle"`
	NickAngle           float64 `json:"nick_angle"`
	GLoad               float64 `json:"g_load"`
	Circling            string  `json:"circling"`
	Mode                string  `json:"mode"`
	HeadingDifference   float64 `json:"heading_difference"`
	MagneticDisturbance float64 `json:"magnetic_disturbance"`
}

func (e *Estimator) Snapshot() Snapshot {
	return Snapshot{
		Roll:                e.euler.Roll,
		Nick:                e.euler.Nick,
		Yaw:                 e.euler.Yaw,
		TurnRate:            e.TurnRate(),
		SlipAngle:           e.SlipAngle(),
		NickAngle:           e.NickAngle(),
		GLoad:               e.GLoad(),
		Circling:            e.state.String(),
		Mode:                e.mode.String(),
		HeadingDifference:   e.headingDifference,
		MagneticDisturbance: e.magneticDisturbance,
	}
}
