package ahrs

import (
	"math"

	"glidernav/internal/navmath"

	"gonum.org/v1/gonum/spatial/r3"
)

// Update runs one estimator tick.
func (e *Estimator) Update(in Input) {
	e.mode = SelectMode(in)

	oldState := e.state
	e.state = e.classifier.Update(e.turnRate.Output())

	mag := e.cal.Calibrate(in.Mag)
	navAcc := e.attitude.Map(in.Acc)
	navInd := e.attitude.Map(mag)
	gnssAcc := in.GNSSAcceleration

	// Horizontal leveling error.
	e.navCorrection.X = -navAcc.Y + gnssAcc.Y
	e.navCorrection.Y = navAcc.X - gnssAcc.X

	// Heading error from GNSS vs. INS acceleration and from the magnetic field.
	cross := navAcc.X*gnssAcc.Y - navAcc.Y*gnssAcc.X
	magCorrection := navInd.X*e.expectedNavInduction.Y - navInd.Y*e.expectedNavInduction.X

	circling := e.state == Circling
	switch e.mode {
	case ModeDifferentialGNSS:
		e.headingDifference = e.dgnssHeadingDifference(in.GNSSHeading)
		switch {
		case !circling:
			e.navCorrection.Z = e.headingDifference * e.cfg.Gains.H
		case e.cfg.CrossGainOnly:
			e.navCorrection.Z = cross * e.cfg.Gains.Cross
		default:
			e.navCorrection.Z = cross*e.cfg.Gains.Cross + magCorrection*e.magneticControlGain
		}
	case ModeCompass:
		switch {
		case !circling:
			e.navCorrection.Z = magCorrection * e.magneticControlGain
		case e.cfg.CrossGainOnly:
			e.navCorrection.Z = cross * e.cfg.Gains.Cross
		default:
			e.navCorrection.Z = cross*e.cfg.Gains.Cross + magCorrection*e.cfg.Gains.MH
		}
	default:
		if e.state == StraightFlight {
			cross *= AccOnlyStraightCrossScale
		}
		e.navCorrection.Z = cross * e.cfg.Gains.Cross
	}

	correction := r3.Scale(e.cfg.Gains.P, e.attitude.ReverseMap(e.navCorrection))
	if e.state == StraightFlight {
		e.gyroIntegrator = r3.Add(e.gyroIntegrator, correction)
	}
	e.gyroCorrection = r3.Add(correction, r3.Scale(e.cfg.Gains.I, e.gyroIntegrator))

	e.updateAttitude(in.Acc, r3.Add(in.Gyro, e.gyroCorrection), mag)

	if e.mode == ModeAccelerationOnly {
		return
	}

	// Fresh magnetic information only while circling with a settled loop.
	if circling && r3.Norm(e.navCorrection) < e.cfg.NavCorrectionLimit {
		e.feedMagneticObservers(in.Mag)
	}

	if e.cfg.AutoMagneticCalibration && oldState == Circling && e.state == Transition {
		src := SourceCompass
		if e.mode == ModeDifferentialGNSS {
			src = SourceDGNSS
		}
		e.handleMagneticCalibration(src)
	}
}

// dgnssHeadingDifference corrects the D-GNSS baseline heading for the
// antenna lever arm at the current roll angle and returns its difference to
// the estimated yaw, wrapped into (-pi, pi].
func (e *Estimator) dgnssHeadingDifference(gnssHeading float64) float64 {
	heading := gnssHeading +
		e.antennaDownCorrection*math.Sin(e.euler.Roll) -
		e.antennaRightCorrection*math.Cos(e.euler.Roll)
	return navmath.WrapPi(heading - e.euler.Yaw)
}

func (e *Estimator) updateAttitude(acc, gyro, mag r3.Vec) {
	e.q = navmath.Integrate(e.q, gyro, e.cfg.SamplePeriod)
	e.attitude = navmath.RotationMatrix(e.q)
	e.euler = navmath.EulerAngles(e.q)

	e.navAcceleration = e.attitude.Map(acc)
	e.navInduction = e.attitude.Map(mag)

	e.turnRate.Respond(e.attitude.Map(gyro).Z)
	e.slip.Respond(math.Atan2(-acc.Y, -acc.Z))
	e.nick.Respond(math.Atan2(acc.X, -acc.Z))
	e.gLoad.Respond(r3.Norm(acc))
	e.magneticDisturbance = r3.Norm(r3.Sub(e.navInduction, e.expectedNavInduction))
}
