package ahrs

import (
	"math"

	"glidernav/internal/magcal"
	"glidernav/internal/navmath"

	"gonum.org/v1/gonum/spatial/r3"
)

func (e *Estimator) turningRight() bool {
	return e.turnRate.Output() > 0
}

func (e *Estimator) feedMagneticObservers(rawMag r3.Vec) {
	expected := e.attitude.ReverseMap(e.expectedNavInduction)
	e.collector.Add(
		[3]float64{expected.X, expected.Y, expected.Z},
		[3]float64{rawMag.X, rawMag.Y, rawMag.Z},
	)
	e.earth.Feed(e.navInduction, e.turningRight())
}

func (e *Estimator) handleMagneticCalibration(src Source) {
	changed := e.cal.SetIfChanged(&e.collector, e.turningRight())

	var stdDev float64
	if e.earth.DataValid() {
		stdDev = math.Sqrt(e.earth.Variance())
		if e.cfg.AutoEarthField && stdDev < e.cfg.InductionStdDeviationLimit {
			if u, err := navmath.Unit(e.earth.EstimatedInduction()); err == nil {
				e.expectedNavInduction = u
				e.updateMagneticLoopGain()
				changed = true
			}
		}
		e.earth.Reset()
	}

	if !changed || e.reporter == nil {
		return
	}
	e.reporter.CalibrationChanged(magcal.Report{
		Calibration:        e.cal.Coefficients(),
		NavInduction:       [3]float64{e.expectedNavInduction.X, e.expectedNavInduction.Y, e.expectedNavInduction.Z},
		NavInductionStdDev: stdDev,
	}, src)
}

// CalibrationSamples is the number of samples collected for the pending
// magnetometer calibration.
func (e *Estimator) CalibrationSamples() int { return e.collector.Count() }
