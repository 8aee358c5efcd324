package magcal

import (
	"glidernav/internal/filter"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	earthDecay      = 0.9995
	earthMinSamples = 200
)

type directionStats struct {
	axis [3]*filter.VarianceAccumulator
}

func newDirectionStats() directionStats {
	var d directionStats
	for i := range d.axis {
		d.axis[i] = filter.NewVarianceAccumulator(earthDecay)
	}
	return d
}

func (d directionStats) add(v r3.Vec) {
	d.axis[0].Add(v.X)
	d.axis[1].Add(v.Y)
	d.axis[2].Add(v.Z)
}

func (d directionStats) mean() r3.Vec {
	return r3.Vec{X: d.axis[0].Mean(), Y: d.axis[1].Mean(), Z: d.axis[2].Mean()}
}

func (d directionStats) variance() float64 {
	return d.axis[0].Variance() + d.axis[1].Variance() + d.axis[2].Variance()
}

func (d directionStats) count() float64 { return d.axis[0].Count() }

func (d directionStats) reset() {
	for _, a := range d.axis {
		a.Reset()
	}
}

// EarthInductionCollector observes the NAV frame induction during left and
// right turns. Averaging both directions removes residual heading errors.
type EarthInductionCollector struct {
	left, right directionStats
}

func NewEarthInductionCollector() *EarthInductionCollector {
	return &EarthInductionCollector{left: newDirectionStats(), right: newDirectionStats()}
}

func (e *EarthInductionCollector) Feed(navInduction r3.Vec, turningRight bool) {
	if turningRight {
		e.right.add(navInduction)
	} else {
		e.left.add(navInduction)
	}
}

// DataValid reports whether both turn directions have been observed long enough.
func (e *EarthInductionCollector) DataValid() bool {
	return e.left.count() >= earthMinSamples && e.right.count() >= earthMinSamples
}

// EstimatedInduction is the mean of the left and right turn averages.
func (e *EarthInductionCollector) EstimatedInduction() r3.Vec {
	return r3.Scale(0.5, r3.Add(e.left.mean(), e.right.mean()))
}

// Variance combines the per-direction scatter with the disagreement between
// the two directions.
func (e *EarthInductionCollector) Variance() float64 {
	d := r3.Sub(e.left.mean(), e.right.mean())
	return 0.5*(e.left.variance()+e.right.variance()) + 0.25*r3.Norm2(d)
}

func (e *EarthInductionCollector) Reset() {
	e.left.reset()
	e.right.reset()
}
