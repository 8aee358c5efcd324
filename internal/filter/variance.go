package filter

// VarianceAccumulator tracks an exponentially weighted mean and variance with
// decay constant decay (0 < decay < 1). The first observation initializes the mean.
type VarianceAccumulator struct {
	decay float64

	n, m, v float64
	started bool
}

func NewVarianceAccumulator(decay float64) *VarianceAccumulator {
	return &VarianceAccumulator{decay: decay}
}

// Add accumulates one observation.
func (a *VarianceAccumulator) Add(obs float64) {
	if !a.started {
		a.n, a.m, a.v = 1, obs, 0
		a.started = true
		return
	}
	d := obs - a.m
	dm := (1 - a.decay) * d
	a.n = 1 + a.decay*a.n
	a.m += dm
	a.v = a.decay * (a.v + dm*d)
}

// Count is the effective number of observations.
func (a *VarianceAccumulator) Count() float64 { return a.n }

func (a *VarianceAccumulator) Mean() float64 { return a.m }

func (a *VarianceAccumulator) Variance() float64 { return a.v }

func (a *VarianceAccumulator) Reset() {
	*a = VarianceAccumulator{decay: a.decay}
}
