// Package magcal estimates magnetometer calibration while circling and keeps
// the coefficients persistent between power cycles.
package magcal

import (
	"fmt"

	"github.com/skelterjohn/go.matrix"
)

// MinSamples is the number of observations an axis fit needs before it is
// evaluated.
const MinSamples = 500

// AxisFit accumulates the sums for the linear model y = offset + scale*x.
// x is the expected body induction, y the raw sensor reading.
type AxisFit struct {
	n, sx, sy, sxx, sxy float64
}

func (a *AxisFit) Add(x, y float64) {
	a.n++
	a.sx += x
	a.sy += y
	a.sxx += x * x
	a.sxy += x * y
}

func (a *AxisFit) Count() int { return int(a.n) }

func (a *AxisFit) Reset() { *a = AxisFit{} }

// Valid reports whether the fit has enough samples with enough spread in x.
func (a *AxisFit) Valid() bool {
	if a.n < MinSamples {
		return false
	}
	varX := a.sxx/a.n - (a.sx/a.n)*(a.sx/a.n)
	return varX > 1e-3
}

// Result solves the normal equations.
func (a *AxisFit) Result() (AxisCalibration, error) {
	if !a.Valid() {
		return AxisCalibration{}, fmt.Errorf("magcal: axis fit not valid (n=%d)", a.Count())
	}
	nm := matrix.MakeDenseMatrix([]float64{
		a.n, a.sx,
		a.sx, a.sxx,
	}, 2, 2)
	inv, err := nm.Inverse()
	if err != nil {
		return AxisCalibration{}, fmt.Errorf("magcal: normal equations: %w", err)
	}
	rhs := matrix.MakeDenseMatrix([]float64{a.sy, a.sxy}, 2, 1)
	sol := matrix.Product(inv, rhs)
	return AxisCalibration{Offset: sol.Get(0, 0), Scale: sol.Get(1, 0)}, nil
}

// Collector holds one fit per body axis (front, right, down).
type Collector [3]AxisFit

// Add feeds one pair of expected body induction and raw sensor reading.
func (c *Collector) Add(expected, raw [3]float64) {
	for i := range c {
		c[i].Add(expected[i], raw[i])
	}
}

func (c *Collector) Reset() {
	for i := range c {
		c[i].Reset()
	}
}

// Count is the sample count of the first axis; all axes are fed together.
func (c *Collector) Count() int { return c[0].Count() }
