// Package kalman implements the linear recursive estimators used by the flight
// observer. Measurements are applied as sequential scalar updates, so no
// matrix inversion happens in the tick path.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Filter is a discrete linear Kalman filter x' = F x + w, z = h.x + v.
// All workspace is allocated in NewFilter.
type Filter struct {
	n int

	x *mat.VecDense
	p *mat.Dense
	f *mat.Dense
	q *mat.Dense

	fx *mat.VecDense
	fp *mat.Dense
	ph *mat.VecDense
	k  *mat.VecDense
	kp *mat.Dense
}

// NewFilter returns a filter with transition f, process noise q, initial state
// x0 and initial covariance p0. Dimensions must agree.
func NewFilter(f, q *mat.Dense, x0 *mat.VecDense, p0 *mat.Dense) (*Filter, error) {
	n := x0.Len()
	for _, m := range []*mat.Dense{f, q, p0} {
		r, c := m.Dims()
		if r != n || c != n {
			return nil, fmt.Errorf("kalman: matrix is %dx%d, want %dx%d", r, c, n, n)
		}
	}
	kf := &Filter{
		n:  n,
		x:  mat.NewVecDense(n, nil),
		p:  mat.NewDense(n, n, nil),
		f:  mat.DenseCopyOf(f),
		q:  mat.DenseCopyOf(q),
		fx: mat.NewVecDense(n, nil),
		fp: mat.NewDense(n, n, nil),
		ph: mat.NewVecDense(n, nil),
		k:  mat.NewVecDense(n, nil),
		kp: mat.NewDense(n, n, nil),
	}
	kf.x.CopyVec(x0)
	kf.p.Copy(p0)
	return kf, nil
}

// Predict propagates state and covariance by one sample.
func (kf *Filter) Predict() {
	kf.fx.MulVec(kf.f, kf.x)
	kf.x.CopyVec(kf.fx)

	kf.fp.Mul(kf.f, kf.p)
	kf.p.Mul(kf.fp, kf.f.T())
	kf.p.Add(kf.p, kf.q)
}

// Correct applies one scalar measurement z = h.x with variance r and returns
// the innovation.
func (kf *Filter) Correct(h *mat.VecDense, z, r float64) float64 {
	innov := z - mat.Dot(h, kf.x)

	kf.ph.MulVec(kf.p, h)
	s := mat.Dot(h, kf.ph) + r
	if s <= 0 {
		return innov
	}
	kf.k.ScaleVec(1/s, kf.ph)
	kf.x.AddScaledVec(kf.x, innov, kf.k)

	// P -= k (P h)^T, valid because P is symmetric.
	kf.kp.Outer(1, kf.k, kf.ph)
	kf.p.Sub(kf.p, kf.kp)
	return innov
}

// State returns element i of the state vector.
func (kf *Filter) State(i int) float64 { return kf.x.AtVec(i) }

// Covariance returns element (i, j) of the error covariance.
func (kf *Filter) Covariance(i, j int) float64 { return kf.p.At(i, j) }

// Reset overwrites state and covariance. p0 holds the covariance diagonal.
func (kf *Filter) Reset(x0, p0 []float64) {
	for i := 0; i < kf.n; i++ {
		kf.x.SetVec(i, x0[i])
	}
	kf.p.Zero()
	for i := 0; i < kf.n; i++ {
		kf.p.Set(i, i, p0[i])
	}
}

func diag(v ...float64) *mat.Dense {
	m := mat.NewDense(len(v), len(v), nil)
	for i, x := range v {
		m.Set(i, i, x)
	}
	return m
}
