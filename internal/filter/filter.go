// Package filter provides the small recursive signal filters used in the
// estimator loop. All filters are allocation free after construction.
package filter

import (
	"math"

	"golang.org/x/exp/constraints"
)

// LowPass is a second order Butterworth low pass (bilinear transform).
// The first input primes the filter state so it starts settled.
type LowPass[T constraints.Float] struct {
	b0, b1, b2 T
	a1, a2     T

	x1, x2 T
	y1, y2 T
	primed bool
}

// NewLowPass designs the filter for the corner frequency cutoff (Hz) at the
// given sample rate (Hz). cutoff must be below half the sample rate.
func NewLowPass[T constraints.Float](cutoff, sampleRate float64) *LowPass[T] {
	k := math.Tan(math.Pi * cutoff / sampleRate)
	norm := 1 / (1 + math.Sqrt2*k + k*k)
	b0 := k * k * norm
	return &LowPass[T]{
		b0: T(b0),
		b1: T(2 * b0),
		b2: T(b0),
		a1: T(2 * (k*k - 1) * norm),
		a2: T((1 - math.Sqrt2*k + k*k) * norm),
	}
}

// Respond feeds one sample and returns the filtered output.
func (f *LowPass[T]) Respond(x T) T {
	if !f.primed {
		f.Settle(x)
		return x
	}
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Output returns the most recent output.
func (f *LowPass[T]) Output() T { return f.y1 }

// Settle forces the filter into the steady state for input x.
func (f *LowPass[T]) Settle(x T) {
	f.x1, f.x2, f.y1, f.y2 = x, x, x, x
	f.primed = true
}

// Differentiator returns the backward difference quotient of its input.
type Differentiator[T constraints.Float] struct {
	invTs  T
	prev   T
	primed bool
}

func NewDifferentiator[T constraints.Float](samplePeriod float64) *Differentiator[T] {
	return &Differentiator[T]{invTs: T(1 / samplePeriod)}
}

// Respond returns (x - previous x) / Ts. The first call returns 0.
func (d *Differentiator[T]) Respond(x T) T {
	if !d.primed {
		d.prev = x
		d.primed = true
		return 0
	}
	out := (x - d.prev) * d.invTs
	d.prev = x
	return out
}

// Reset forgets the previous sample.
func (d *Differentiator[T]) Reset() { d.primed = false }

// Fusioner blends a fast signal a with a slow signal b: out = a + LP(b - a).
// Low frequencies follow b, high frequencies follow a.
type Fusioner[T constraints.Float] struct {
	lp  *LowPass[T]
	out T
}

func NewFusioner[T constraints.Float](cutoff, sampleRate float64) *Fusioner[T] {
	return &Fusioner[T]{lp: NewLowPass[T](cutoff, sampleRate)}
}

func (f *Fusioner[T]) Respond(a, b T) T {
	f.out = a + f.lp.Respond(b-a)
	return f.out
}

func (f *Fusioner[T]) Output() T { return f.out }
