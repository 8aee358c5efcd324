package filter

import "gonum.org/v1/gonum/spatial/r3"

// VecLowPass filters each component of a vector with its own LowPass.
type VecLowPass struct {
	x, y, z *LowPass[float64]
}

func NewVecLowPass(cutoff, sampleRate float64) *VecLowPass {
	return &VecLowPass{
		x: NewLowPass[float64](cutoff, sampleRate),
		y: NewLowPass[float64](cutoff, sampleRate),
		z: NewLowPass[float64](cutoff, sampleRate),
	}
}

func (f *VecLowPass) Respond(v r3.Vec) r3.Vec {
	return r3.Vec{X: f.x.Respond(v.X), Y: f.y.Respond(v.Y), Z: f.z.Respond(v.Z)}
}

func (f *VecLowPass) Output() r3.Vec {
	return r3.Vec{X: f.x.Output(), Y: f.y.Output(), Z: f.z.Output()}
}

// Decimator low-pass filters a vector at the input rate and publishes every
// ratio-th filtered value.
type Decimator struct {
	lp    *VecLowPass
	ratio int
	count int
	out   r3.Vec
}

// NewDecimator builds a decimator. cutoff is in Hz at the input sample rate and
// should be below half of sampleRate/ratio.
func NewDecimator(ratio int, cutoff, sampleRate float64) *Decimator {
	if ratio < 1 {
		ratio = 1
	}
	return &Decimator{lp: NewVecLowPass(cutoff, sampleRate), ratio: ratio}
}

// Respond feeds one input sample and reports whether a new output is ready.
func (d *Decimator) Respond(v r3.Vec) bool {
	filtered := d.lp.Respond(v)
	d.count++
	if d.count < d.ratio {
		return false
	}
	d.count = 0
	d.out = filtered
	return true
}

// Output returns the latest decimated value.
func (d *Decimator) Output() r3.Vec { return d.out }
