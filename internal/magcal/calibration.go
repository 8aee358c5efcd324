package magcal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ChangeTolerance is the smallest coefficient change that counts as a new calibration.
const ChangeTolerance = 0.01

// AxisCalibration maps a raw reading onto the expected induction:
// calibrated = (raw - Offset) / Scale.
type AxisCalibration struct {
	Offset float64 `yaml:"offset" json:"offset"`
	Scale  float64 `yaml:"scale" json:"scale"`
}

func (a AxisCalibration) apply(raw float64) float64 {
	return (raw - a.Offset) / a.Scale
}

// Calibration holds the active coefficients plus the latest result for each
// turn direction. The active set is the average of the available directions,
// which cancels most of the heading dependent residual.
type Calibration struct {
	done bool
	axes [3]AxisCalibration

	left, right         [3]AxisCalibration
	haveLeft, haveRight bool
}

// NewCalibration returns an empty (not calibrated) instance.
func NewCalibration() *Calibration {
	return &Calibration{}
}

// Open loads the persisted calibration. A missing entry yields an
// uncalibrated instance; a read failure is returned as error.
func Open(store Store) (*Calibration, error) {
	c := NewCalibration()
	rep, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("magcal: load calibration: %w", err)
	}
	if !ok {
		return c, nil
	}
	if err := c.Set(rep.Calibration); err != nil {
		return nil, err
	}
	return c, nil
}

// Set installs coefficients directly.
func (c *Calibration) Set(axes [3]AxisCalibration) error {
	for i, a := range axes {
		if !(math.Abs(a.Scale) > 1e-6) || math.IsNaN(a.Offset) {
			return fmt.Errorf("magcal: axis %d has invalid scale %v", i, a.Scale)
		}
	}
	c.axes = axes
	c.done = true
	return nil
}

func (c *Calibration) Done() bool { return c.done }

func (c *Calibration) Coefficients() [3]AxisCalibration { return c.axes }

// Calibrate applies the coefficients. Without a calibration the reading is
// returned unchanged.
func (c *Calibration) Calibrate(raw r3.Vec) r3.Vec {
	if !c.done {
		return raw
	}
	return r3.Vec{
		X: c.axes[0].apply(raw.X),
		Y: c.axes[1].apply(raw.Y),
		Z: c.axes[2].apply(raw.Z),
	}
}

// SetIfChanged evaluates the collected data for the finished turn and installs
// the result when it differs from the active coefficients. The collectors are
// reset in every case.
func (c *Calibration) SetIfChanged(col *Collector, turningRight bool) bool {
	defer col.Reset()

	var fresh [3]AxisCalibration
	for i := range col {
		r, err := col[i].Result()
		if err != nil || r.Scale < 0.1 {
			return false
		}
		fresh[i] = r
	}

	if turningRight {
		c.right, c.haveRight = fresh, true
	} else {
		c.left, c.haveLeft = fresh, true
	}

	combined := fresh
	if c.haveLeft && c.haveRight {
		for i := range combined {
			combined[i] = AxisCalibration{
				Offset: 0.5 * (c.left[i].Offset + c.right[i].Offset),
				Scale:  0.5 * (c.left[i].Scale + c.right[i].Scale),
			}
		}
	}

	if c.done && !differs(c.axes, combined) {
		return false
	}
	c.axes = combined
	c.done = true
	return true
}

func differs(a, b [3]AxisCalibration) bool {
	for i := range a {
		if math.Abs(a[i].Offset-b[i].Offset) > ChangeTolerance {
			return true
		}
		if math.Abs(a[i].Scale-b[i].Scale) > ChangeTolerance {
			return true
		}
	}
	return false
}
