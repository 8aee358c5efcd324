// Package navmath holds the vector, rotation and attitude algebra shared by the
// estimators. Vectors use gonum r3.Vec with X=north/front, Y=east/right and
// Z=down (NED in the navigation frame, FRD in the body frame).
package navmath

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Gravity is the standard gravity used for specific force and energy terms.
const Gravity = 9.81

// ErrDegenerateVector is returned when a direction is requested from a zero vector.
var ErrDegenerateVector = errors.New("navmath: zero vector")

// Unit normalizes v, failing on a zero (or non-finite) magnitude.
func Unit(v r3.Vec) (r3.Vec, error) {
	n := r3.Norm(v)
	if !(n > 0) || math.IsInf(n, 0) {
		return r3.Vec{}, ErrDegenerateVector
	}
	return r3.Scale(1/n, v), nil
}

// WrapPi folds an angle into (-pi, pi] with a single correction step.
// Inputs must already lie within (-3pi, 3pi].
func WrapPi(a float64) float64 {
	if a > math.Pi {
		return a - 2*math.Pi
	}
	if a <= -math.Pi {
		return a + 2*math.Pi
	}
	return a
}

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 [3][3]float64

// Identity3 returns the unit matrix.
func Identity3() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// FromRows assembles a matrix from its three rows.
func FromRows(a, b, c r3.Vec) Matrix3 {
	return Matrix3{
		{a.X, a.Y, a.Z},
		{b.X, b.Y, b.Z},
		{c.X, c.Y, c.Z},
	}
}

// Map returns m*v.
func (m Matrix3) Map(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// ReverseMap returns transpose(m)*v. For a rotation this is the inverse mapping.
func (m Matrix3) ReverseMap(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

func (m Matrix3) Transpose() Matrix3 {
	var t Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// Mul returns m*o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// WithDown replaces the down component.
func WithDown(v r3.Vec, down float64) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: down}
}
