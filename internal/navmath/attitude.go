package navmath

import (
	"math"

	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/spatial/r3"
)

// Euler angles in radians. Nick is the pitch angle, positive nose up.
type Euler struct {
	Roll float64
	Nick float64
	Yaw  float64
}

// IdentityQuaternion is the level, north facing attitude.
func IdentityQuaternion() quaternion.Quaternion {
	return quaternion.Quaternion{W: 1}
}

// Integrate advances the body->nav attitude q by the body rotation rate omega
// (rad/s) over ts seconds using a first order half-angle increment, then
// re-normalizes.
func Integrate(q quaternion.Quaternion, omega r3.Vec, ts float64) quaternion.Quaternion {
	h := 0.5 * ts
	dq := quaternion.Quaternion{W: 1, X: omega.X * h, Y: omega.Y * h, Z: omega.Z * h}
	return quaternion.Prod(q, dq).Unit()
}

// RotationMatrix returns the body->nav rotation for the unit quaternion q.
func RotationMatrix(q quaternion.Quaternion) Matrix3 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Matrix3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// EulerAngles extracts roll, nick and yaw (ZYX order) from q.
func EulerAngles(q quaternion.Quaternion) Euler {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	s := 2 * (w*y - z*x)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return Euler{
		Roll: math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		Nick: math.Asin(s),
		Yaw:  math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
	}
}

// FromEuler builds the body->nav quaternion for the given angles.
func FromEuler(e Euler) quaternion.Quaternion {
	cr, sr := math.Cos(e.Roll/2), math.Sin(e.Roll/2)
	cp, sp := math.Cos(e.Nick/2), math.Sin(e.Nick/2)
	cy, sy := math.Cos(e.Yaw/2), math.Sin(e.Yaw/2)
	return quaternion.Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// FromMatrix converts an orthonormal rotation matrix into a unit quaternion.
func FromMatrix(m Matrix3) quaternion.Quaternion {
	tr := m[0][0] + m[1][1] + m[2][2]
	var q quaternion.Quaternion
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quaternion.Quaternion{
			W: s / 4,
			X: (m[2][1] - m[1][2]) / s,
			Y: (m[0][2] - m[2][0]) / s,
			Z: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quaternion.Quaternion{
			W: (m[2][1] - m[1][2]) / s,
			X: s / 4,
			Y: (m[0][1] + m[1][0]) / s,
			Z: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quaternion.Quaternion{
			W: (m[0][2] - m[2][0]) / s,
			X: (m[0][1] + m[1][0]) / s,
			Y: s / 4,
			Z: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quaternion.Quaternion{
			W: (m[1][0] - m[0][1]) / s,
			X: (m[0][2] + m[2][0]) / s,
			Y: (m[1][2] + m[2][1]) / s,
			Z: s / 4,
		}
	}
	if q.W < 0 {
		q = quaternion.Quaternion{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	}
	return q.Unit()
}

// Norm returns the quaternion magnitude.
func Norm(q quaternion.Quaternion) float64 {
	return q.Norm()
}
