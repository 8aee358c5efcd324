// Package sensors defines the per-sample measurement record that feeds the
// estimators, plus its compact binary encoding used by tick logs.
package sensors

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Tick is one sample of all sensors. Body vectors are front/right/down,
// GNSS vectors north/east/down.
type Tick struct {
	Gyro r3.Vec // rad/s
	Acc  r3.Vec // specific force, m/s^2
	Mag  r3.Vec // raw magnetometer

	MagTrusted bool

	GNSSFix          bool
	GNSSVelocity     r3.Vec // m/s
	GNSSAcceleration r3.Vec // m/s^2
	GNSSHeading      float64
	GNSSHeadingValid bool
	GNSSNegAltitude  float64 // m, negative above the reference
	Latitude         float64 // deg
	Longitude        float64 // deg

	StaticPressure float64 // Pa
	TAS            float64 // m/s
	IAS            float64 // m/s
}

const (
	encodingVersion = 1
	floatCount      = 23
	encodedLen      = 2 + floatCount*8
)

const (
	flagMagTrusted = 1 << iota
	flagGNSSFix
	flagGNSSHeadingValid
)

func (t Tick) floats() [floatCount]float64 {
	return [floatCount]float64{
		t.Gyro.X, t.Gyro.Y, t.Gyro.Z,
		t.Acc.X, t.Acc.Y, t.Acc.Z,
		t.Mag.X, t.Mag.Y, t.Mag.Z,
		t.GNSSVelocity.X, t.GNSSVelocity.Y, t.GNSSVelocity.Z,
		t.GNSSAcceleration.X, t.GNSSAcceleration.Y, t.GNSSAcceleration.Z,
		t.GNSSHeading, t.GNSSNegAltitude, t.Latitude, t.Longitude,
		t.StaticPressure, t.TAS, t.IAS,
		0, // reserved
	}
}

// MarshalBinary encodes the tick as little endian float64 values.
func (t Tick) MarshalBinary() ([]byte, error) {
	b := make([]byte, encodedLen)
	b[0] = encodingVersion
	var flags byte
	if t.MagTrusted {
		flags |= flagMagTrusted
	}
	if t.GNSSFix {
		flags |= flagGNSSFix
	}
	if t.GNSSHeadingValid {
		flags |= flagGNSSHeadingValid
	}
	b[1] = flags
	for i, v := range t.floats() {
		binary.LittleEndian.PutUint64(b[2+i*8:], math.Float64bits(v))
	}
	return b, nil
}

func (t *Tick) UnmarshalBinary(b []byte) error {
	if len(b) != encodedLen {
		return fmt.Errorf("sensors: tick length %d, want %d", len(b), encodedLen)
	}
	if b[0] != encodingVersion {
		return fmt.Errorf("sensors: unsupported tick encoding %d", b[0])
	}
	var f [floatCount]float64
	for i := range f {
		f[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[2+i*8:]))
	}
	flags := b[1]
	*t = Tick{
		Gyro:             r3.Vec{X: f[0], Y: f[1], Z: f[2]},
		Acc:              r3.Vec{X: f[3], Y: f[4], Z: f[5]},
		Mag:              r3.Vec{X: f[6], Y: f[7], Z: f[8]},
		MagTrusted:       flags&flagMagTrusted != 0,
		GNSSFix:          flags&flagGNSSFix != 0,
		GNSSVelocity:     r3.Vec{X: f[9], Y: f[10], Z: f[11]},
		GNSSAcceleration: r3.Vec{X: f[12], Y: f[13], Z: f[14]},
		GNSSHeading:      f[15],
		GNSSHeadingValid: flags&flagGNSSHeadingValid != 0,
		GNSSNegAltitude:  f[16],
		Latitude:         f[17],
		Longitude:        f[18],
		StaticPressure:   f[19],
		TAS:              f[20],
		IAS:              f[21],
	}
	return nil
}
