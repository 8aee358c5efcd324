// Package nmea formats the NMEA-style sentences sent to flight computers:
// position (RMC, GGA), wind (MWV), OpenVario air data and attitude (POV),
// true heading (HDT) and magnetometer calibration reports (PLMAG).
//
// All Append* functions append one complete sentence including the
// "*HH\r\n" tail and return the extended buffer.
package nmea

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	mpsToKnots    = 1.944
	radToDegree10 = 572.958
	hexDigits     = "0123456789ABCDEF"
)

var ErrNoStart = errors.New("nmea: sentence does not start with '$'")

// Fix is the GNSS position data for RMC and GGA.
type Fix struct {
	Time       time.Time
	Valid      bool
	Latitude   float64 // deg
	Longitude  float64 // deg
	Speed      float64 // m/s over ground
	Track      float64 // rad, true
	Altitude   float64 // m MSL
	GeoidSep   float64 // m
	Satellites int
}

// AppendTail computes the checksum of the sentence started at the last '$'
// in b and appends "*HH\r\n".
func AppendTail(b []byte) ([]byte, error) {
	start := -1
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == '$' {
			start = i
			break
		}
	}
	if start < 0 {
		return b, ErrNoStart
	}
	var sum byte
	for _, c := range b[start+1:] {
		if c == '*' {
			break
		}
		sum ^= c
	}
	return append(b, '*', hexDigits[sum>>4], hexDigits[sum&0x0f], '\r', '\n'), nil
}

// ValidChecksum reports whether line is "$...*HH" with a matching checksum.
// A trailing CR/LF is accepted; nothing else may follow the checksum.
func ValidChecksum(line string) bool {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if len(line) < 4 || line[0] != '$' {
		return false
	}
	var sum byte
	i := 1
	for ; i < len(line) && line[i] != '*'; i++ {
		sum ^= line[i]
	}
	if i+3 != len(line) {
		return false
	}
	return line[i+1] == hexDigits[sum>>4] && line[i+2] == hexDigits[sum&0x0f]
}

func finish(b []byte) []byte {
	b, _ = AppendTail(b)
	return b
}

// appendDigits appends v as exactly width zero-padded digits (v mod 10^width).
func appendDigits(b []byte, v, width int) []byte {
	if v < 0 {
		v = 0
	}
	var tmp [12]byte
	for i := width - 1; i >= 0; i-- {
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[:width]...)
}

// appendInt appends v without padding.
func appendInt(b []byte, v int) []byte {
	if v >= 10 {
		b = appendInt(b, v/10)
	}
	return append(b, byte('0'+v%10))
}

// appendFixed2 renders n/100 with exactly two decimals.
func appendFixed2(b []byte, n int) []byte {
	if n < 0 {
		b = append(b, '-')
		n = -n
	}
	b = appendInt(b, n/100)
	b = append(b, '.')
	return appendDigits(b, n%100, 2)
}

// appendFixed1 renders n/10 with one decimal.
func appendFixed1(b []byte, n int) []byte {
	if n < 0 {
		b = append(b, '-')
		n = -n
	}
	b = appendInt(b, n/10)
	b = append(b, '.')
	return appendDigits(b, n%10, 1)
}

// appendAngle renders |deg| as d..dmm.mmmmm with degDigits degree digits,
// followed by ",pos" or ",neg".
func appendAngle(b []byte, deg float64, degDigits int, pos, neg byte) []byte {
	hemi := pos
	if !(deg > 0) {
		hemi = neg
		deg = -deg
	}
	whole := int(deg)
	minutes := (deg - float64(whole)) * 60
	m := int(minutes)
	frac := int((minutes-float64(m))*100000 + 0.5)
	if frac >= 100000 {
		frac -= 100000
		m++
	}
	if m >= 60 {
		m -= 60
		whole++
	}
	b = appendDigits(b, whole, degDigits)
	b = appendDigits(b, m, 2)
	b = append(b, '.')
	b = appendDigits(b, frac, 5)
	return append(b, ',', hemi)
}

func appendClock(b []byte, t time.Time) []byte {
	t = t.UTC()
	b = appendDigits(b, t.Hour(), 2)
	b = appendDigits(b, t.Minute(), 2)
	b = appendDigits(b, t.Second(), 2)
	return append(b, ".00"...)
}

// toDegree10 converts an angle in radians to tenths of a degree in [0, 3600).
func toDegree10(rad float64) int {
	a := int(rad*radToDegree10 + 0.5)
	for a < 0 {
		a += 3600
	}
	return a % 3600
}

// AppendRMC appends the recommended minimum position sentence.
func AppendRMC(b []byte, f Fix) []byte {
	b = append(b, "$GPRMC,"...)
	b = appendClock(b, f.Time)
	if f.Valid {
		b = append(b, ",A,"...)
	} else {
		b = append(b, ",V,"...)
	}
	b = appendAngle(b, f.Latitude, 2, 'N', 'S')
	b = append(b, ',')
	b = appendAngle(b, f.Longitude, 3, 'E', 'W')
	b = append(b, ',')

	knots := int(f.Speed*mpsToKnots*10 + 0.5)
	b = appendDigits(b, knots/10, 3)
	b = append(b, '.')
	b = appendDigits(b, knots%10, 1)
	b = append(b, ',')

	track := toDegree10(f.Track)
	b = appendDigits(b, track/10, 3)
	b = append(b, '.')
	b = appendDigits(b, track%10, 1)
	b = append(b, ',')

	t := f.Time.UTC()
	b = appendDigits(b, t.Day(), 2)
	b = appendDigits(b, int(t.Month()), 2)
	b = appendDigits(b, t.Year()%100, 2)
	b = append(b, ",,,A"...)
	return finish(b)
}

// AppendGGA appends the fix data sentence. Altitudes below 0 are clamped.
func AppendGGA(b []byte, f Fix) []byte {
	b = append(b, "$GPGGA,"...)
	b = appendClock(b, f.Time)
	b = append(b, ',')
	b = appendAngle(b, f.Latitude, 2, 'N', 'S')
	b = append(b, ',')
	b = appendAngle(b, f.Longitude, 3, 'E', 'W')
	if f.Valid {
		b = append(b, ",1,"...)
	} else {
		b = append(b, ",0,"...)
	}
	b = appendDigits(b, f.Satellites, 2)
	b = append(b, ",0.0,"...)

	alt := int(f.Altitude * 10)
	b = appendDigits(b, alt/10, 4)
	b = append(b, '.')
	b = appendDigits(b, alt%10, 1)
	b = append(b, ",M,"...)

	sep := int(f.GeoidSep * 10)
	if sep < 0 {
		b = append(b, '-')
		sep = -sep
	}
	b = appendDigits(b, sep/10, 3)
	b = append(b, '.')
	b = appendDigits(b, sep%10, 1)
	b = append(b, ",M,,"...)
	return finish(b)
}

// AppendMWV appends the wind sentence. wind is the NED wind velocity; the
// reported direction is where the wind comes from.
func AppendMWV(b []byte, wind r3.Vec) []byte {
	b = append(b, "$GPMWV,"...)
	dir := toDegree10(math.Atan2(-wind.Y, -wind.X))
	b = appendDigits(b, dir/10, 3)
	b = append(b, '.')
	b = appendDigits(b, dir%10, 1)
	b = append(b, ",T,"...)

	speed := int(math.Hypot(wind.X, wind.Y) * 10)
	b = appendDigits(b, speed/10, 3)
	b = append(b, '.')
	b = appendDigits(b, speed%10, 1)
	b = append(b, ",M,A"...)
	return finish(b)
}

// AirData is the OpenVario $POV payload.
type AirData struct {
	TAS            float64 // m/s
	StaticPressure float64 // Pa
	PitotPressure  float64 // Pa, differential
	Vario          float64 // m/s, total energy
	SupplyVoltage  float64 // V

	// Humidity (%) and Temperature (deg C) are sent when HaveOutsideAir.
	HaveOutsideAir bool
	Humidity       float64
	Temperature    float64
}

// AppendPOV appends the OpenVario air data sentence.
func AppendPOV(b []byte, a AirData) []byte {
	b = append(b, "$POV,E,"...)
	b = appendFixed2(b, int(a.Vario*100))
	b = append(b, ",P,"...)
	b = appendFixed2(b, int(a.StaticPressure))
	b = append(b, ",R,"...)
	b = appendFixed2(b, int(math.Max(a.PitotPressure, 0)))
	b = append(b, ",S,"...)
	b = appendFixed2(b, int(a.TAS*360))
	b = append(b, ",V,"...)
	b = appendFixed1(b, int(a.SupplyVoltage*10))
	if a.HaveOutsideAir {
		b = append(b, ",H,"...)
		b = appendFixed2(b, int(a.Humidity*100))
		b = append(b, ",T,"...)
		b = appendFixed2(b, int(a.Temperature*100))
	}
	return finish(b)
}

// AppendAttitude appends the OpenVario bank/nick/yaw sentence. Angles in rad.
func AppendAttitude(b []byte, roll, nick, yaw float64) []byte {
	b = append(b, "$POV,B,"...)
	b = appendFixed1(b, int(roll*radToDegree10+0.5))
	b = append(b, ",N,"...)
	b = appendFixed1(b, int(nick*radToDegree10+0.5))
	if yaw < 0 {
		yaw += 2 * math.Pi
	}
	b = append(b, ",Y,"...)
	b = appendFixed1(b, int(yaw*radToDegree10+0.5))
	return finish(b)
}

// AppendHDT appends the true heading sentence. heading in rad.
func AppendHDT(b []byte, heading float64) []byte {
	h := int(heading * 573)
	if h < 0 {
		h += 3600
	}
	b = append(b, "$HCHDT,"...)
	b = appendFixed1(b, h)
	b = append(b, ",T"...)
	return finish(b)
}

// Output is one cycle of data for the flight computer.
type Output struct {
	Fix     Fix
	Wind    r3.Vec // averaged wind, NED
	Air     AirData
	Roll    float64
	Nick    float64
	Yaw     float64
	Heading float64 // true heading, rad
}

// AppendAll appends the full sentence block in the order RMC, GGA, MWV,
// POV air data, POV attitude, HDT.
func AppendAll(b []byte, o Output) []byte {
	b = AppendRMC(b, o.Fix)
	b = AppendGGA(b, o.Fix)
	b = AppendMWV(b, o.Wind)
	b = AppendPOV(b, o.Air)
	b = AppendAttitude(b, o.Roll, o.Nick, o.Yaw)
	return AppendHDT(b, o.Heading)
}
