package sensors

import "math"

const (
	seaLevelPressure = 101325.0 // Pa
	seaLevelTemp     = 288.15   // K
	lapseRate        = 0.0065   // K/m
	baroExponent     = 0.190263 // R*L/(g*M)
)

// PressureAltitude converts static pressure (Pa) to ISA pressure altitude (m).
func PressureAltitude(pa float64) float64 {
	if pa <= 0 {
		return 0
	}
	return seaLevelTemp / lapseRate * (1 - math.Pow(pa/seaLevelPressure, baroExponent))
}

// StaticPressure is the inverse of PressureAltitude.
func StaticPressure(altitude float64) float64 {
	return seaLevelPressure * math.Pow(1-altitude*lapseRate/seaLevelTemp, 1/baroExponent)
}
