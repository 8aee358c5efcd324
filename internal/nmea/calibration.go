package nmea

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"glidernav/internal/magcal"
)

// AppendCalibration appends a $PLMAG sentence:
//
//	$PLMAG,<src>,<off_x>,<scale_x>,<off_y>,<scale_y>,<off_z>,<scale_z>,<ind_n>,<ind_e>,<ind_d>,<std>*HH
//
// src is the heading reference that was active during collection.
func AppendCalibration(b []byte, src byte, rep magcal.Report) []byte {
	b = append(b, "$PLMAG,"...)
	b = append(b, src)
	for _, a := range rep.Calibration {
		b = append(b, ',')
		b = strconv.AppendFloat(b, a.Offset, 'f', 5, 64)
		b = append(b, ',')
		b = strconv.AppendFloat(b, a.Scale, 'f', 5, 64)
	}
	for _, v := range rep.NavInduction {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v, 'f', 5, 64)
	}
	b = append(b, ',')
	b = strconv.AppendFloat(b, rep.NavInductionStdDev, 'f', 5, 64)
	return finish(b)
}

// ParseCalibration decodes a $PLMAG sentence produced by AppendCalibration.
func ParseCalibration(line string) (magcal.Report, byte, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return magcal.Report{}, 0, ErrNoStart
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return magcal.Report{}, 0, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	want, err := hex.DecodeString(line[star+1:])
	if err != nil || len(want) != 1 {
		return magcal.Report{}, 0, fmt.Errorf("nmea: bad checksum")
	}
	got := byte(0)
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if got != want[0] {
		return magcal.Report{}, 0, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	if parts[0] != "PLMAG" {
		return magcal.Report{}, 0, fmt.Errorf("nmea: not a PLMAG sentence: %q", parts[0])
	}
	if len(parts) != 12 || len(parts[1]) != 1 {
		return magcal.Report{}, 0, fmt.Errorf("nmea: PLMAG has %d fields, want 12", len(parts))
	}
	var v [10]float64
	for i := range v {
		f, err := strconv.ParseFloat(parts[i+2], 64)
		if err != nil {
			return magcal.Report{}, 0, fmt.Errorf("nmea: PLMAG field %d: %w", i+2, err)
		}
		v[i] = f
	}
	var rep magcal.Report
	for i := range rep.Calibration {
		rep.Calibration[i] = magcal.AxisCalibration{Offset: v[2*i], Scale: v[2*i+1]}
	}
	copy(rep.NavInduction[:], v[6:9])
	rep.NavInductionStdDev = v[9]
	return rep, parts[1][0], nil
}
