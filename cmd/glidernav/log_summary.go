package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"glidernav/internal/replay"
	"glidernav/internal/sensors"

	"github.com/google/uuid"
)

type logSummary struct {
	Session        uuid.UUID
	Segments       int
	Ticks          int
	MaxDuration    time.Duration
	FixTicks       int
	FixChanges     int
	MagTrusted     int
	DGNSSHeading   int
	MinPressureAlt float64
	MaxPressureAlt float64
}

func summarizeTickLog(l replay.Log) logSummary {
	s := logSummary{
		Session:        l.Session,
		MinPressureAlt: math.Inf(1),
		MaxPressureAlt: math.Inf(-1),
	}
	segments := 0
	haveFix := false
	lastFix := false
	for _, r := range l.Records {
		if r.Start {
			segments++
			continue
		}
		s.Ticks++
		if r.At > s.MaxDuration {
			s.MaxDuration = r.At
		}
		tk := r.Tick
		if tk.GNSSFix {
			s.FixTicks++
		}
		if haveFix && tk.GNSSFix != lastFix {
			s.FixChanges++
		}
		haveFix, lastFix = true, tk.GNSSFix
		if tk.MagTrusted {
			s.MagTrusted++
		}
		if tk.GNSSHeadingValid {
			s.DGNSSHeading++
		}
		alt := sensors.PressureAltitude(tk.StaticPressure)
		s.MinPressureAlt = math.Min(s.MinPressureAlt, alt)
		s.MaxPressureAlt = math.Max(s.MaxPressureAlt, alt)
	}
	if segments == 0 && s.Ticks > 0 {
		segments = 1
	}
	s.Segments = segments
	if s.Ticks == 0 {
		s.MinPressureAlt, s.MaxPressureAlt = 0, 0
	}
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	l, err := replay.Load(path)
	if err != nil {
		return err
	}
	s := summarizeTickLog(l)

	fmt.Fprintf(w, "path: %s\n", path)
	if s.Session != uuid.Nil {
		fmt.Fprintf(w, "session: %s\n", s.Session)
	}
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "ticks: %d\n", s.Ticks)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "gnss_fix_ticks: %d\n", s.FixTicks)
	fmt.Fprintf(w, "gnss_fix_changes: %d\n", s.FixChanges)
	fmt.Fprintf(w, "mag_trusted_ticks: %d\n", s.MagTrusted)
	fmt.Fprintf(w, "dgnss_heading_ticks: %d\n", s.DGNSSHeading)
	fmt.Fprintf(w, "pressure_alt_m: %.1f .. %.1f\n", s.MinPressureAlt, s.MaxPressureAlt)
	return nil
}
