package web

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"glidernav/internal/magcal"
)

// Status carries the slow-changing service state shown by /api/status.
// All methods are safe for concurrent use.
type Status struct {
	startUnixNano int64
	ticks         uint64
	bytesSent     uint64
	lastTickNano  int64
	calibrations  uint64
	source        atomic.Value // string
	session       atomic.Value // string
	outputs       atomic.Value // []string
	calibration   atomic.Value // CalibrationStatus
}

// CalibrationStatus is the most recent magnetometer calibration report.
type CalibrationStatus struct {
	Source     string         `json:"source"`
	UpdatedUTC string         `json:"updated_utc"`
	Report     *magcal.Report `json:"report,omitempty"`
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.source.Store("")
	s.session.Store("")
	s.outputs.Store([]string(nil))
	s.calibration.Store(CalibrationStatus{})
	return s
}

// SetStatic records the input source, recording session and output
// destinations. Empty values leave the previous setting unchanged.
func (s *Status) SetStatic(source, session string, outputs []string) {
	if source != "" {
		s.source.Store(source)
	}
	if session != "" {
		s.session.Store(session)
	}
	if outputs != nil {
		s.outputs.Store(append([]string(nil), outputs...))
	}
}

// MarkTick counts one processed sensor tick and the NMEA bytes it produced.
func (s *Status) MarkTick(nowUTC time.Time, bytesSent int) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastTickNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.ticks, 1)
	if bytesSent > 0 {
		atomic.AddUint64(&s.bytesSent, uint64(bytesSent))
	}
}

func (s *Status) SetCalibration(nowUTC time.Time, source string, rep magcal.Report) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.AddUint64(&s.calibrations, 1)
	s.calibration.Store(CalibrationStatus{
		Source:     source,
		UpdatedUTC: nowUTC.UTC().Format(time.RFC3339Nano),
		Report:     &rep,
	})
}

type StatusSnapshot struct {
	Service           string            `json:"service"`
	Version           string            `json:"version,omitempty"`
	Commit            string            `json:"commit,omitempty"`
	GoVersion         string            `json:"go_version"`
	NowUTC            string            `json:"now_utc"`
	UptimeSec         int64             `json:"uptime_sec"`
	Source            string            `json:"source"`
	Session           string            `json:"session,omitempty"`
	Outputs           []string          `json:"outputs"`
	TicksTotal        uint64            `json:"ticks_total"`
	BytesSentTotal    uint64            `json:"bytes_sent_total"`
	LastTickUTC       string            `json:"last_tick_utc,omitempty"`
	CalibrationsTotal uint64            `json:"calibrations_total"`
	Calibration       CalibrationStatus `json:"calibration"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	lastTick := atomic.LoadInt64(&s.lastTickNano)

	snap := StatusSnapshot{
		Service:           "glidernav",
		GoVersion:         runtime.Version(),
		NowUTC:            nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:         int64(nowUTC.Sub(start).Seconds()),
		Source:            s.source.Load().(string),
		Session:           s.session.Load().(string),
		Outputs:           s.outputs.Load().([]string),
		TicksTotal:        atomic.LoadUint64(&s.ticks),
		BytesSentTotal:    atomic.LoadUint64(&s.bytesSent),
		CalibrationsTotal: atomic.LoadUint64(&s.calibrations),
		Calibration:       s.calibration.Load().(CalibrationStatus),
	}
	if lastTick != 0 {
		snap.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		snap.Version = bi.Main.Version
		for _, kv := range bi.Settings {
			if kv.Key == "vcs.revision" {
				snap.Commit = kv.Value
			}
		}
	}
	return snap
}
