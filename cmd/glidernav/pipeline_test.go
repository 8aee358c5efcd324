package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glidernav/internal/config"
	"glidernav/internal/magcal"
	"glidernav/internal/nmea"
	"glidernav/internal/replay"
	"glidernav/internal/sensors"
	"glidernav/internal/sim"
	"glidernav/internal/web"
)

const straightScenario = `
start: {lat_deg: 48, lon_deg: 11, alt_m: 1000, heading_deg: 30}
wind: {north_mps: -2, east_mps: 1}
field: {inclination_deg: 64}
sensors:
  mag_trusted: true
keyframes:
  - {t: 0s, tas_mps: 25, climb_mps: -1}
  - {t: 20s, tas_mps: 25, climb_mps: -1}
`

type testRig struct {
	cfg    config.Config
	p      *pipeline
	store  *magcal.MemoryStore
	status *web.Status
	hub    *web.Hub
	out    *bytes.Buffer
}

func newTestRig(t *testing.T, scenario string) *testRig {
	t.Helper()
	dir := t.TempDir()
	scnPath := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(scnPath, []byte(scenario), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Parse([]byte("source:\n  scenario: '" + scnPath + "'\n"))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	r := &testRig{
		cfg:    cfg,
		store:  &magcal.MemoryStore{},
		status: web.NewStatus(),
		hub:    web.NewHub(),
		out:    &bytes.Buffer{},
	}
	r.p, err = newPipeline(cfg, r.store, r.status, r.hub)
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}
	r.p.addOutput("buffer", r.out)
	return r
}

func (r *testRig) run(t *testing.T) {
	t.Helper()
	src, _, err := newSource(r.cfg)
	if err != nil {
		t.Fatalf("newSource: %v", err)
	}
	if err := src(context.Background(), r.p.handle); err != nil {
		t.Fatalf("source: %v", err)
	}
}

func sentences(t *testing.T, b []byte) []string {
	t.Helper()
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		if !nmea.ValidChecksum(l) {
			t.Fatalf("sentence %d has bad checksum: %q", i, l)
		}
	}
	return lines
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestPipeline_SimFlightEmitsNMEA(t *testing.T) {
	r := newTestRig(t, straightScenario)
	r.run(t)

	if r.p.ticks != 2000 {
		t.Fatalf("ticks=%d want 2000", r.p.ticks)
	}
	lines := sentences(t, r.out.Bytes())
	for _, prefix := range []string{"$GPRMC,", "$GPGGA,", "$GPMWV,", "$POV,E,", "$POV,B,", "$HCHDT,"} {
		if n := countPrefix(lines, prefix); n != 200 {
			t.Fatalf("%s count=%d want 200", prefix, n)
		}
	}
	if n := countPrefix(lines, "$PLMAG,"); n != 0 {
		t.Fatalf("unexpected calibration reports: %d", n)
	}

	snap := r.status.Snapshot(time.Time{})
	if snap.TicksTotal != 2000 {
		t.Fatalf("status ticks=%d want 2000", snap.TicksTotal)
	}
	if snap.BytesSentTotal != uint64(r.out.Len()) {
		t.Fatalf("status bytes=%d want %d", snap.BytesSentTotal, r.out.Len())
	}

	last, ok := r.hub.Last()
	if !ok {
		t.Fatalf("no telemetry published")
	}
	if math.Abs(last.ElapsedSec-20) > 1e-9 {
		t.Fatalf("elapsed=%v want 20", last.ElapsedSec)
	}
	if last.AHRS.Circling != "straight" || !last.GNSSFix {
		t.Fatalf("telemetry=%+v", last)
	}
	if math.Abs(last.Observer.GNSSVario+1) > 0.2 {
		t.Fatalf("gnss vario=%v want ~-1", last.Observer.GNSSVario)
	}
	if h := r.p.heading(); math.Abs(h-30) > 2 {
		t.Fatalf("heading=%v want ~30", h)
	}
	if r.p.resets != 1 {
		t.Fatalf("resets=%d want 1", r.p.resets)
	}
}

func TestPipeline_WindAverageConverges(t *testing.T) {
	r := newTestRig(t, strings.Replace(straightScenario, "20s", "200s", 1))
	r.run(t)
	if math.Abs(r.p.windAvg.X+2) > 0.5 || math.Abs(r.p.windAvg.Y-1) > 0.5 {
		t.Fatalf("wind=%v want ~(-2, 1)", r.p.windAvg)
	}
	lines := sentences(t, r.out.Bytes())
	last := ""
	for _, l := range lines {
		if strings.HasPrefix(l, "$GPMWV,") {
			last = l
		}
	}
	// From 333.4 deg at 2.2 m/s.
	if !strings.HasPrefix(last, "$GPMWV,3") || !strings.Contains(last, ",T,00") {
		t.Fatalf("last wind sentence=%q", last)
	}
}

func TestPipeline_FixTransitionsResetObserver(t *testing.T) {
	r := newTestRig(t, `
sensors: {mag_trusted: true}
keyframes:
  - {t: 0s, tas_mps: 25}
  - {t: 5s, tas_mps: 25, gnss_fix: false}
  - {t: 10s, tas_mps: 25, gnss_fix: true}
  - {t: 15s, tas_mps: 25}
`)
	r.run(t)
	if r.p.resets != 3 {
		t.Fatalf("resets=%d want 3 (setup, loss, reacquire)", r.p.resets)
	}
	lines := sentences(t, r.out.Bytes())
	if n := countPrefix(lines, "$GPRMC,"); n != 150 {
		t.Fatalf("rmc count=%d want 150", n)
	}
	invalid := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "$GPRMC,") && strings.Split(l, ",")[2] == "V" {
			invalid++
		}
	}
	if invalid != 50 {
		t.Fatalf("rmc without fix=%d want 50", invalid)
	}
}

func TestPipeline_CalibrationReportEmitted(t *testing.T) {
	r := newTestRig(t, `
field: {inclination_deg: 64}
sensors:
  mag_trusted: true
keyframes:
  - {t: 0s, tas_mps: 25}
  - {t: 20s, tas_mps: 25}
  - {t: 22s, tas_mps: 25, turn_rate_dps: 18}
  - {t: 80s, tas_mps: 25, turn_rate_dps: 18}
  - {t: 82s, tas_mps: 25}
  - {t: 100s, tas_mps: 25}
`)
	r.run(t)

	if r.store.Saves != 1 {
		t.Fatalf("saves=%d want 1", r.store.Saves)
	}
	saved, ok, err := r.store.Load()
	if err != nil || !ok {
		t.Fatalf("store Load ok=%v err=%v", ok, err)
	}

	var plmag []string
	for _, l := range sentences(t, r.out.Bytes()) {
		if strings.HasPrefix(l, "$PLMAG,") {
			plmag = append(plmag, l)
		}
	}
	if len(plmag) != 1 {
		t.Fatalf("plmag sentences=%d want 1", len(plmag))
	}
	got, src, err := nmea.ParseCalibration(plmag[0])
	if err != nil {
		t.Fatalf("ParseCalibration: %v", err)
	}
	if src != 'm' {
		t.Fatalf("src=%q want 'm'", src)
	}
	for i := range got.Calibration {
		if math.Abs(got.Calibration[i].Offset-saved.Calibration[i].Offset) > 1e-5 ||
			math.Abs(got.Calibration[i].Scale-saved.Calibration[i].Scale) > 1e-5 {
			t.Fatalf("axis %d sent=%+v saved=%+v", i, got.Calibration[i], saved.Calibration[i])
		}
	}

	snap := r.status.Snapshot(time.Time{})
	if snap.CalibrationsTotal != 1 || snap.Calibration.Source != "m" {
		t.Fatalf("status calibration=%+v total=%d", snap.Calibration, snap.CalibrationsTotal)
	}
}

func TestPipeline_CorruptCalibrationStoreFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	if err := os.WriteFile(path, []byte("calibration: [nope\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Parse([]byte("source:\n  scenario: x.yaml\n"))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	if _, err := newPipeline(cfg, magcal.FileStore{Path: path}, nil, nil); err == nil {
		t.Fatalf("expected error for corrupt store")
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("network is unreachable")
}

func TestPipeline_FailingOutputDoesNotStopOthers(t *testing.T) {
	r := newTestRig(t, straightScenario)
	bad := &failingWriter{}
	r.p.outs = nil
	r.p.addOutput("bad", bad)
	r.p.addOutput("buffer", r.out)
	r.run(t)

	if bad.calls != 200 {
		t.Fatalf("bad writer calls=%d want 200", bad.calls)
	}
	if r.p.outs[0].errors != 200 {
		t.Fatalf("errors=%d want 200", r.p.outs[0].errors)
	}
	if n := countPrefix(sentences(t, r.out.Bytes()), "$HCHDT,"); n != 200 {
		t.Fatalf("hdt count=%d want 200", n)
	}
}

func TestPipeline_RecordThenReplayIsDeterministic(t *testing.T) {
	live := newTestRig(t, straightScenario)
	logPath := filepath.Join(t.TempDir(), "ticks.log")
	w, err := replay.CreateWriter(logPath)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	live.p.rec = w
	live.run(t)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l, err := replay.Load(logPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Session != w.Session() {
		t.Fatalf("session=%s want %s", l.Session, w.Session())
	}
	if l.Ticks() != 2000 {
		t.Fatalf("logged ticks=%d want 2000", l.Ticks())
	}

	replayed := newTestRig(t, straightScenario)
	src := replaySource(l.Records, 1, false, replay.NoSleep{})
	if err := src(context.Background(), replayed.p.handle); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if live.p.est.Euler() != replayed.p.est.Euler() {
		t.Fatalf("replayed attitude=%+v want %+v", replayed.p.est.Euler(), live.p.est.Euler())
	}
	if live.p.obs.GNSSVario() != replayed.p.obs.GNSSVario() {
		t.Fatalf("replayed vario=%v want %v", replayed.p.obs.GNSSVario(), live.p.obs.GNSSVario())
	}
	// NMEA timestamps follow the wall-clock origin of each run; compare the
	// attitude sentences only.
	a := countPrefix(sentences(t, live.out.Bytes()), "$POV,B,")
	b := countPrefix(sentences(t, replayed.out.Bytes()), "$POV,B,")
	if a != b {
		t.Fatalf("attitude sentences live=%d replayed=%d", a, b)
	}
}

func TestSimSource_StopsOnCancel(t *testing.T) {
	script, err := sim.ParseScenarioScriptYAML([]byte(straightScenario))
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := sim.NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	f, err := sim.NewFlight(scn, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFlight: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err = simSource(f, 10*time.Millisecond, false)(ctx, func(sensors.Tick) error {
		n++
		if n == 5 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if n != 5 {
		t.Fatalf("ticks=%d want 5", n)
	}
}
