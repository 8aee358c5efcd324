package magcal

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func feedCircle(c *Collector, offset, scale [3]float64, n int) {
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		exp := [3]float64{0.44 * math.Cos(a), 0.44 * math.Sin(a), 0.9 + 0.05*math.Sin(2*a)}
		var raw [3]float64
		for k := range raw {
			raw[k] = offset[k] + scale[k]*exp[k]
		}
		c.Add(exp, raw)
	}
}

func TestAxisFit_RecoversLine(t *testing.T) {
	var a AxisFit
	for i := 0; i < 1000; i++ {
		x := math.Sin(float64(i) * 0.01)
		a.Add(x, 0.2+1.5*x)
	}
	r, err := a.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if math.Abs(r.Offset-0.2) > 1e-9 || math.Abs(r.Scale-1.5) > 1e-9 {
		t.Fatalf("result=%+v want offset 0.2 scale 1.5", r)
	}
}

func TestAxisFit_NotEnoughSpread(t *testing.T) {
	var a AxisFit
	for i := 0; i < 1000; i++ {
		a.Add(0.5, 1)
	}
	if a.Valid() {
		t.Fatalf("expected invalid fit for constant x")
	}
	if _, err := a.Result(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCalibration_SetIfChanged(t *testing.T) {
	c := NewCalibration()
	if c.Done() {
		t.Fatalf("fresh calibration reports done")
	}
	raw := r3.Vec{X: 1, Y: 2, Z: 3}
	if got := c.Calibrate(raw); got != raw {
		t.Fatalf("uncalibrated=%v want passthrough", got)
	}

	var col Collector
	offset := [3]float64{0.1, -0.2, 0.05}
	scale := [3]float64{1.1, 0.9, 1.0}
	feedCircle(&col, offset, scale, 2000)
	if !c.SetIfChanged(&col, true) {
		t.Fatalf("first calibration not accepted")
	}
	if col.Count() != 0 {
		t.Fatalf("collector not reset, count=%d", col.Count())
	}
	got := c.Calibrate(r3.Vec{X: offset[0] + scale[0]*0.3, Y: offset[1] + scale[1]*0.4, Z: offset[2] + scale[2]*0.8})
	if math.Abs(got.X-0.3) > 1e-6 || math.Abs(got.Y-0.4) > 1e-6 || math.Abs(got.Z-0.8) > 1e-6 {
		t.Fatalf("calibrated=%v want {0.3 0.4 0.8}", got)
	}

	// Same data from the other direction: no material change.
	feedCircle(&col, offset, scale, 2000)
	if c.SetIfChanged(&col, false) {
		t.Fatalf("unchanged calibration reported as changed")
	}

	// Too little data is ignored.
	feedCircle(&col, offset, scale, 10)
	if c.SetIfChanged(&col, true) {
		t.Fatalf("short collection accepted")
	}
}

func TestEarthInductionCollector(t *testing.T) {
	e := NewEarthInductionCollector()
	want := r3.Vec{X: 0.44, Y: 0.02, Z: 0.9}
	for i := 0; i < 5000; i++ {
		e.Feed(want, i%2 == 0)
	}
	if !e.DataValid() {
		t.Fatalf("expected valid data")
	}
	if d := r3.Norm(r3.Sub(e.EstimatedInduction(), want)); d > 1e-9 {
		t.Fatalf("estimate=%v want %v", e.EstimatedInduction(), want)
	}
	if v := e.Variance(); v > 1e-12 {
		t.Fatalf("variance=%v want 0", v)
	}
	e.Reset()
	if e.DataValid() {
		t.Fatalf("valid after reset")
	}
}

func TestFileStore_RoundTripAndMissing(t *testing.T) {
	dir := t.TempDir()
	s := FileStore{Path: filepath.Join(dir, "magcal.yaml")}

	if _, ok, err := s.Load(); err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v want ok=false err=nil", ok, err)
	}
	rep := Report{
		Calibration:        [3]AxisCalibration{{Offset: 0.1, Scale: 1.1}, {Offset: -0.2, Scale: 0.9}, {Offset: 0, Scale: 1}},
		NavInduction:       [3]float64{0.44, 0, 0.9},
		NavInductionStdDev: 0.01,
	}
	if err := s.Save(rep); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c, err := Open(s)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !c.Done() || c.Coefficients() != rep.Calibration {
		t.Fatalf("coefficients=%+v want %+v", c.Coefficients(), rep.Calibration)
	}
}

func TestOpen_CorruptFileFails(t *testing.T) {
	p := filepath.Join(t.TempDir(), "magcal.yaml")
	if err := os.WriteFile(p, []byte("calibration: [oops"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(FileStore{Path: p}); err == nil {
		t.Fatalf("expected error")
	}
}
