package kalman

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewFilter_DimensionMismatch(t *testing.T) {
	_, err := NewFilter(diag(1, 1), diag(1, 1, 1), mat.NewVecDense(3, nil), diag(1, 1, 1))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestFilter_ConstantEstimate(t *testing.T) {
	kf, err := NewFilter(diag(1), diag(0), mat.NewVecDense(1, nil), diag(100))
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	h := mat.NewVecDense(1, []float64{1})
	for i := 0; i < 200; i++ {
		kf.Predict()
		z := 4.0
		if i%2 == 0 {
			z = 6
		}
		kf.Correct(h, z, 1)
	}
	if got := kf.State(0); math.Abs(got-5) > 0.05 {
		t.Fatalf("state=%v want 5", got)
	}
	if p := kf.Covariance(0, 0); p <= 0 || p > 0.01 {
		t.Fatalf("P=%v want small positive", p)
	}
}

func TestVerticalPVA_TracksConstantClimb(t *testing.T) {
	const ts = 0.01
	v := NewVerticalPVA(DefaultPressureConfig(ts))
	v.Reset(-500, -9.81)
	var vario float64
	for i := 1; i <= 3000; i++ {
		pos := -500 - 2*float64(i)*ts
		vario = v.UpdatePressure(pos, -9.81)
	}
	if math.Abs(vario+2) > 0.05 {
		t.Fatalf("vario=%v want -2 (down axis)", vario)
	}
	if math.Abs(v.Get(Acceleration)) > 0.05 {
		t.Fatalf("acc=%v want ~0", v.Get(Acceleration))
	}
	if math.Abs(v.Get(AccelerationOffset)+9.81) > 0.05 {
		t.Fatalf("offset=%v want -9.81", v.Get(AccelerationOffset))
	}
}

func TestVerticalPVA_ResetClearsVelocity(t *testing.T) {
	v := NewVerticalPVA(DefaultGNSSConfig(0.01))
	for i := 0; i < 100; i++ {
		v.UpdateGNSS(float64(i), 3, -9.81)
	}
	v.Reset(-1000, -9.81)
	if v.Get(Position) != -1000 || v.Get(Vario) != 0 || v.Get(Acceleration) != 0 {
		t.Fatalf("state after reset pos=%v vario=%v acc=%v", v.Get(Position), v.Get(Vario), v.Get(Acceleration))
	}
	if v.Get(AccelerationOffset) != -9.81 {
		t.Fatalf("offset=%v want -9.81", v.Get(AccelerationOffset))
	}
}

func TestHorizontalVA_TracksVelocity(t *testing.T) {
	h := NewHorizontalVA(DefaultHorizontalConfig(0.01))
	var vel float64
	for i := 0; i < 2000; i++ {
		vel = h.Update(25, 0)
	}
	if math.Abs(vel-25) > 0.1 {
		t.Fatalf("vel=%v want 25", vel)
	}
}
