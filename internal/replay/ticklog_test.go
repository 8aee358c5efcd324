package replay

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"glidernav/internal/sensors"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func tickHex(t *testing.T, tk sensors.Tick) string {
	t.Helper()
	b, err := tk.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return hex.EncodeToString(b)
}

func TestReaderReadAll(t *testing.T) {
	a := sensors.Tick{Acc: r3.Vec{Z: -9.81}, TAS: 25}
	b := sensors.Tick{Acc: r3.Vec{Z: -9.81}, TAS: 26, GNSSFix: true}
	in := strings.NewReader("# session 6ba7b810-9dad-11d1-80b4-00c04fd430c8\n# comment\n\nSTART\n" +
		"0," + tickHex(t, a) + "\n" +
		"10000000, " + tickHex(t, b) + "\n")

	lg, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if lg.Session != uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") {
		t.Fatalf("session=%v", lg.Session)
	}
	if len(lg.Records) != 3 || lg.Ticks() != 2 {
		t.Fatalf("records=%d ticks=%d want 3/2", len(lg.Records), lg.Ticks())
	}
	if !lg.Records[0].Start {
		t.Fatalf("expected START marker first")
	}
	if lg.Records[2].At != 10*time.Millisecond {
		t.Fatalf("At=%s want 10ms", lg.Records[2].At)
	}
	if !reflect.DeepEqual(lg.Records[1].Tick, a) || !reflect.DeepEqual(lg.Records[2].Tick, b) {
		t.Fatalf("ticks mismatch: %+v", lg.Records)
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{name: "missing comma", in: "not-a-valid-line\n"},
		{name: "negative time", in: "-1,00\n"},
		{name: "bad hex", in: "0,zz\n"},
		{name: "short tick", in: "0,0102\n"},
		{name: "bad session", in: "# session nope\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewReader(strings.NewReader(tc.in)).ReadAll(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{Start: true},
		{At: 0, Tick: sensors.Tick{TAS: 1}},
		{At: 100 * time.Millisecond, Tick: sensors.Tick{TAS: 2}},
		{Start: true},
		{At: 50 * time.Millisecond, Tick: sensors.Tick{TAS: 3}},
	}

	var got []float64
	err := Play(context.Background(), recs, 1.0, false, fs, func(tk sensors.Tick) error {
		got = append(got, tk.TAS)
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Fatalf("ticks=%v want [1 2 3]", got)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Millisecond}) {
		t.Fatalf("slept = %v, want [100ms]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0},
		{At: 100 * time.Millisecond},
	}
	if err := Play(context.Background(), recs, 2.0, false, fs, func(sensors.Tick) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Millisecond}) {
		t.Fatalf("slept = %v, want [50ms]", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0}}
	noop := func(sensors.Tick) error { return nil }
	if err := Play(context.Background(), recs, 0, false, nil, noop); err == nil {
		t.Fatalf("expected error for speed 0")
	}
	if err := Play(context.Background(), nil, 1, false, nil, noop); err == nil {
		t.Fatalf("expected error for no records")
	}
	if err := Play(context.Background(), recs, 1, false, nil, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}

func TestPlay_LoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	recs := []Record{{At: 0}, {At: time.Millisecond}}
	n := 0
	err := Play(ctx, recs, 1, true, NoSleep{}, func(sensors.Tick) error {
		n++
		if n == 5 {
			cancel()
		}
		return nil
	})
	if err != context.Canceled {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if n != 5 {
		t.Fatalf("callbacks=%d want 5", n)
	}
}

func TestRecordReplay_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.log")
	session := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	w, err := createWriter(path, session)
	if err != nil {
		t.Fatalf("createWriter() error: %v", err)
	}

	in := []sensors.Tick{
		{Gyro: r3.Vec{X: 0.01}, Acc: r3.Vec{Z: -9.81}, Mag: r3.Vec{X: 0.4, Z: 0.9}, MagTrusted: true},
		{GNSSFix: true, GNSSVelocity: r3.Vec{X: 25}, GNSSNegAltitude: -1000, Latitude: 48.1, Longitude: 11.5},
		{GNSSHeadingValid: true, GNSSHeading: 1.5, StaticPressure: 89875, TAS: 25, IAS: 23.8},
	}
	for i, tk := range in {
		if err := w.WriteTick(time.Duration(i)*10*time.Millisecond, tk); err != nil {
			_ = w.Close()
			t.Fatalf("WriteTick() error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WriteTick(0, sensors.Tick{}); err == nil {
		t.Fatalf("expected error writing to closed writer")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if want := "# session 123e4567-e89b-12d3-a456-426614174000\nSTART\n0,"; !strings.HasPrefix(string(b), want) {
		t.Fatalf("unexpected file start: %q", string(b[:60]))
	}

	lg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if lg.Session != session {
		t.Fatalf("session=%v want %v", lg.Session, session)
	}

	var out []sensors.Tick
	fs := &fakeSleeper{}
	if err := Play(context.Background(), lg.Records, 1.0, false, fs, func(tk sensors.Tick) error {
		out = append(out, tk)
		return nil
	}); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("ticks mismatch\n got: %+v\nwant: %+v", out, in)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}) {
		t.Fatalf("slept=%v", fs.slept)
	}
}
