// Package replay records sensor ticks to a text log and plays them back with
// their original timing.
package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"glidernav/internal/sensors"

	"github.com/google/uuid"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Line "# session <uuid>" names the recording; other '#' lines are ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<hex>
//   where t_ns is the sample time since START and hex is the binary
//   encoding of sensors.Tick.

const sessionPrefix = "# session "

type Record struct {
	At    time.Duration
	Start bool
	Tick  sensors.Tick
}

// Log is a parsed tick log.
type Log struct {
	Session uuid.UUID // uuid.Nil when the log carries no session header
	Records []Record
}

// Ticks returns the number of data records.
func (l Log) Ticks() int {
	n := 0
	for _, r := range l.Records {
		if !r.Start {
			n++
		}
	}
	return n
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() (Log, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := Log{Records: make([]Record, 0, 1024)}
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, sessionPrefix) {
			id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(line, sessionPrefix)))
			if err != nil {
				return Log{}, fmt.Errorf("line %d: invalid session id: %w", lineNo, err)
			}
			out.Session = id
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			out.Records = append(out.Records, Record{Start: true})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return Log{}, fmt.Errorf("line %d: invalid tick line (missing comma): %q", lineNo, line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || hexStr == "" {
			return Log{}, fmt.Errorf("line %d: invalid tick line (empty field)", lineNo)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return Log{}, fmt.Errorf("line %d: invalid timestamp %q: %w", lineNo, tsStr, err)
		}
		if tsNs < 0 {
			return Log{}, fmt.Errorf("line %d: invalid timestamp (negative): %d", lineNo, tsNs)
		}

		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return Log{}, fmt.Errorf("line %d: invalid hex payload: %w", lineNo, err)
		}
		var tk sensors.Tick
		if err := tk.UnmarshalBinary(b); err != nil {
			return Log{}, fmt.Errorf("line %d: %w", lineNo, err)
		}

		out.Records = append(out.Records, Record{At: time.Duration(tsNs), Tick: tk})
	}
	if err := s.Err(); err != nil {
		return Log{}, err
	}
	return out, nil
}

// Load reads a tick log file.
func Load(path string) (Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return Log{}, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	f       *os.File
	w       *bufio.Writer
	session uuid.UUID
	closed  bool
}

// CreateWriter starts a new log at path with a fresh session id.
func CreateWriter(path string) (*Writer, error) {
	return createWriter(path, uuid.New())
}

func createWriter(path string, session uuid.UUID) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(bw, "%s%s\nSTART\n", sessionPrefix, session); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, session: session}, nil
}

func (ww *Writer) Session() uuid.UUID { return ww.session }

// WriteTick appends one tick at sample time at (relative to START).
func (ww *Writer) WriteTick(at time.Duration, tk sensors.Tick) error {
	if ww.closed {
		return errors.New("tick writer is closed")
	}
	if at < 0 {
		at = 0
	}
	b, err := tk.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(ww.w, "%d,%s\n", at.Nanoseconds(), hex.EncodeToString(b)); err != nil {
		return err
	}
	return nil
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// NoSleep plays records back as fast as the callback allows.
type NoSleep struct{}

func (NoSleep) Sleep(time.Duration) {}

// Play replays records with their relative timing.
//
// The callback is invoked for each data record. START markers reset the
// origin. speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits).
// Play stops early when ctx is done and returns ctx.Err().
func Play(ctx context.Context, records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(tk sensors.Tick) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.Start {
				lastAt = 0
				haveLast = false
				continue
			}

			if haveLast {
				wait := r.At - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Tick); err != nil {
				return err
			}

			lastAt = r.At
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
