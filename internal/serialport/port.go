// Package serialport writes the NMEA sentence block to a flight computer on
// a serial line.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tarm/serial"
)

type openFunc func(c *serial.Config) (io.WriteCloser, error)

func openTarm(c *serial.Config) (io.WriteCloser, error) {
	return serial.OpenPort(c)
}

var errClosed = errors.New("serialport: closed")

// Port is an io.Writer on a serial device. After a write error the device
// is closed and reopened on the next Write, so a replugged USB adapter
// comes back without restarting the service.
type Port struct {
	mu     sync.Mutex
	cfg    serial.Config
	open   openFunc
	w      io.WriteCloser
	closed bool
}

func Open(device string, baud int) (*Port, error) {
	return open(device, baud, openTarm)
}

func open(device string, baud int, fn openFunc) (*Port, error) {
	if device == "" {
		return nil, fmt.Errorf("serialport: device is required")
	}
	if baud <= 0 {
		return nil, fmt.Errorf("serialport: invalid baud %d", baud)
	}
	p := &Port{cfg: serial.Config{Name: device, Baud: baud}, open: fn}
	w, err := fn(&p.cfg)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", device, err)
	}
	p.w = w
	return p, nil
}

func (p *Port) Device() string { return p.cfg.Name }

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if p.w == nil {
		w, err := p.open(&p.cfg)
		if err != nil {
			return 0, fmt.Errorf("serialport: reopen %s: %w", p.cfg.Name, err)
		}
		p.w = w
	}
	n, err := p.w.Write(b)
	if err != nil {
		_ = p.w.Close()
		p.w = nil
		return n, fmt.Errorf("serialport: write %s: %w", p.cfg.Name, err)
	}
	return n, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}
