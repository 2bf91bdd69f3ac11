// Package serialport implements model.Port on top of a serial line.
package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/geotdo/leicactl/internal/model"
)

// stream is the part of serial.Port the adapter needs. go.bug.st/serial
// reports a read timeout as (0, nil).
type stream interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

type openFunc func() (stream, error)

type Port struct {
	name        string
	newline     string
	readTimeout time.Duration
	open        openFunc

	mx  sync.Mutex
	s   stream
	buf []byte
}

// New validates the line settings. The device is not touched until Open.
func New(cfg model.PortConfig, readTimeout time.Duration) (*Port, error) {
	mode, err := Mode(cfg)
	if err != nil {
		return nil, err
	}
	open := func() (stream, error) {
		return serial.Open(cfg.Name, mode)
	}
	return newPort(cfg, readTimeout, open), nil
}

func newPort(cfg model.PortConfig, readTimeout time.Duration, open openFunc) *Port {
	newline := cfg.NewLine
	if newline == "" {
		newline = "\r\n"
	}
	return &Port{
		name:        cfg.Name,
		newline:     newline,
		readTimeout: readTimeout,
		open:        open,
	}
}

// Mode translates the configuration into serial.Mode.
func Mode(cfg model.PortConfig) (*serial.Mode, error) {
	if cfg.Name == "" {
		return nil, errors.New("port name is empty")
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	switch strings.ToLower(cfg.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %q", cfg.StopBits)
	}
	return mode, nil
}

// List returns the names of serial ports present on the system.
func List() ([]string, error) {
	return serial.GetPortsList()
}

func (p *Port) Name() string {
	return p.name
}

func (p *Port) IsOpen() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.s != nil
}

func (p *Port) Open() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.s != nil {
		return nil
	}
	s, err := p.open()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", model.ErrPort, p.name, err)
	}
	p.s = s
	p.buf = p.buf[:0]
	return nil
}

// Close closes the line. Closing a closed port is a no-op.
func (p *Port) Close() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.s == nil {
		return nil
	}
	err := p.s.Close()
	p.s = nil
	p.buf = p.buf[:0]
	if err != nil {
		return fmt.Errorf("%w: closing %s: %w", model.ErrPort, p.name, err)
	}
	return nil
}

func (p *Port) WriteLine(text string) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.s == nil {
		return fmt.Errorf("%w: writing to %s: port is closed", model.ErrPort, p.name)
	}
	if _, err := io.WriteString(p.s, text+p.newline); err != nil {
		return fmt.Errorf("%w: writing to %s: %w", model.ErrPort, p.name, err)
	}
	return nil
}

// ReadLine returns the next line without its terminator. Lines are split on
// '\n' and a trailing '\r' is dropped, whatever the configured newline is.
// Bytes of an incomplete line are kept for the next call.
func (p *Port) ReadLine() (string, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.s == nil {
		return "", fmt.Errorf("%w: reading from %s: port is closed", model.ErrPort, p.name)
	}

	deadline := time.Now().Add(p.readTimeout)
	var chunk [256]byte
	for {
		if i := bytes.IndexByte(p.buf, '\n'); i >= 0 {
			line := strings.TrimRight(string(p.buf[:i]), "\r")
			p.buf = append(p.buf[:0], p.buf[i+1:]...)
			return line, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("%w: no response from %s within %s", model.ErrTimeout, p.name, p.readTimeout)
		}
		if err := p.s.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("%w: setting read timeout on %s: %w", model.ErrPort, p.name, err)
		}
		n, err := p.s.Read(chunk[:])
		p.buf = append(p.buf, chunk[:n]...)
		if err != nil {
			return "", fmt.Errorf("%w: reading from %s: %w", model.ErrPort, p.name, err)
		}
	}
}
