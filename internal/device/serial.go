package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/RMahshie/flowrig/pkg/models"
)

// SerialConfig locates the two serial devices
type SerialConfig struct {
	PumpPort      string
	FlowMeterPort string
	BaudRate      int
	ReadTimeout   time.Duration
}

var errNoResponse = errors.New("no response")

// inputResetter is implemented by serial ports that can drop unread input
type inputResetter interface {
	ResetInputBuffer() error
}

// lineConn exchanges CRLF-terminated commands for single-line replies
type lineConn struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	pending []byte
}

func newLineConn(rw io.ReadWriter) *lineConn {
	return &lineConn{rw: rw}
}

func (c *lineConn) exchange(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// a reply that arrived after an earlier timeout must not answer this command
	c.pending = nil
	if r, ok := c.rw.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return "", fmt.Errorf("reset input: %w", err)
		}
	}

	if _, err := io.WriteString(c.rw, cmd+"\r\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}
	line, err := c.readLine()
	if err != nil {
		c.pending = nil
		return "", err
	}
	return line, nil
}

// readLine treats a zero-byte read as the port's read timeout expiring
func (c *lineConn) readLine() (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return strings.TrimSpace(line), nil
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) && len(c.pending) > 0 {
				line := string(c.pending)
				c.pending = nil
				return strings.TrimSpace(line), nil
			}
			return "", err
		}
		if n == 0 {
			return "", errNoResponse
		}
	}
}

// Serial drives a pump and a flow meter over text line protocols
type Serial struct {
	pump    *lineConn
	meter   *lineConn
	closers []io.Closer
}

// NewSerial wraps already-open connections to the pump and the flow meter
func NewSerial(pump, meter io.ReadWriter) *Serial {
	return &Serial{pump: newLineConn(pump), meter: newLineConn(meter)}
}

// OpenSerial opens both serial ports
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}

	pump, err := openPort(cfg.PumpPort, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("open pump port: %w", err)
	}
	meter, err := openPort(cfg.FlowMeterPort, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		pump.Close()
		return nil, fmt.Errorf("open flow meter port: %w", err)
	}

	log.Info().Str("pump_port", cfg.PumpPort).Str("flow_meter_port", cfg.FlowMeterPort).Int("baud", cfg.BaudRate).Msg("Serial devices opened")

	s := NewSerial(pump, meter)
	s.closers = []io.Closer{pump, meter}
	return s, nil
}

func openPort(name string, baud int, timeout time.Duration) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// Connect reports both ports as connected; they are opened by OpenSerial
func (s *Serial) Connect(ctx context.Context) (models.ConnectResult, error) {
	return models.ConnectResult{PumpConnected: s.pump != nil, FlowMeterConnected: s.meter != nil}, nil
}

func (s *Serial) pumpCommand(ctx context.Context, op, cmd string) error {
	resp, err := s.pump.exchange(ctx, cmd)
	if err != nil {
		return &DeviceError{Op: op, Err: err}
	}
	switch {
	case resp == "":
		return &DeviceError{Op: op, Err: errNoResponse}
	case strings.HasPrefix(resp, "OK"):
		return nil
	case strings.HasPrefix(resp, "ERROR"):
		return &DeviceError{Op: op, Err: fmt.Errorf("pump replied %q", resp)}
	default:
		return &DeviceError{Op: op, Err: fmt.Errorf("unexpected reply %q", resp)}
	}
}

// StartPump sends PUMP:START
func (s *Serial) StartPump(ctx context.Context) error {
	return s.pumpCommand(ctx, "start pump", "PUMP:START")
}

// StopPump sends PUMP:STOP
func (s *Serial) StopPump(ctx context.Context) error {
	return s.pumpCommand(ctx, "stop pump", "PUMP:STOP")
}

// SetFrequency sends PUMP:FREQ:<hz> with one decimal
func (s *Serial) SetFrequency(ctx context.Context, hz float64) error {
	return s.pumpCommand(ctx, "set frequency", "PUMP:FREQ:"+strconv.FormatFloat(hz, 'f', 1, 64))
}

// ReadFlow sends READ and parses a VALUE:<float> reply. Non-finite
// values are rejected.
func (s *Serial) ReadFlow(ctx context.Context) (float64, error) {
	resp, err := s.meter.exchange(ctx, "READ")
	if err != nil {
		return 0, &DeviceError{Op: "read flow", Err: err}
	}
	value, ok := strings.CutPrefix(resp, "VALUE:")
	if !ok {
		return 0, &DeviceError{Op: "read flow", Err: fmt.Errorf("unexpected reply %q", resp)}
	}
	flow, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &DeviceError{Op: "read flow", Err: err}
	}
	if math.IsNaN(flow) || math.IsInf(flow, 0) {
		return 0, &DeviceError{Op: "read flow", Err: fmt.Errorf("non-finite reading %q", resp)}
	}
	return flow, nil
}

// Close closes the ports opened by OpenSerial
func (s *Serial) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
