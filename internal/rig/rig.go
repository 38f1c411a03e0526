// Package rig owns the pump/flow-meter device and mirrors its status for
// polling clients. Manual commands go through Rig; a sweep takes an exclusive
// Session so no other caller can drive the pump while it runs.
package rig

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/internal/device"
	"github.com/RMahshie/flowrig/internal/stability"
	"github.com/RMahshie/flowrig/pkg/models"
)

var (
	ErrBusy              = errors.New("rig is in use by a sweep")
	ErrSessionReleased   = errors.New("sweep session already released")
	ErrPumpNotConnected  = errors.New("pump not connected")
	ErrMeterNotConnected = errors.New("flow meter not connected")
	ErrPumpNotRunning    = errors.New("pump not running")
)

// Config tunes status tracking
type Config struct {
	HistorySize      int     // readings kept for manual stability
	StabilityWindow  int     // readings compared by the stability check
	TolerancePercent float64 // max relative deviation for "stable"
}

// DefaultConfig returns the limits used by the lab rig
func DefaultConfig() Config {
	return Config{HistorySize: 10, StabilityWindow: stability.DefaultWindowSize, TolerancePercent: 5}
}

// Rig serializes access to a device and tracks its last known state
type Rig struct {
	mu      sync.Mutex
	dev     device.Device
	cfg     Config
	status  models.SystemStatus
	history []float64
	claimed bool
}

// New wraps dev. Devices start disconnected until Connect is called.
func New(dev device.Device, cfg Config) *Rig {
	def := DefaultConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = def.StabilityWindow
	}
	if cfg.TolerancePercent <= 0 {
		cfg.TolerancePercent = def.TolerancePercent
	}
	return &Rig{dev: dev, cfg: cfg}
}

// Connect connects both devices and clears any previous error
func (r *Rig) Connect(ctx context.Context) (models.ConnectResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.dev.Connect(ctx)
	if err != nil {
		r.recordError(err)
		return res, err
	}
	r.status.PumpConnected = res.PumpConnected
	r.status.FlowMeterConnected = res.FlowMeterConnected
	r.status.Error = nil

	log.Info().Bool("pump", res.PumpConnected).Bool("flow_meter", res.FlowMeterConnected).Msg("Devices connected")
	return res, nil
}

// Status returns the mirrored state. While the pump runs outside a sweep it
// takes a fresh reading first; a failed reading is reported in Error.
func (r *Rig) Status(ctx context.Context) models.SystemStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.PumpRunning && r.status.FlowMeterConnected && !r.claimed {
		if flow, err := r.dev.ReadFlow(ctx); err != nil {
			r.recordError(err)
		} else {
			r.recordReading(flow)
			r.status.FlowRateStable = r.stableLocked()
		}
	}
	return r.snapshot()
}

// StartPump starts the pump on operator request
func (r *Rig) StartPump(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.manualLocked(); err != nil {
		return err
	}
	return r.startLocked(ctx)
}

// StopPump stops the pump and clears the live readings
func (r *Rig) StopPump(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.manualLocked(); err != nil {
		return err
	}
	return r.stopLocked(ctx)
}

// SetFrequency commands a running pump to hz
func (r *Rig) SetFrequency(ctx context.Context, hz float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.manualLocked(); err != nil {
		return err
	}
	if !r.status.PumpRunning {
		return ErrPumpNotRunning
	}
	return r.setFrequencyLocked(ctx, hz)
}

// ReadFlow takes one reading and adds it to the stability history
func (r *Rig) ReadFlow(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.FlowMeterConnected {
		return 0, ErrMeterNotConnected
	}
	flow, err := r.dev.ReadFlow(ctx)
	if err != nil {
		r.recordError(err)
		return 0, err
	}
	r.recordReading(flow)
	return flow, nil
}

// FlowStable evaluates the recent reading history
func (r *Rig) FlowStable() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.FlowMeterConnected {
		return false, ErrMeterNotConnected
	}
	r.status.FlowRateStable = r.stableLocked()
	return r.status.FlowRateStable, nil
}

// Claim hands out the exclusive session a sweep runs on
func (r *Rig) Claim() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed {
		return nil, ErrBusy
	}
	if !r.status.PumpConnected {
		return nil, ErrPumpNotConnected
	}
	if !r.status.FlowMeterConnected {
		return nil, ErrMeterNotConnected
	}
	r.claimed = true
	r.history = r.history[:0]
	return &Session{rig: r}, nil
}

// Close releases the device
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev.Close()
}

func (r *Rig) manualLocked() error {
	if r.claimed {
		return ErrBusy
	}
	if !r.status.PumpConnected {
		return ErrPumpNotConnected
	}
	return nil
}

func (r *Rig) startLocked(ctx context.Context) error {
	if err := r.dev.StartPump(ctx); err != nil {
		r.recordError(err)
		return err
	}
	r.status.PumpRunning = true
	return nil
}

func (r *Rig) stopLocked(ctx context.Context) error {
	if err := r.dev.StopPump(ctx); err != nil {
		r.recordError(err)
		return err
	}
	r.status.PumpRunning = false
	r.status.CurrentFrequency = nil
	r.status.CurrentFlowRate = nil
	r.status.FlowRateStable = false
	r.history = r.history[:0]
	return nil
}

func (r *Rig) setFrequencyLocked(ctx context.Context, hz float64) error {
	if err := r.dev.SetFrequency(ctx, hz); err != nil {
		r.recordError(err)
		return err
	}
	r.status.CurrentFrequency = &hz
	r.status.FlowRateStable = false
	r.history = r.history[:0]
	return nil
}

func (r *Rig) recordReading(flow float64) {
	r.history = append(r.history, flow)
	if len(r.history) > r.cfg.HistorySize {
		r.history = r.history[len(r.history)-r.cfg.HistorySize:]
	}
	r.status.CurrentFlowRate = &flow
}

func (r *Rig) recordError(err error) {
	msg := err.Error()
	r.status.Error = &msg
	log.Error().Err(err).Msg("Device call failed")
}

func (r *Rig) stableLocked() bool {
	return stability.RelativelyStable(r.history, r.cfg.StabilityWindow, r.cfg.TolerancePercent)
}

func (r *Rig) snapshot() models.SystemStatus {
	s := r.status
	if s.CurrentFrequency != nil {
		f := *s.CurrentFrequency
		s.CurrentFrequency = &f
	}
	if s.CurrentFlowRate != nil {
		f := *s.CurrentFlowRate
		s.CurrentFlowRate = &f
	}
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	s.Scanning = r.claimed
	return s
}
