// Package device talks to the pump and flow meter. Each backend (serial
// hardware, simulator) implements Device; nothing here holds package state.
package device

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/pkg/models"
)

// Device is the pump/flow-meter pair driven by the service
type Device interface {
	Connect(ctx context.Context) (models.ConnectResult, error)
	StartPump(ctx context.Context) error
	StopPump(ctx context.Context) error
	SetFrequency(ctx context.Context, hz float64) error
	ReadFlow(ctx context.Context) (float64, error)
	Close() error
}

// DeviceError wraps a failed pump or flow meter call
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Backend modes accepted by Open
const (
	ModeSimulator = "simulator"
	ModeSerial    = "serial"
)

// Config selects and configures a backend
type Config struct {
	Mode                string
	Serial              SerialConfig
	Simulator           SimulatorConfig
	FallbackToSimulator bool
}

// Open builds the configured backend. A serial rig that cannot be opened
// degrades to the simulator when FallbackToSimulator is set.
func Open(cfg Config) (Device, error) {
	switch cfg.Mode {
	case "", ModeSimulator:
		log.Info().Msg("Using simulated pump and flow meter")
		return NewSimulator(cfg.Simulator), nil
	case ModeSerial:
		dev, err := OpenSerial(cfg.Serial)
		if err == nil {
			return dev, nil
		}
		if !cfg.FallbackToSimulator {
			return nil, err
		}
		log.Warn().Err(err).Msg("Serial devices unavailable, falling back to simulator")
		return NewSimulator(cfg.Simulator), nil
	default:
		return nil, fmt.Errorf("unknown device mode %q", cfg.Mode)
	}
}
