package device

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/RMahshie/flowrig/pkg/models"
)

// SimulatorConfig tunes the simulated rig
type SimulatorConfig struct {
	Latency time.Duration // delay applied to every call
	Seed    uint64        // 0 picks a time-based seed
}

// Simulator models a pump whose flow is roughly proportional to frequency
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	latency   time.Duration
	running   bool
	frequency float64
	baseFlow  float64
}

// NewSimulator creates a stopped simulated rig
func NewSimulator(cfg SimulatorConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		latency: cfg.Latency,
	}
}

func (s *Simulator) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.latency):
		return nil
	}
}

// Connect always succeeds
func (s *Simulator) Connect(ctx context.Context) (models.ConnectResult, error) {
	if err := s.wait(ctx); err != nil {
		return models.ConnectResult{}, &DeviceError{Op: "connect", Err: err}
	}
	return models.ConnectResult{PumpConnected: true, FlowMeterConnected: true}, nil
}

// StartPump starts the simulated pump
func (s *Simulator) StartPump(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return &DeviceError{Op: "start pump", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

// StopPump stops the pump and clears the commanded frequency
func (s *Simulator) StopPump(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return &DeviceError{Op: "stop pump", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.frequency = 0
	s.baseFlow = 0
	return nil
}

// SetFrequency picks a new base flow of 0.5*f plus up to f/10 of offset
func (s *Simulator) SetFrequency(ctx context.Context, hz float64) error {
	if err := s.wait(ctx); err != nil {
		return &DeviceError{Op: "set frequency", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequency = hz
	s.baseFlow = 0.5*hz + s.rng.Float64()*(hz/10)
	return nil
}

// ReadFlow returns the base flow with ±0.2 L/min of noise, or 0 when stopped
func (s *Simulator) ReadFlow(ctx context.Context) (float64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, &DeviceError{Op: "read flow", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, nil
	}
	return s.baseFlow + (s.rng.Float64()*0.4 - 0.2), nil
}

// Close is a no-op
func (s *Simulator) Close() error { return nil }
