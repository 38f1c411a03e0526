package rig

import "context"

// Session is the exclusive handle a sweep drives the device through. It
// keeps the rig's status mirror current as the sweep runs. Once released,
// its methods fail with ErrSessionReleased.
type Session struct {
	rig      *Rig
	released bool
}

// PumpRunning reports whether the pump is believed to be running
func (s *Session) PumpRunning(ctx context.Context) (bool, error) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return false, ErrSessionReleased
	}
	return s.rig.status.PumpRunning, nil
}

// StartPump starts the pump
func (s *Session) StartPump(ctx context.Context) error {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return ErrSessionReleased
	}
	return s.rig.startLocked(ctx)
}

// StopPump stops the pump
func (s *Session) StopPump(ctx context.Context) error {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return ErrSessionReleased
	}
	return s.rig.stopLocked(ctx)
}

// SetFrequency commands the pump to hz
func (s *Session) SetFrequency(ctx context.Context, hz float64) error {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return ErrSessionReleased
	}
	return s.rig.setFrequencyLocked(ctx, hz)
}

// ReadFlow takes one reading
func (s *Session) ReadFlow(ctx context.Context) (float64, error) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return 0, ErrSessionReleased
	}
	flow, err := s.rig.dev.ReadFlow(ctx)
	if err != nil {
		s.rig.recordError(err)
		return 0, err
	}
	s.rig.recordReading(flow)
	return flow, nil
}

// SetStable publishes the sweep's own stability verdict to the status
// mirror. It does nothing after Release.
func (s *Session) SetStable(stable bool) {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return
	}
	s.rig.status.FlowRateStable = stable
}

// Release returns the rig to manual control. It is safe to call twice.
func (s *Session) Release() {
	s.rig.mu.Lock()
	defer s.rig.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.rig.claimed = false
}
