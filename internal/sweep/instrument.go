package sweep

import (
	"context"

	"github.com/RMahshie/flowrig/internal/rig"
)

// Instrument is the pump and flow meter as seen by a running sweep
type Instrument interface {
	PumpRunning(ctx context.Context) (bool, error)
	StartPump(ctx context.Context) error
	StopPump(ctx context.Context) error
	SetFrequency(ctx context.Context, hz float64) error
	ReadFlow(ctx context.Context) (float64, error)
}

// Session is an Instrument held exclusively for one sweep
type Session interface {
	Instrument
	SetStable(stable bool)
	Release()
}

// Claimer hands out exclusive sessions
type Claimer interface {
	Claim() (Session, error)
}

// ClaimFunc adapts a function to Claimer
type ClaimFunc func() (Session, error)

func (f ClaimFunc) Claim() (Session, error) { return f() }

// FromRig claims sessions from a rig
func FromRig(r *rig.Rig) Claimer {
	return ClaimFunc(func() (Session, error) {
		s, err := r.Claim()
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
