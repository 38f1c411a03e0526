package models

import (
	"fmt"
	"math"
	"time"
)

// Default sweep range applied when a request omits a field
const (
	DefaultMinFrequency = 10.0
	DefaultMaxFrequency = 50.0
	DefaultStep         = 5.0
)

// MaxSweepSteps caps the number of frequencies a single sweep may visit
const MaxSweepSteps = 10000

// SweepState is the lifecycle state of the sweep controller
type SweepState string

const (
	SweepIdle      SweepState = "idle"
	SweepRunning   SweepState = "running"
	SweepCompleted SweepState = "completed"
	SweepError     SweepState = "error"
)

// Terminal reports whether the state needs an explicit reset before a new sweep
func (s SweepState) Terminal() bool {
	return s == SweepCompleted || s == SweepError
}

// SweepConfig describes the frequency range of a sweep
type SweepConfig struct {
	MinFrequency float64 `json:"minFrequency" doc:"First frequency in Hz"`
	MaxFrequency float64 `json:"maxFrequency" doc:"Last frequency in Hz (inclusive)"`
	Step         float64 `json:"step" doc:"Frequency increment in Hz"`
}

// ValidationError reports a sweep configuration that cannot be run
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the range invariants: min < max, step > 0, finite
// values and at most MaxSweepSteps frequencies
func (c SweepConfig) Validate() error {
	for _, v := range []float64{c.MinFrequency, c.MaxFrequency, c.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "config", Reason: "values must be finite numbers"}
		}
	}
	if c.MinFrequency <= 0 {
		return &ValidationError{Field: "minFrequency", Reason: "must be positive"}
	}
	if c.MinFrequency >= c.MaxFrequency {
		return &ValidationError{Field: "minFrequency", Reason: "must be less than maxFrequency"}
	}
	if c.Step <= 0 {
		return &ValidationError{Field: "step", Reason: "must be greater than 0"}
	}
	if span := c.span(); math.IsInf(span, 0) || span >= MaxSweepSteps {
		return &ValidationError{Field: "step", Reason: fmt.Sprintf("range needs more than %d steps", MaxSweepSteps)}
	}
	return nil
}

// span is (max-min)/step with a guard against floating point under-count
func (c SweepConfig) span() float64 {
	return (c.MaxFrequency-c.MinFrequency)/c.Step + 1e-9
}

// StepCount returns floor((max-min)/step)+1, the number of points a sweep
// emits. Configs that fail Validate yield 0.
func (c SweepConfig) StepCount() int {
	if c.Validate() != nil {
		return 0
	}
	return int(math.Floor(c.span())) + 1
}

// Frequencies lists the frequencies visited by the sweep, rounded to one decimal
func (c SweepConfig) Frequencies() []float64 {
	n := c.StepCount()
	freqs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		freqs = append(freqs, RoundFrequency(c.MinFrequency+float64(i)*c.Step))
	}
	return freqs
}

// RoundFrequency rounds a frequency to one decimal place
func RoundFrequency(f float64) float64 {
	return math.Round(f*10) / 10
}

// Sweep is the persisted record of one sweep run
type Sweep struct {
	ID           string     `json:"id" doc:"Sweep unique identifier"`
	MinFrequency float64    `json:"minFrequency" doc:"First frequency in Hz"`
	MaxFrequency float64    `json:"maxFrequency" doc:"Last frequency in Hz"`
	Step         float64    `json:"step" doc:"Frequency increment in Hz"`
	State        SweepState `json:"state" enum:"idle,running,completed,error" doc:"Sweep state"`
	Progress     int        `json:"progress" minimum:"0" maximum:"100" doc:"Sweep progress percentage"`
	ErrorMsg     *string    `json:"errorMessage,omitempty" doc:"Failure reason"`
	CreatedAt    time.Time  `json:"createdAt" doc:"When the sweep was started"`
	UpdatedAt    time.Time  `json:"updatedAt" doc:"Last state change"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" doc:"When the sweep finished"`
}

// Config returns the range the sweep was started with
func (s *Sweep) Config() SweepConfig {
	return SweepConfig{MinFrequency: s.MinFrequency, MaxFrequency: s.MaxFrequency, Step: s.Step}
}

// SweepProgress is a snapshot of the controller for polling clients
type SweepProgress struct {
	SweepID        string       `json:"sweepId,omitempty" doc:"Current or last sweep ID"`
	State          SweepState   `json:"state" enum:"idle,running,completed,error" doc:"Controller state"`
	Progress       int          `json:"progress" minimum:"0" maximum:"100" doc:"Progress percentage"`
	CurrentStep    string       `json:"currentStep" doc:"Human-readable step description"`
	TotalSteps     int          `json:"totalSteps" doc:"Number of frequencies in the sweep"`
	CompletedSteps int          `json:"completedSteps" doc:"Frequencies measured so far"`
	LastDataPoint  *DataPoint   `json:"lastDataPoint,omitempty" doc:"Most recent measurement"`
	Config         *SweepConfig `json:"config,omitempty" doc:"Range of the current or last sweep"`
	StartedAt      *time.Time   `json:"startedAt,omitempty" doc:"When the sweep started"`
	FinishedAt     *time.Time   `json:"finishedAt,omitempty" doc:"When the sweep finished"`
	Error          string       `json:"error,omitempty" doc:"Failure reason"`
}
