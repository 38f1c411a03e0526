// Package sweep steps the pump through a frequency range and records the
// settled flow rate at each step.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/internal/stability"
	"github.com/RMahshie/flowrig/pkg/models"
)

var (
	ErrSweepInProgress = errors.New("a sweep is already running")
	ErrResetRequired   = errors.New("previous sweep finished, reset before starting another")
	ErrNotRunning      = errors.New("no sweep is running")
)

// Config holds the timing and stability parameters of a sweep
type Config struct {
	PollInterval   time.Duration // between flow readings
	SettleDelay    time.Duration // after each frequency change
	PumpStartDelay time.Duration // after starting an idle pump
	WindowSize     int           // readings compared for stability
	MaxAttempts    int           // readings per frequency before giving up
	AverageCount   int           // trailing readings averaged into the result
	Tolerance      float64       // max deviation from the window mean, L/min
}

// DefaultConfig returns the lab rig's sweep parameters
func DefaultConfig() Config {
	return Config{
		PollInterval:   500 * time.Millisecond,
		SettleDelay:    2 * time.Second,
		PumpStartDelay: time.Second,
		WindowSize:     stability.DefaultWindowSize,
		MaxAttempts:    20,
		AverageCount:   3,
		Tolerance:      0.3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.AverageCount <= 0 {
		c.AverageCount = def.AverageCount
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	return c
}

// Controller runs one sweep at a time and keeps the collected data
type Controller struct {
	claimer Claimer
	repo    repository.SweepRepository
	cfg     Config
	data    *DataSet
	logger  zerolog.Logger
	sleep   func(time.Duration)

	mu       sync.Mutex
	state    models.SweepState
	progress models.SweepProgress
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController creates an idle controller. repo may be nil to skip persistence.
func NewController(claimer Claimer, repo repository.SweepRepository, cfg Config) *Controller {
	return &Controller{
		claimer:  claimer,
		repo:     repo,
		cfg:      cfg.withDefaults(),
		data:     NewDataSet(),
		logger:   log.With().Str("component", "sweep").Logger(),
		sleep:    time.Sleep,
		state:    models.SweepIdle,
		progress: models.SweepProgress{State: models.SweepIdle},
	}
}

// run is one prepared sweep
type run struct {
	id      uuid.UUID
	freqs   []float64
	session Session
	ctx     context.Context
	done    chan struct{}
}

// Start validates cfg, claims the rig and runs the sweep in the background
func (c *Controller) Start(cfg models.SweepConfig) (*models.Sweep, error) {
	r, sweep, err := c.prepare(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := c.execute(r, nil); err != nil {
			c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Sweep failed")
		}
	}()
	return sweep, nil
}

// Run performs a sweep synchronously, calling emit once per frequency in
// ascending order. Cancelling ctx stops the sweep after the current step.
func (c *Controller) Run(ctx context.Context, cfg models.SweepConfig, emit func(models.DataPoint)) error {
	r, _, err := c.prepare(ctx, cfg)
	if err != nil {
		return err
	}
	return c.execute(r, emit)
}

// Stop asks the running sweep to finish after its current step
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.SweepRunning {
		return ErrNotRunning
	}
	c.cancel()
	c.progress.CurrentStep = "stopping after current step"
	return nil
}

// Wait blocks until the running sweep, if any, has finished or ctx is done
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns a completed or failed controller to idle
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == models.SweepRunning {
		return ErrSweepInProgress
	}
	c.state = models.SweepIdle
	c.progress = models.SweepProgress{State: models.SweepIdle}
	return nil
}

// State returns the controller state
func (c *Controller) State() models.SweepState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns a snapshot of the current or last sweep
func (c *Controller) Progress() models.SweepProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	if p.LastDataPoint != nil {
		dp := *p.LastDataPoint
		p.LastDataPoint = &dp
	}
	if p.Config != nil {
		cfg := *p.Config
		p.Config = &cfg
	}
	return p
}

// Data returns the collected points sorted by frequency
func (c *Controller) Data() []models.DataPoint {
	return c.data.Points()
}

// ClearData drops the collected points
func (c *Controller) ClearData() {
	c.data.Clear()
}

func (c *Controller) prepare(ctx context.Context, cfg models.SweepConfig) (*run, *models.Sweep, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	freqs := cfg.Frequencies()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == models.SweepRunning:
		return nil, nil, ErrSweepInProgress
	case c.state.Terminal():
		return nil, nil, ErrResetRequired
	}

	session, err := c.claimer.Claim()
	if err != nil {
		return nil, nil, fmt.Errorf("claim rig: %w", err)
	}

	now := time.Now()
	sweep := &models.Sweep{
		ID:           uuid.New().String(),
		MinFrequency: cfg.MinFrequency,
		MaxFrequency: cfg.MaxFrequency,
		Step:         cfg.Step,
		State:        models.SweepRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.repo != nil {
		if err := c.repo.Create(ctx, sweep); err != nil {
			session.Release()
			return nil, nil, fmt.Errorf("create sweep record: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:      uuid.MustParse(sweep.ID),
		freqs:   freqs,
		session: session,
		ctx:     runCtx,
		done:    make(chan struct{}),
	}

	c.state = models.SweepRunning
	c.cancel = cancel
	c.done = r.done
	c.progress = models.SweepProgress{
		SweepID:    sweep.ID,
		State:      models.SweepRunning,
		TotalSteps: len(freqs),
		Config:     &cfg,
		StartedAt:  &now,
	}

	c.logger.Info().
		Str("sweep_id", sweep.ID).
		Float64("min_hz", cfg.MinFrequency).
		Float64("max_hz", cfg.MaxFrequency).
		Float64("step_hz", cfg.Step).
		Int("steps", len(freqs)).
		Msg("Sweep started")
	return r, sweep, nil
}

func (c *Controller) execute(r *run, emit func(models.DataPoint)) error {
	defer close(r.done)

	// device calls finish even when a stop is requested mid-step
	dev := context.WithoutCancel(r.ctx)

	running, err := r.session.PumpRunning(dev)
	if err != nil {
		return c.fail(r, err)
	}
	if !running {
		c.setStep("starting pump")
		if err := r.session.StartPump(dev); err != nil {
			return c.fail(r, err)
		}
		c.pause(c.cfg.PumpStartDelay)
	}

	for i, freq := range r.freqs {
		if r.ctx.Err() != nil {
			return c.cancelled(r)
		}

		c.setStep(fmt.Sprintf("setting frequency: %.1f Hz", freq))
		if err := r.session.SetFrequency(dev, freq); err != nil {
			return c.fail(r, err)
		}
		c.pause(c.cfg.SettleDelay)

		c.setStep("waiting for flow to stabilize")
		flow, err := c.settle(dev, r, freq)
		if err != nil {
			return c.fail(r, err)
		}

		point := models.DataPoint{Frequency: freq, FlowRate: flow}
		c.record(r, point, i+1, len(r.freqs))
		if emit != nil {
			emit(point)
		}
	}
	if r.ctx.Err() != nil {
		return c.cancelled(r)
	}
	return c.complete(r)
}

// settle polls the meter until the window is stable or attempts run out,
// then averages the trailing readings
func (c *Controller) settle(ctx context.Context, r *run, freq float64) (float64, error) {
	window := stability.NewWindow(c.cfg.WindowSize)
	stable := false
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		flow, err := r.session.ReadFlow(ctx)
		if err != nil {
			return 0, err
		}
		window.Add(flow)
		stable = window.StableWithin(c.cfg.Tolerance)
		r.session.SetStable(stable)
		if stable {
			break
		}
		if attempt < c.cfg.MaxAttempts {
			c.pause(c.cfg.PollInterval)
		}
	}
	if !stable {
		c.logger.Warn().
			Str("sweep_id", r.id.String()).
			Float64("frequency", freq).
			Int("attempts", c.cfg.MaxAttempts).
			Float64("deviation", stability.MaxDeviation(window.Samples())).
			Msg("Flow did not stabilize, using last readings")
	}
	return window.MeanOfLast(c.cfg.AverageCount), nil
}

func (c *Controller) record(r *run, point models.DataPoint, done, total int) {
	c.data.Add(point)
	progress := int(math.Round(float64(done) / float64(total) * 100))

	c.mu.Lock()
	c.progress.CompletedSteps = done
	c.progress.Progress = progress
	c.progress.LastDataPoint = &point
	c.mu.Unlock()

	c.logger.Debug().Str("sweep_id", r.id.String()).Float64("frequency", point.Frequency).Float64("flow_rate", point.FlowRate).Msg("Data point recorded")

	if c.repo == nil {
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	if err := c.repo.AddDataPoint(ctx, r.id, point); err != nil {
		c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Failed to store data point")
	}
	if err := c.repo.UpdateStatus(ctx, r.id, models.SweepRunning, progress); err != nil {
		c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Failed to update sweep progress")
	}
}

func (c *Controller) complete(r *run) error {
	if err := r.session.StopPump(context.WithoutCancel(r.ctx)); err != nil {
		return c.fail(r, err)
	}
	c.finish(r, models.SweepCompleted, "sweep complete", nil)
	return nil
}

func (c *Controller) cancelled(r *run) error {
	if err := r.session.StopPump(context.WithoutCancel(r.ctx)); err != nil {
		c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Failed to stop pump after cancellation")
	}
	c.finish(r, models.SweepIdle, "sweep stopped", nil)
	return nil
}

// fail records err and makes a best-effort attempt to stop the pump; the
// error state does not depend on that stop succeeding
func (c *Controller) fail(r *run, err error) error {
	if stopErr := r.session.StopPump(context.WithoutCancel(r.ctx)); stopErr != nil {
		c.logger.Error().Err(stopErr).Str("sweep_id", r.id.String()).Msg("Failed to stop pump after sweep error")
	}
	c.finish(r, models.SweepError, "error: "+err.Error(), err)
	return err
}

func (c *Controller) finish(r *run, state models.SweepState, step string, cause error) {
	now := time.Now()
	r.session.Release()

	c.mu.Lock()
	c.state = state
	c.cancel()
	c.progress.State = state
	c.progress.CurrentStep = step
	c.progress.FinishedAt = &now
	if state == models.SweepCompleted {
		c.progress.Progress = 100
	}
	if cause != nil {
		c.progress.Error = cause.Error()
	}
	progress := c.progress.Progress
	c.mu.Unlock()

	event := c.logger.Info()
	if cause != nil {
		event = c.logger.Error().Err(cause)
	}
	event.Str("sweep_id", r.id.String()).Str("state", string(state)).Int("progress", progress).Msg("Sweep finished")

	if c.repo == nil {
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	if cause != nil {
		if err := c.repo.UpdateError(ctx, r.id, cause.Error()); err != nil {
			c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Failed to record sweep error")
		}
		return
	}
	// a cancelled sweep is stored as idle at the progress it reached
	if err := c.repo.UpdateStatus(ctx, r.id, state, progress); err != nil {
		c.logger.Error().Err(err).Str("sweep_id", r.id.String()).Msg("Failed to update sweep state")
	}
}

func (c *Controller) setStep(step string) {
	c.mu.Lock()
	c.progress.CurrentStep = step
	c.mu.Unlock()
}

func (c *Controller) pause(d time.Duration) {
	if d > 0 {
		c.sleep(d)
	}
}
