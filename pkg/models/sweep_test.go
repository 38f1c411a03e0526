package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    SweepConfig
		wantField string
	}{
		{name: "valid range", config: SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: 5}},
		{name: "min equals max", config: SweepConfig{MinFrequency: 20, MaxFrequency: 20, Step: 5}, wantField: "minFrequency"},
		{name: "min above max", config: SweepConfig{MinFrequency: 30, MaxFrequency: 20, Step: 5}, wantField: "minFrequency"},
		{name: "zero step", config: SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: 0}, wantField: "step"},
		{name: "negative step", config: SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: -1}, wantField: "step"},
		{name: "non-positive min", config: SweepConfig{MinFrequency: 0, MaxFrequency: 20, Step: 1}, wantField: "minFrequency"},
		{name: "NaN step", config: SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: math.NaN()}, wantField: "config"},
		{name: "infinite max", config: SweepConfig{MinFrequency: 10, MaxFrequency: math.Inf(1), Step: 1}, wantField: "config"},
		{name: "span overflows", config: SweepConfig{MinFrequency: 1, MaxFrequency: 1e300, Step: 1e-300}, wantField: "step"},
		{name: "too many steps", config: SweepConfig{MinFrequency: 1, MaxFrequency: 1e9, Step: 1e-9}, wantField: "step"},
		{name: "exactly the step cap", config: SweepConfig{MinFrequency: 1, MaxFrequency: MaxSweepSteps, Step: 1}},
		{name: "one past the step cap", config: SweepConfig{MinFrequency: 1, MaxFrequency: MaxSweepSteps + 1, Step: 1}, wantField: "step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestSweepConfigFrequencies(t *testing.T) {
	t.Run("example range", func(t *testing.T) {
		cfg := SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: 5}
		assert.Equal(t, []float64{10, 15, 20}, cfg.Frequencies())
		assert.Equal(t, 3, cfg.StepCount())
	})

	t.Run("max not on a step boundary", func(t *testing.T) {
		cfg := SweepConfig{MinFrequency: 10, MaxFrequency: 22, Step: 5}
		assert.Equal(t, []float64{10, 15, 20}, cfg.Frequencies())
	})

	t.Run("fractional step does not drift", func(t *testing.T) {
		cfg := SweepConfig{MinFrequency: 1, MaxFrequency: 2, Step: 0.1}
		freqs := cfg.Frequencies()
		require.Len(t, freqs, 11)
		assert.Equal(t, 1.3, freqs[3])
		assert.Equal(t, 2.0, freqs[10])
		for i := 1; i < len(freqs); i++ {
			assert.Greater(t, freqs[i], freqs[i-1])
		}
	})

	t.Run("count matches formula", func(t *testing.T) {
		for _, cfg := range []SweepConfig{
			{MinFrequency: 10, MaxFrequency: 50, Step: 5},
			{MinFrequency: 0.5, MaxFrequency: 3.7, Step: 0.3},
			{MinFrequency: 12, MaxFrequency: 13, Step: 7},
		} {
			assert.Len(t, cfg.Frequencies(), cfg.StepCount())
		}
		assert.Equal(t, 9, SweepConfig{MinFrequency: 10, MaxFrequency: 50, Step: 5}.StepCount())
		assert.Equal(t, 1, SweepConfig{MinFrequency: 12, MaxFrequency: 13, Step: 7}.StepCount())
	})
}

func TestStepCountOfInvalidConfig(t *testing.T) {
	for _, cfg := range []SweepConfig{
		{MinFrequency: 1, MaxFrequency: 1e300, Step: 1e-300},
		{MinFrequency: 1, MaxFrequency: 1e9, Step: 1e-9},
		{MinFrequency: 20, MaxFrequency: 10, Step: 1},
	} {
		assert.Zero(t, cfg.StepCount())
		assert.Empty(t, cfg.Frequencies())
	}
	assert.Len(t, SweepConfig{MinFrequency: 1, MaxFrequency: MaxSweepSteps, Step: 1}.Frequencies(), MaxSweepSteps)
}

func TestSweepStateTerminal(t *testing.T) {
	assert.False(t, SweepIdle.Terminal())
	assert.False(t, SweepRunning.Terminal())
	assert.True(t, SweepCompleted.Terminal())
	assert.True(t, SweepError.Terminal())
}
