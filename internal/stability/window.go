// Package stability decides whether a run of flow readings has settled.
package stability

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindowSize is the number of recent samples used for stability checks
const DefaultWindowSize = 5

// Window holds the most recent samples, oldest first
type Window struct {
	size    int
	samples []float64
}

// NewWindow creates a window that retains at most size samples
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{size: size, samples: make([]float64, 0, size)}
}

// Add appends a sample, evicting the oldest when the window is full
func (w *Window) Add(v float64) {
	if len(w.samples) == w.size {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.size-1]
	}
	w.samples = append(w.samples, v)
}

// Len returns the number of samples held
func (w *Window) Len() int { return len(w.samples) }

// Full reports whether the window holds size samples
func (w *Window) Full() bool { return len(w.samples) == w.size }

// Samples returns a copy of the held samples
func (w *Window) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Reset drops all samples
func (w *Window) Reset() { w.samples = w.samples[:0] }

// MeanOfLast returns the mean of the last n samples, or of all samples when
// fewer are held. An empty window yields 0.
func (w *Window) MeanOfLast(n int) float64 {
	return MeanOfLast(w.samples, n)
}

// StableWithin reports whether the window is full and every sample lies
// strictly within tolerance of the window mean.
func (w *Window) StableWithin(tolerance float64) bool {
	if !w.Full() {
		return false
	}
	return MaxDeviation(w.samples) < tolerance
}

// MeanOfLast returns the mean of the trailing n values of xs
func MeanOfLast(xs []float64, n int) float64 {
	if len(xs) == 0 || n <= 0 {
		return 0
	}
	if n > len(xs) {
		n = len(xs)
	}
	return stat.Mean(xs[len(xs)-n:], nil)
}

// MaxDeviation returns the largest absolute distance of a value from the mean
func MaxDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	return math.Max(math.Abs(floats.Max(xs)-mean), math.Abs(floats.Min(xs)-mean))
}

// MaxRelativeDeviation returns MaxDeviation as a percentage of the mean.
// A zero mean has no meaningful relative spread and yields +Inf.
func MaxRelativeDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	if mean == 0 {
		return math.Inf(1)
	}
	return MaxDeviation(xs) / math.Abs(mean) * 100
}

// RelativelyStable applies the manual-control check: at least window
// readings, and the last window of them deviate from their mean by less than
// percent of it.
func RelativelyStable(history []float64, window int, percent float64) bool {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if len(history) < window {
		return false
	}
	return MaxRelativeDeviation(history[len(history)-window:]) < percent
}
