package sweep

import (
	"cmp"
	"slices"
	"sync"

	"github.com/RMahshie/flowrig/pkg/models"
)

// DataSet collects data points keyed by frequency, sorted ascending. A point
// at an already-present frequency replaces the stored one.
type DataSet struct {
	mu     sync.RWMutex
	points []models.DataPoint
}

// NewDataSet creates an empty data set
func NewDataSet() *DataSet {
	return &DataSet{}
}

func byFrequency(p models.DataPoint, f float64) int {
	return cmp.Compare(p.Frequency, f)
}

// Add inserts or replaces p
func (d *DataSet) Add(p models.DataPoint) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, found := slices.BinarySearchFunc(d.points, p.Frequency, byFrequency)
	if found {
		d.points[i] = p
		return
	}
	d.points = slices.Insert(d.points, i, p)
}

// Points returns a copy of the stored points
func (d *DataSet) Points() []models.DataPoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.DataPoint, len(d.points))
	copy(out, d.points)
	return out
}

// Len returns the number of stored points
func (d *DataSet) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.points)
}

// Clear removes every point
func (d *DataSet) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.points = nil
}
