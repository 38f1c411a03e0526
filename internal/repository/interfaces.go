package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/flowrig/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a sweep does not exist
var ErrNotFound = errors.New("sweep not found")

// SweepRepository defines the interface for sweep data operations
type SweepRepository interface {
	Create(ctx context.Context, sweep *models.Sweep) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error)
	List(ctx context.Context, limit int) ([]*models.Sweep, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, state models.SweepState, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	AddDataPoint(ctx context.Context, id uuid.UUID, point models.DataPoint) error
	GetDataPoints(ctx context.Context, id uuid.UUID) ([]models.DataPoint, error)
}
