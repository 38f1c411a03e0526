package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/pkg/models"
)

// SweepHandler serves the sweep history
type SweepHandler struct {
	repo repository.SweepRepository
}

// NewSweepHandler creates a new sweep history handler
func NewSweepHandler(repo repository.SweepRepository) *SweepHandler {
	return &SweepHandler{repo: repo}
}

// ListSweeps returns the most recent sweeps
func (h *SweepHandler) ListSweeps(ctx context.Context, req *models.ListSweepsRequest) (*models.ListSweepsResponse, error) {
	sweeps, err := h.repo.List(ctx, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sweeps", err)
	}
	return &models.ListSweepsResponse{Body: sweeps}, nil
}

// GetSweep returns a sweep record and its data points
func (h *SweepHandler) GetSweep(ctx context.Context, req *models.GetSweepRequest) (*models.GetSweepResponse, error) {
	sweepID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid sweep ID", err)
	}

	sweep, err := h.repo.GetByID(ctx, sweepID)
	if err != nil {
		return nil, statusError("Failed to get sweep", err)
	}

	points, err := h.repo.GetDataPoints(ctx, sweepID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get data points", err)
	}

	return &models.GetSweepResponse{
		Body: models.GetSweepResponseBody{
			Sweep:      sweep,
			DataPoints: points,
		},
	}, nil
}
