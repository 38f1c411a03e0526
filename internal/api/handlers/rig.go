package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/pkg/models"
)

// RigService is the manual-control surface of the rig
type RigService interface {
	Connect(ctx context.Context) (models.ConnectResult, error)
	Status(ctx context.Context) models.SystemStatus
	StartPump(ctx context.Context) error
	StopPump(ctx context.Context) error
	SetFrequency(ctx context.Context, hz float64) error
	ReadFlow(ctx context.Context) (float64, error)
	FlowStable() (bool, error)
}

// ProgressSource reports sweep progress for the status endpoint
type ProgressSource interface {
	Progress() models.SweepProgress
}

// RigHandler handles device status and manual control requests
type RigHandler struct {
	rig    RigService
	sweeps ProgressSource
}

// NewRigHandler creates a new rig handler
func NewRigHandler(rig RigService, sweeps ProgressSource) *RigHandler {
	return &RigHandler{rig: rig, sweeps: sweeps}
}

// GetStatus returns the device status merged with sweep progress
func (h *RigHandler) GetStatus(ctx context.Context, _ *struct{}) (*models.GetStatusResponse, error) {
	status := h.rig.Status(ctx)
	progress := h.sweeps.Progress()
	if progress.State == models.SweepRunning {
		status.Scanning = true
	}
	status.ScanProgress = progress.Progress
	return &models.GetStatusResponse{Body: status}, nil
}

// Connect connects the pump and flow meter
func (h *RigHandler) Connect(ctx context.Context, _ *struct{}) (*models.ConnectResponse, error) {
	res, err := h.rig.Connect(ctx)
	if err != nil {
		return nil, statusError("Failed to connect devices", err)
	}
	return &models.ConnectResponse{Body: res}, nil
}

// StartPump starts the pump
func (h *RigHandler) StartPump(ctx context.Context, _ *struct{}) (*models.SuccessResponse, error) {
	if err := h.rig.StartPump(ctx); err != nil {
		return nil, statusError("Failed to start pump", err)
	}
	log.Info().Msg("Pump started")
	return models.NewSuccessResponse(), nil
}

// StopPump stops the pump
func (h *RigHandler) StopPump(ctx context.Context, _ *struct{}) (*models.SuccessResponse, error) {
	if err := h.rig.StopPump(ctx); err != nil {
		return nil, statusError("Failed to stop pump", err)
	}
	log.Info().Msg("Pump stopped")
	return models.NewSuccessResponse(), nil
}

// SetFrequency sets the pump frequency
func (h *RigHandler) SetFrequency(ctx context.Context, req *models.SetFrequencyRequest) (*models.SuccessResponse, error) {
	if req.Body.Frequency <= 0 {
		return nil, huma.Error400BadRequest("Frequency must be positive")
	}
	if err := h.rig.SetFrequency(ctx, req.Body.Frequency); err != nil {
		return nil, statusError("Failed to set frequency", err)
	}
	log.Info().Float64("frequency", req.Body.Frequency).Msg("Pump frequency set")
	return models.NewSuccessResponse(), nil
}

// ReadFlow takes a single flow reading
func (h *RigHandler) ReadFlow(ctx context.Context, _ *struct{}) (*models.ReadFlowResponse, error) {
	flow, err := h.rig.ReadFlow(ctx)
	if err != nil {
		return nil, statusError("Failed to read flow rate", err)
	}
	return &models.ReadFlowResponse{Body: flow}, nil
}

// FlowStable reports whether recent readings have settled
func (h *RigHandler) FlowStable(ctx context.Context, _ *struct{}) (*models.FlowStableResponse, error) {
	stable, err := h.rig.FlowStable()
	if err != nil {
		return nil, statusError("Failed to check flow stability", err)
	}
	return &models.FlowStableResponse{Body: stable}, nil
}
