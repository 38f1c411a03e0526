package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/internal/export"
	"github.com/RMahshie/flowrig/internal/storage"
	"github.com/RMahshie/flowrig/pkg/models"
)

// SweepController runs sweeps and holds the collected data
type SweepController interface {
	Start(cfg models.SweepConfig) (*models.Sweep, error)
	Stop() error
	Reset() error
	Progress() models.SweepProgress
	Data() []models.DataPoint
	ClearData()
}

// ScanHandler handles sweep control, data and export requests
type ScanHandler struct {
	sweeps    SweepController
	s3Service storage.S3Service
	now       func() time.Time
}

// NewScanHandler creates a new scan handler. s3Service may be nil, which
// disables export uploads.
func NewScanHandler(sweeps SweepController, s3Service storage.S3Service) *ScanHandler {
	return &ScanHandler{sweeps: sweeps, s3Service: s3Service, now: time.Now}
}

// StartScan validates the range and starts a background sweep
func (h *ScanHandler) StartScan(ctx context.Context, req *models.StartScanRequest) (*models.StartScanResponse, error) {
	cfg := req.Body.Config()
	log.Info().
		Float64("minFrequency", cfg.MinFrequency).
		Float64("maxFrequency", cfg.MaxFrequency).
		Float64("step", cfg.Step).
		Msg("Sweep start request received")

	sweep, err := h.sweeps.Start(cfg)
	if err != nil {
		return nil, statusError("Failed to start sweep", err)
	}

	return &models.StartScanResponse{
		Body: models.StartScanResponseBody{
			Success:    true,
			SweepID:    sweep.ID,
			TotalSteps: cfg.StepCount(),
		},
	}, nil
}

// StopScan asks the running sweep to stop after its current step
func (h *ScanHandler) StopScan(ctx context.Context, _ *struct{}) (*models.SuccessResponse, error) {
	if err := h.sweeps.Stop(); err != nil {
		return nil, statusError("Failed to stop sweep", err)
	}
	log.Info().Msg("Sweep stop requested")
	return models.NewSuccessResponse(), nil
}

// ResetScan returns a finished sweep to idle
func (h *ScanHandler) ResetScan(ctx context.Context, _ *struct{}) (*models.SuccessResponse, error) {
	if err := h.sweeps.Reset(); err != nil {
		return nil, statusError("Failed to reset sweep", err)
	}
	return models.NewSuccessResponse(), nil
}

// GetProgress returns the sweep progress
func (h *ScanHandler) GetProgress(ctx context.Context, _ *struct{}) (*models.ScanProgressResponse, error) {
	return &models.ScanProgressResponse{Body: h.sweeps.Progress()}, nil
}

// GetData returns the collected data points sorted by frequency
func (h *ScanHandler) GetData(ctx context.Context, _ *struct{}) (*models.ScanDataResponse, error) {
	return &models.ScanDataResponse{Body: h.sweeps.Data()}, nil
}

// ClearData drops the collected data points
func (h *ScanHandler) ClearData(ctx context.Context, _ *struct{}) (*models.SuccessResponse, error) {
	h.sweeps.ClearData()
	log.Info().Msg("Sweep data cleared")
	return models.NewSuccessResponse(), nil
}

// ExportCSV returns the collected data as a CSV download
func (h *ScanHandler) ExportCSV(ctx context.Context, _ *struct{}) (*models.ExportCSVResponse, error) {
	points := h.sweeps.Data()
	if len(points) == 0 {
		return nil, huma.Error400BadRequest("No data to export")
	}

	body, err := export.CSV(points)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode CSV", err)
	}

	return &models.ExportCSVResponse{
		ContentType:        export.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", export.FileName(h.now())),
		Body:               body,
	}, nil
}

// UploadExport stores the CSV in object storage and returns a download link
func (h *ScanHandler) UploadExport(ctx context.Context, _ *struct{}) (*models.UploadExportResponse, error) {
	if h.s3Service == nil {
		return nil, huma.Error503ServiceUnavailable("Export storage is not configured")
	}

	points := h.sweeps.Data()
	if len(points) == 0 {
		return nil, huma.Error400BadRequest("No data to export")
	}

	body, err := export.CSV(points)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode CSV", err)
	}

	id := uuid.New()
	key := exportKey(id)
	log.Info().Str("key", key).Int("points", len(points)).Msg("Uploading sweep export")
	if err := h.s3Service.UploadFile(ctx, key, export.ContentType, body); err != nil {
		return nil, huma.Error500InternalServerError("Failed to upload export", err)
	}

	url, err := h.s3Service.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
	}

	return &models.UploadExportResponse{
		Body: models.UploadExportResponseBody{
			ID:          id.String(),
			Key:         key,
			DownloadURL: url,
			ExpiresIn:   int(storage.DownloadURLExpiry.Seconds()),
			Points:      len(points),
		},
	}, nil
}

// DownloadExport streams an uploaded export back through the API
func (h *ScanHandler) DownloadExport(ctx context.Context, req *models.ExportRequest) (*models.ExportCSVResponse, error) {
	id, err := h.exportID(req.ID)
	if err != nil {
		return nil, err
	}

	body, err := h.s3Service.DownloadFile(ctx, exportKey(id))
	if err != nil {
		return nil, statusError("Failed to download export", err)
	}

	return &models.ExportCSVResponse{
		ContentType:        export.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", "flow_data_"+id.String()+".csv"),
		Body:               body,
	}, nil
}

// ExportLink signs a new download URL for an uploaded export
func (h *ScanHandler) ExportLink(ctx context.Context, req *models.ExportRequest) (*models.ExportLinkResponse, error) {
	id, err := h.exportID(req.ID)
	if err != nil {
		return nil, err
	}

	key := exportKey(id)
	url, err := h.s3Service.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
	}

	return &models.ExportLinkResponse{
		Body: models.ExportLinkResponseBody{
			ID:          id.String(),
			Key:         key,
			DownloadURL: url,
			ExpiresIn:   int(storage.DownloadURLExpiry.Seconds()),
		},
	}, nil
}

// DeleteExport removes an uploaded export
func (h *ScanHandler) DeleteExport(ctx context.Context, req *models.ExportRequest) (*models.SuccessResponse, error) {
	id, err := h.exportID(req.ID)
	if err != nil {
		return nil, err
	}

	if err := h.s3Service.DeleteFile(ctx, exportKey(id)); err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete export", err)
	}
	log.Info().Str("export_id", id.String()).Msg("Export deleted")
	return models.NewSuccessResponse(), nil
}

// exportID checks that storage is configured and parses an export ID
func (h *ScanHandler) exportID(raw string) (uuid.UUID, error) {
	if h.s3Service == nil {
		return uuid.Nil, huma.Error503ServiceUnavailable("Export storage is not configured")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("Invalid export ID")
	}
	return id, nil
}

func exportKey(id uuid.UUID) string {
	return "exports/" + id.String() + ".csv"
}
