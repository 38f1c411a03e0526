package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/flowrig/internal/device"
	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/internal/rig"
	"github.com/RMahshie/flowrig/internal/storage"
	"github.com/RMahshie/flowrig/internal/sweep"
	"github.com/RMahshie/flowrig/pkg/models"
)

// statusError maps domain errors onto HTTP status errors
func statusError(msg string, err error) error {
	var verr *models.ValidationError
	var derr *device.DeviceError

	switch {
	case errors.As(err, &verr):
		return huma.Error400BadRequest(verr.Error(), &huma.ErrorDetail{
			Location: "body." + verr.Field,
			Message:  verr.Reason,
		})
	case errors.Is(err, rig.ErrBusy):
		return huma.Error409Conflict("A sweep is in progress", err)
	case errors.Is(err, sweep.ErrSweepInProgress),
		errors.Is(err, sweep.ErrResetRequired):
		return huma.Error409Conflict(err.Error(), err)
	case errors.Is(err, sweep.ErrNotRunning),
		errors.Is(err, rig.ErrPumpNotConnected),
		errors.Is(err, rig.ErrMeterNotConnected),
		errors.Is(err, rig.ErrPumpNotRunning):
		return huma.Error400BadRequest(err.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return huma.Error404NotFound("Sweep not found", err)
	case errors.Is(err, storage.ErrNotFound):
		return huma.Error404NotFound("Export not found", err)
	case errors.As(err, &derr):
		return huma.Error500InternalServerError(msg+": "+derr.Error(), err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
