package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/flowrig/internal/api/handlers"
	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/internal/storage"
)

// RegisterRoutes sets up all API routes. s3Service may be nil.
func RegisterRoutes(api huma.API, rigSvc handlers.RigService, sweeps handlers.SweepController, sweepRepo repository.SweepRepository, s3Service storage.S3Service) {
	// Initialize handlers
	rigHandler := handlers.NewRigHandler(rigSvc, sweeps)
	scanHandler := handlers.NewScanHandler(sweeps, s3Service)
	sweepHandler := handlers.NewSweepHandler(sweepRepo)

	// Device status and manual control
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get system status",
		Description: "Returns device connection, pump state, the latest reading and sweep progress",
		Tags:        []string{"Devices"},
	}, rigHandler.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "connect",
		Method:      http.MethodPost,
		Path:        "/api/connect",
		Summary:     "Connect devices",
		Description: "Connects the pump and flow meter",
		Tags:        []string{"Devices"},
	}, rigHandler.Connect)

	huma.Register(api, huma.Operation{
		OperationID: "startPump",
		Method:      http.MethodPost,
		Path:        "/api/pump/start",
		Summary:     "Start pump",
		Tags:        []string{"Devices"},
	}, rigHandler.StartPump)

	huma.Register(api, huma.Operation{
		OperationID: "stopPump",
		Method:      http.MethodPost,
		Path:        "/api/pump/stop",
		Summary:     "Stop pump",
		Tags:        []string{"Devices"},
	}, rigHandler.StopPump)

	huma.Register(api, huma.Operation{
		OperationID: "setFrequency",
		Method:      http.MethodPost,
		Path:        "/api/pump/frequency",
		Summary:     "Set pump frequency",
		Description: "Sets the frequency of a running pump",
		Tags:        []string{"Devices"},
	}, rigHandler.SetFrequency)

	huma.Register(api, huma.Operation{
		OperationID: "readFlow",
		Method:      http.MethodGet,
		Path:        "/api/flowmeter/read",
		Summary:     "Read flow rate",
		Description: "Takes a single flow meter reading in L/min",
		Tags:        []string{"Devices"},
	}, rigHandler.ReadFlow)

	huma.Register(api, huma.Operation{
		OperationID: "flowStable",
		Method:      http.MethodGet,
		Path:        "/api/flowmeter/stable",
		Summary:     "Check flow stability",
		Description: "Reports whether recent readings are within tolerance of their mean",
		Tags:        []string{"Devices"},
	}, rigHandler.FlowStable)

	// Sweep control
	huma.Register(api, huma.Operation{
		OperationID: "startScan",
		Method:      http.MethodPost,
		Path:        "/api/scan/start",
		Summary:     "Start frequency sweep",
		Description: "Starts a background sweep; poll /api/scan/progress for its state",
		Tags:        []string{"Scan"},
	}, scanHandler.StartScan)

	huma.Register(api, huma.Operation{
		OperationID: "stopScan",
		Method:      http.MethodPost,
		Path:        "/api/scan/stop",
		Summary:     "Stop frequency sweep",
		Description: "Stops the sweep after the current step",
		Tags:        []string{"Scan"},
	}, scanHandler.StopScan)

	huma.Register(api, huma.Operation{
		OperationID: "resetScan",
		Method:      http.MethodPost,
		Path:        "/api/scan/reset",
		Summary:     "Reset sweep",
		Description: "Returns a completed or failed sweep to idle",
		Tags:        []string{"Scan"},
	}, scanHandler.ResetScan)

	huma.Register(api, huma.Operation{
		OperationID: "getScanProgress",
		Method:      http.MethodGet,
		Path:        "/api/scan/progress",
		Summary:     "Get sweep progress",
		Tags:        []string{"Scan"},
	}, scanHandler.GetProgress)

	huma.Register(api, huma.Operation{
		OperationID: "getScanData",
		Method:      http.MethodGet,
		Path:        "/api/scan/data",
		Summary:     "Get collected data",
		Description: "Returns the collected data points sorted by frequency",
		Tags:        []string{"Scan"},
	}, scanHandler.GetData)

	huma.Register(api, huma.Operation{
		OperationID: "clearScanData",
		Method:      http.MethodDelete,
		Path:        "/api/scan/data",
		Summary:     "Clear collected data",
		Tags:        []string{"Scan"},
	}, scanHandler.ClearData)

	huma.Register(api, huma.Operation{
		OperationID: "exportScanCSV",
		Method:      http.MethodGet,
		Path:        "/api/scan/export",
		Summary:     "Download data as CSV",
		Tags:        []string{"Scan"},
	}, scanHandler.ExportCSV)

	huma.Register(api, huma.Operation{
		OperationID: "uploadScanExport",
		Method:      http.MethodPost,
		Path:        "/api/scan/export",
		Summary:     "Upload CSV export",
		Description: "Stores the CSV in object storage and returns a pre-signed download URL",
		Tags:        []string{"Scan"},
	}, scanHandler.UploadExport)

	huma.Register(api, huma.Operation{
		OperationID: "downloadScanExport",
		Method:      http.MethodGet,
		Path:        "/api/scan/exports/{id}",
		Summary:     "Download uploaded export",
		Description: "Returns a previously uploaded CSV from object storage",
		Tags:        []string{"Scan"},
	}, scanHandler.DownloadExport)

	huma.Register(api, huma.Operation{
		OperationID: "getScanExportLink",
		Method:      http.MethodGet,
		Path:        "/api/scan/exports/{id}/url",
		Summary:     "Re-sign export link",
		Description: "Returns a new pre-signed download URL for an uploaded export",
		Tags:        []string{"Scan"},
	}, scanHandler.ExportLink)

	huma.Register(api, huma.Operation{
		OperationID: "deleteScanExport",
		Method:      http.MethodDelete,
		Path:        "/api/scan/exports/{id}",
		Summary:     "Delete uploaded export",
		Tags:        []string{"Scan"},
	}, scanHandler.DeleteExport)

	// Sweep history
	huma.Register(api, huma.Operation{
		OperationID: "listSweeps",
		Method:      http.MethodGet,
		Path:        "/api/sweeps",
		Summary:     "List sweeps",
		Description: "Returns the most recent sweep records, newest first",
		Tags:        []string{"Sweeps"},
	}, sweepHandler.ListSweeps)

	huma.Register(api, huma.Operation{
		OperationID: "getSweep",
		Method:      http.MethodGet,
		Path:        "/api/sweeps/{id}",
		Summary:     "Get sweep",
		Description: "Returns a sweep record and its data points",
		Tags:        []string{"Sweeps"},
	}, sweepHandler.GetSweep)
}
