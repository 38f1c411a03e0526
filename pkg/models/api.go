package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// SuccessBody is returned by command endpoints
type SuccessBody struct {
	Success bool `json:"success" doc:"Command accepted"`
}

// SuccessResponse wraps SuccessBody
type SuccessResponse struct {
	Body SuccessBody
}

// NewSuccessResponse builds a successful command response
func NewSuccessResponse() *SuccessResponse {
	return &SuccessResponse{Body: SuccessBody{Success: true}}
}

// GetStatusResponse represents the current system status
type GetStatusResponse struct {
	Body SystemStatus
}

// ConnectResponse represents the result of connecting the devices
type ConnectResponse struct {
	Body ConnectResult
}

// SetFrequencyBody is the body of a manual frequency command
type SetFrequencyBody struct {
	Frequency float64 `json:"frequency" exclusiveMinimum:"0" required:"true" doc:"Pump frequency in Hz"`
}

// SetFrequencyRequest represents a request to set the pump frequency
type SetFrequencyRequest struct {
	Body SetFrequencyBody
}

// ReadFlowResponse represents a single flow meter reading
type ReadFlowResponse struct {
	Body float64 `doc:"Flow rate in L/min"`
}

// FlowStableResponse reports manual stability of recent readings
type FlowStableResponse struct {
	Body bool `doc:"Recent readings are within tolerance"`
}

// StartScanBody is the body of a sweep start request
type StartScanBody struct {
	MinFrequency float64 `json:"minFrequency,omitempty" default:"10" doc:"First frequency in Hz"`
	MaxFrequency float64 `json:"maxFrequency,omitempty" default:"50" doc:"Last frequency in Hz (inclusive)"`
	Step         float64 `json:"step,omitempty" default:"5" doc:"Frequency increment in Hz"`
}

// Config converts the body to a SweepConfig
func (b StartScanBody) Config() SweepConfig {
	return SweepConfig{MinFrequency: b.MinFrequency, MaxFrequency: b.MaxFrequency, Step: b.Step}
}

// StartScanRequest represents a request to start a sweep
type StartScanRequest struct {
	Body StartScanBody
}

// StartScanResponseBody is the body of the start sweep response
type StartScanResponseBody struct {
	Success    bool   `json:"success" doc:"Sweep started"`
	SweepID    string `json:"sweepId" doc:"Sweep unique identifier"`
	TotalSteps int    `json:"totalSteps" doc:"Number of frequencies that will be measured"`
}

// StartScanResponse represents the response from starting a sweep
type StartScanResponse struct {
	Body StartScanResponseBody
}

// ScanProgressResponse represents the sweep progress
type ScanProgressResponse struct {
	Body SweepProgress
}

// ScanDataResponse represents the collected data points
type ScanDataResponse struct {
	Body []DataPoint
}

// ExportCSVResponse carries a CSV download
type ExportCSVResponse struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// UploadExportResponseBody is the body of the export upload response
type UploadExportResponseBody struct {
	ID          string `json:"id" doc:"Export identifier"`
	Key         string `json:"key" doc:"Object key of the uploaded CSV"`
	DownloadURL string `json:"downloadUrl" doc:"Pre-signed download URL"`
	ExpiresIn   int    `json:"expiresIn" doc:"URL expiration time in seconds"`
	Points      int    `json:"points" doc:"Number of data points exported"`
}

// UploadExportResponse represents the response from uploading an export
type UploadExportResponse struct {
	Body UploadExportResponseBody
}

// ExportRequest addresses an uploaded export
type ExportRequest struct {
	ID string `path:"id" doc:"Export ID"`
}

// ExportLinkResponseBody is a freshly signed link to an uploaded export
type ExportLinkResponseBody struct {
	ID          string `json:"id" doc:"Export identifier"`
	Key         string `json:"key" doc:"Object key of the uploaded CSV"`
	DownloadURL string `json:"downloadUrl" doc:"Pre-signed download URL"`
	ExpiresIn   int    `json:"expiresIn" doc:"URL expiration time in seconds"`
}

// ExportLinkResponse represents the response from re-signing an export
type ExportLinkResponse struct {
	Body ExportLinkResponseBody
}

// ListSweepsRequest represents a request for recent sweeps
type ListSweepsRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Maximum number of sweeps"`
}

// ListSweepsResponse represents recent sweep records
type ListSweepsResponse struct {
	Body []*Sweep
}

// GetSweepRequest represents a request for a single sweep
type GetSweepRequest struct {
	ID string `path:"id" doc:"Sweep ID"`
}

// GetSweepResponseBody is the body of the sweep detail response
type GetSweepResponseBody struct {
	Sweep      *Sweep      `json:"sweep" doc:"Sweep record"`
	DataPoints []DataPoint `json:"dataPoints" doc:"Measurements sorted by frequency"`
}

// GetSweepResponse represents a sweep and its data points
type GetSweepResponse struct {
	Body GetSweepResponseBody
}
