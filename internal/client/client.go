// Package client talks to the flow rig HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/flowrig/pkg/models"
)

// DefaultServer is the API address used when none is configured
const DefaultServer = "http://localhost:8080"

// APIError is a non-2xx response decoded from the server's problem document
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// Client is a flow rig API client
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DocsURL returns the address of the interactive API documentation
func (c *Client) DocsURL() string {
	return c.baseURL + "/docs"
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and converts error responses into *APIError
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
			apiErr.Status = resp.StatusCode
		}
		return nil, apiErr
	}
	return resp, nil
}

// Health returns the server health report
func (c *Client) Health(ctx context.Context) (status, version string, err error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return "", "", err
	}
	return out.Status, out.Version, nil
}

// Status returns device and sweep status
func (c *Client) Status(ctx context.Context) (*models.SystemStatus, error) {
	var out models.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Connect connects the pump and flow meter
func (c *Client) Connect(ctx context.Context) (*models.ConnectResult, error) {
	var out models.ConnectResult
	if err := c.do(ctx, http.MethodPost, "/api/connect", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartPump starts the pump
func (c *Client) StartPump(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/pump/start", nil, nil)
}

// StopPump stops the pump
func (c *Client) StopPump(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/pump/stop", nil, nil)
}

// SetFrequency sets the frequency of the running pump
func (c *Client) SetFrequency(ctx context.Context, hz float64) error {
	return c.do(ctx, http.MethodPost, "/api/pump/frequency", models.SetFrequencyBody{Frequency: hz}, nil)
}

// ReadFlow takes a single flow reading in L/min
func (c *Client) ReadFlow(ctx context.Context) (float64, error) {
	var out float64
	if err := c.do(ctx, http.MethodGet, "/api/flowmeter/read", nil, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// FlowStable reports whether recent readings are stable
func (c *Client) FlowStable(ctx context.Context) (bool, error) {
	var out bool
	if err := c.do(ctx, http.MethodGet, "/api/flowmeter/stable", nil, &out); err != nil {
		return false, err
	}
	return out, nil
}

// StartScan starts a sweep. Zero fields take the server defaults.
func (c *Client) StartScan(ctx context.Context, cfg models.StartScanBody) (*models.StartScanResponseBody, error) {
	var out models.StartScanResponseBody
	if err := c.do(ctx, http.MethodPost, "/api/scan/start", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopScan asks the running sweep to stop after its current step
func (c *Client) StopScan(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/scan/stop", nil, nil)
}

// ResetScan returns a finished sweep to idle
func (c *Client) ResetScan(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/scan/reset", nil, nil)
}

// Progress returns the sweep progress
func (c *Client) Progress(ctx context.Context) (*models.SweepProgress, error) {
	var out models.SweepProgress
	if err := c.do(ctx, http.MethodGet, "/api/scan/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Data returns the collected data points sorted by frequency
func (c *Client) Data(ctx context.Context) ([]models.DataPoint, error) {
	var out []models.DataPoint
	if err := c.do(ctx, http.MethodGet, "/api/scan/data", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearData discards the collected data points
func (c *Client) ClearData(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/scan/data", nil, nil)
}

// ExportCSV downloads the collected data as CSV and returns it with the
// file name suggested by the server
func (c *Client) ExportCSV(ctx context.Context) ([]byte, string, error) {
	return c.download(ctx, "/api/scan/export")
}

// DownloadExport fetches a previously uploaded export
func (c *Client) DownloadExport(ctx context.Context, id string) ([]byte, string, error) {
	return c.download(ctx, "/api/scan/exports/"+url.PathEscape(id))
}

// ExportLink asks the server to sign a new download URL for an uploaded export
func (c *Client) ExportLink(ctx context.Context, id string) (*models.ExportLinkResponseBody, error) {
	var out models.ExportLinkResponseBody
	if err := c.do(ctx, http.MethodGet, "/api/scan/exports/"+url.PathEscape(id)+"/url", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteExport removes an uploaded export
func (c *Client) DeleteExport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/scan/exports/"+url.PathEscape(id), nil, nil)
}

func (c *Client) download(ctx context.Context, path string) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read export: %w", err)
	}
	return data, fileName(resp.Header.Get("Content-Disposition")), nil
}

// UploadExport stores the CSV in object storage on the server side
func (c *Client) UploadExport(ctx context.Context) (*models.UploadExportResponseBody, error) {
	var out models.UploadExportResponseBody
	if err := c.do(ctx, http.MethodPost, "/api/scan/export", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSweeps returns recent sweep records, newest first. limit <= 0 uses
// the server default.
func (c *Client) ListSweeps(ctx context.Context, limit int) ([]*models.Sweep, error) {
	path := "/api/sweeps"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out []*models.Sweep
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSweep returns a sweep record and its data points
func (c *Client) GetSweep(ctx context.Context, id string) (*models.GetSweepResponseBody, error) {
	var out models.GetSweepResponseBody
	if err := c.do(ctx, http.MethodGet, "/api/sweeps/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForSweep polls progress until the sweep leaves the running state.
// onProgress, if set, is called with every observed progress.
func (c *Client) WaitForSweep(ctx context.Context, interval time.Duration, onProgress func(*models.SweepProgress)) (*models.SweepProgress, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := c.Progress(ctx)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(p)
		}
		if p.State != models.SweepRunning {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return p, ctx.Err()
		case <-ticker.C:
		}
	}
}

func fileName(disposition string) string {
	_, after, ok := strings.Cut(disposition, "filename=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(after), `"`)
}
