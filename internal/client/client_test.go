package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/flowrig/internal/api"
	"github.com/RMahshie/flowrig/internal/device"
	"github.com/RMahshie/flowrig/internal/repository/sqlstore"
	"github.com/RMahshie/flowrig/internal/rig"
	"github.com/RMahshie/flowrig/internal/sweep"
	"github.com/RMahshie/flowrig/pkg/models"
)

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":  "Conflict",
			"status": 409,
			"detail": "Failed to start sweep",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).StartScan(context.Background(), models.StartScanBody{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Conflict", apiErr.Title)
	assert.Equal(t, "409: Failed to start sweep", apiErr.Error())
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).StopPump(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "502: Bad Gateway", apiErr.Error())
}

func TestRequests(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotBody = nil
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()
	c := New(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, c.SetFrequency(ctx, 25))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/pump/frequency", gotPath)
	assert.Equal(t, map[string]any{"frequency": 25.0}, gotBody)

	_, err := c.ListSweeps(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "/api/sweeps", gotPath)
	assert.Equal(t, "limit=5", gotQuery)

	_, err = c.ListSweeps(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, gotQuery)

	require.NoError(t, c.ClearData(ctx))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/scan/data", gotPath)

	require.NoError(t, c.DeleteExport(ctx, "abc"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/scan/exports/abc", gotPath)

	_, _, err = c.DownloadExport(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/api/scan/exports/abc", gotPath)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "flow_data_2025-01-02.csv", fileName(`attachment; filename="flow_data_2025-01-02.csv"`))
	assert.Equal(t, "data.csv", fileName("attachment; filename=data.csv"))
	assert.Empty(t, fileName("attachment"))
}

func TestDefaults(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultServer, c.BaseURL())
	assert.Equal(t, DefaultServer+"/docs", c.DocsURL())
}

// TestAgainstServer runs a sweep through a real router backed by the simulator
func TestAgainstServer(t *testing.T) {
	db, dialect, err := sqlstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := sqlstore.NewSweepRepository(db, dialect)

	r := rig.New(device.NewSimulator(device.SimulatorConfig{Seed: 1}), rig.DefaultConfig())
	controller := sweep.NewController(sweep.FromRig(r), repo, sweep.Config{})

	router := chi.NewRouter()
	humaAPI := humachi.New(router, huma.DefaultConfig("Flow Rig API", "test"))
	api.RegisterRoutes(humaAPI, r, controller, repo, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	c := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = c.StartPump(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	connected, err := c.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, connected.PumpConnected)

	flow, err := c.ReadFlow(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, flow, 0.0)

	started, err := c.StartScan(ctx, models.StartScanBody{MinFrequency: 20, MaxFrequency: 30, Step: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, started.TotalSteps)

	var seen int
	final, err := c.WaitForSweep(ctx, 5*time.Millisecond, func(*models.SweepProgress) { seen++ })
	require.NoError(t, err)
	assert.Equal(t, models.SweepCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
	assert.Positive(t, seen)

	points, err := c.Data(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 20.0, points[0].Frequency)

	csv, name, err := c.ExportCSV(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(csv), "Frequency (Hz),Flow Rate (L/min)")
	assert.Regexp(t, `^flow_data_\d{4}-\d{2}-\d{2}\.csv$`, name)

	_, err = c.UploadExport(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	sweeps, err := c.ListSweeps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)

	detail, err := c.GetSweep(ctx, started.SweepID)
	require.NoError(t, err)
	assert.Equal(t, points, detail.DataPoints)

	require.NoError(t, c.ResetScan(ctx))
	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Scanning)
	assert.False(t, status.PumpRunning)
}
