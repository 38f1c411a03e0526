package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/flowrig/internal/device"
	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/internal/rig"
	"github.com/RMahshie/flowrig/internal/storage"
	"github.com/RMahshie/flowrig/internal/sweep"
	"github.com/RMahshie/flowrig/pkg/models"
)

// MockRigService implements RigService for testing
type MockRigService struct {
	mock.Mock
}

func (m *MockRigService) Connect(ctx context.Context) (models.ConnectResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.ConnectResult), args.Error(1)
}

func (m *MockRigService) Status(ctx context.Context) models.SystemStatus {
	args := m.Called(ctx)
	return args.Get(0).(models.SystemStatus)
}

func (m *MockRigService) StartPump(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRigService) StopPump(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRigService) SetFrequency(ctx context.Context, hz float64) error {
	args := m.Called(ctx, hz)
	return args.Error(0)
}

func (m *MockRigService) ReadFlow(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockRigService) FlowStable() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

// MockSweepController implements SweepController for testing
type MockSweepController struct {
	mock.Mock
}

func (m *MockSweepController) Start(cfg models.SweepConfig) (*models.Sweep, error) {
	args := m.Called(cfg)
	sweep, _ := args.Get(0).(*models.Sweep)
	return sweep, args.Error(1)
}

func (m *MockSweepController) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSweepController) Reset() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSweepController) Progress() models.SweepProgress {
	args := m.Called()
	return args.Get(0).(models.SweepProgress)
}

func (m *MockSweepController) Data() []models.DataPoint {
	args := m.Called()
	return args.Get(0).([]models.DataPoint)
}

func (m *MockSweepController) ClearData() {
	m.Called()
}

// MockSweepRepository implements repository.SweepRepository for testing
type MockSweepRepository struct {
	mock.Mock
}

func (m *MockSweepRepository) Create(ctx context.Context, sweep *models.Sweep) error {
	args := m.Called(ctx, sweep)
	return args.Error(0)
}

func (m *MockSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error) {
	args := m.Called(ctx, id)
	sweep, _ := args.Get(0).(*models.Sweep)
	return sweep, args.Error(1)
}

func (m *MockSweepRepository) List(ctx context.Context, limit int) ([]*models.Sweep, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.Sweep), args.Error(1)
}

func (m *MockSweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, state models.SweepState, progress int) error {
	args := m.Called(ctx, id, state, progress)
	return args.Error(0)
}

func (m *MockSweepRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockSweepRepository) AddDataPoint(ctx context.Context, id uuid.UUID, point models.DataPoint) error {
	args := m.Called(ctx, id, point)
	return args.Error(0)
}

func (m *MockSweepRepository) GetDataPoints(ctx context.Context, id uuid.UUID) ([]models.DataPoint, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]models.DataPoint), args.Error(1)
}

// MockS3Service implements storage.S3Service for testing
type MockS3Service struct {
	mock.Mock
}

func (m *MockS3Service) UploadFile(ctx context.Context, key string, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockS3Service) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockS3Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockS3Service) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func assertStatus(t *testing.T, want int, err error) {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, want, se.GetStatus())
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &models.ValidationError{Field: "step", Reason: "must be greater than 0"}, 400},
		{"rig busy", rig.ErrBusy, 409},
		{"sweep running", sweep.ErrSweepInProgress, 409},
		{"reset required", sweep.ErrResetRequired, 409},
		{"no sweep", sweep.ErrNotRunning, 400},
		{"pump not connected", rig.ErrPumpNotConnected, 400},
		{"wrapped meter not connected", errors.Join(errors.New("claim rig"), rig.ErrMeterNotConnected), 400},
		{"pump not running", rig.ErrPumpNotRunning, 400},
		{"not found", repository.ErrNotFound, 404},
		{"device failure", &device.DeviceError{Op: "start pump", Err: errors.New("ERROR:FAULT")}, 500},
		{"unknown", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStatus(t, tt.want, statusError("failed", tt.err))
		})
	}
}

func TestGetStatusMergesSweepProgress(t *testing.T) {
	mockRig := &MockRigService{}
	mockSweeps := &MockSweepController{}
	handler := NewRigHandler(mockRig, mockSweeps)

	freq := 25.0
	mockRig.On("Status", mock.Anything).Return(models.SystemStatus{
		PumpConnected:      true,
		FlowMeterConnected: true,
		PumpRunning:        true,
		CurrentFrequency:   &freq,
	})
	mockSweeps.On("Progress").Return(models.SweepProgress{State: models.SweepRunning, Progress: 40})

	resp, err := handler.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, resp.Body.Scanning)
	assert.Equal(t, 40, resp.Body.ScanProgress)
	assert.Equal(t, 25.0, *resp.Body.CurrentFrequency)

	mockRig.AssertExpectations(t)
	mockSweeps.AssertExpectations(t)
}

func TestManualCommands(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(*MockRigService)
		call      func(*RigHandler) error
		wantCode  int
	}{
		{
			name:      "start pump",
			mockSetup: func(m *MockRigService) { m.On("StartPump", mock.Anything).Return(nil) },
			call: func(h *RigHandler) error {
				_, err := h.StartPump(context.Background(), nil)
				return err
			},
		},
		{
			name:      "start pump during sweep",
			mockSetup: func(m *MockRigService) { m.On("StartPump", mock.Anything).Return(rig.ErrBusy) },
			call: func(h *RigHandler) error {
				_, err := h.StartPump(context.Background(), nil)
				return err
			},
			wantCode: 409,
		},
		{
			name:      "stop pump when disconnected",
			mockSetup: func(m *MockRigService) { m.On("StopPump", mock.Anything).Return(rig.ErrPumpNotConnected) },
			call: func(h *RigHandler) error {
				_, err := h.StopPump(context.Background(), nil)
				return err
			},
			wantCode: 400,
		},
		{
			name:      "set frequency",
			mockSetup: func(m *MockRigService) { m.On("SetFrequency", mock.Anything, 30.0).Return(nil) },
			call: func(h *RigHandler) error {
				_, err := h.SetFrequency(context.Background(), &models.SetFrequencyRequest{Body: models.SetFrequencyBody{Frequency: 30}})
				return err
			},
		},
		{
			name:      "set frequency on stopped pump",
			mockSetup: func(m *MockRigService) { m.On("SetFrequency", mock.Anything, 30.0).Return(rig.ErrPumpNotRunning) },
			call: func(h *RigHandler) error {
				_, err := h.SetFrequency(context.Background(), &models.SetFrequencyRequest{Body: models.SetFrequencyBody{Frequency: 30}})
				return err
			},
			wantCode: 400,
		},
		{
			name:      "set non-positive frequency",
			mockSetup: func(m *MockRigService) {},
			call: func(h *RigHandler) error {
				_, err := h.SetFrequency(context.Background(), &models.SetFrequencyRequest{Body: models.SetFrequencyBody{Frequency: 0}})
				return err
			},
			wantCode: 400,
		},
		{
			name: "read flow device failure",
			mockSetup: func(m *MockRigService) {
				m.On("ReadFlow", mock.Anything).Return(0.0, &device.DeviceError{Op: "read flow", Err: errors.New("no response")})
			},
			call: func(h *RigHandler) error {
				_, err := h.ReadFlow(context.Background(), nil)
				return err
			},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRig := &MockRigService{}
			tt.mockSetup(mockRig)
			handler := NewRigHandler(mockRig, &MockSweepController{})

			err := tt.call(handler)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
			} else {
				assertStatus(t, tt.wantCode, err)
			}
			mockRig.AssertExpectations(t)
		})
	}
}

func TestStartScan(t *testing.T) {
	tests := []struct {
		name      string
		body      models.StartScanBody
		mockSetup func(*MockSweepController)
		wantCode  int
	}{
		{
			name: "starts sweep",
			body: models.StartScanBody{MinFrequency: 10, MaxFrequency: 20, Step: 5},
			mockSetup: func(m *MockSweepController) {
				m.On("Start", models.SweepConfig{MinFrequency: 10, MaxFrequency: 20, Step: 5}).
					Return(&models.Sweep{ID: "7f9c0d52-3f3e-4c55-9b8e-1d2f6f0b1a11"}, nil)
			},
		},
		{
			name: "invalid range",
			body: models.StartScanBody{MinFrequency: 30, MaxFrequency: 20, Step: 5},
			mockSetup: func(m *MockSweepController) {
				m.On("Start", mock.Anything).Return(nil, &models.ValidationError{Field: "minFrequency", Reason: "must be less than maxFrequency"})
			},
			wantCode: 400,
		},
		{
			name: "already running",
			body: models.StartScanBody{MinFrequency: 10, MaxFrequency: 20, Step: 5},
			mockSetup: func(m *MockSweepController) {
				m.On("Start", mock.Anything).Return(nil, sweep.ErrSweepInProgress)
			},
			wantCode: 409,
		},
		{
			name: "devices not connected",
			body: models.StartScanBody{MinFrequency: 10, MaxFrequency: 20, Step: 5},
			mockSetup: func(m *MockSweepController) {
				m.On("Start", mock.Anything).Return(nil, rig.ErrPumpNotConnected)
			},
			wantCode: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSweeps := &MockSweepController{}
			tt.mockSetup(mockSweeps)
			handler := NewScanHandler(mockSweeps, nil)

			resp, err := handler.StartScan(context.Background(), &models.StartScanRequest{Body: tt.body})
			if tt.wantCode != 0 {
				assertStatus(t, tt.wantCode, err)
			} else {
				require.NoError(t, err)
				assert.True(t, resp.Body.Success)
				assert.Equal(t, "7f9c0d52-3f3e-4c55-9b8e-1d2f6f0b1a11", resp.Body.SweepID)
				assert.Equal(t, 3, resp.Body.TotalSteps)
			}
			mockSweeps.AssertExpectations(t)
		})
	}
}

func TestExportCSV(t *testing.T) {
	mockSweeps := &MockSweepController{}
	handler := NewScanHandler(mockSweeps, nil)
	handler.now = func() time.Time { return time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC) }

	mockSweeps.On("Data").Return([]models.DataPoint{}).Once()
	_, err := handler.ExportCSV(context.Background(), nil)
	assertStatus(t, 400, err)

	mockSweeps.On("Data").Return([]models.DataPoint{{Frequency: 10, FlowRate: 5.12345}}).Once()
	resp, err := handler.ExportCSV(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", resp.ContentType)
	assert.Equal(t, `attachment; filename="flow_data_2024-03-07.csv"`, resp.ContentDisposition)
	assert.Equal(t, "Frequency (Hz),Flow Rate (L/min)\n10,5.123\n", string(resp.Body))
}

func TestUploadExport(t *testing.T) {
	t.Run("storage disabled", func(t *testing.T) {
		handler := NewScanHandler(&MockSweepController{}, nil)
		_, err := handler.UploadExport(context.Background(), nil)
		assertStatus(t, 503, err)
	})

	t.Run("uploads and signs", func(t *testing.T) {
		mockSweeps := &MockSweepController{}
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(mockSweeps, mockS3)
		handler.now = func() time.Time { return time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC) }

		mockSweeps.On("Data").Return([]models.DataPoint{{Frequency: 10, FlowRate: 5}, {Frequency: 15, FlowRate: 7.5}})
		mockS3.On("UploadFile", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "exports/") && strings.HasSuffix(key, ".csv")
		}), "text/csv; charset=utf-8", []byte("Frequency (Hz),Flow Rate (L/min)\n10,5.000\n15,7.500\n")).Return(nil)
		mockS3.On("GenerateDownloadURL", mock.Anything, mock.Anything).Return("https://example.com/download", nil)

		resp, err := handler.UploadExport(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/download", resp.Body.DownloadURL)
		assert.Equal(t, 86400, resp.Body.ExpiresIn)
		assert.Equal(t, 2, resp.Body.Points)
		assert.Equal(t, "exports/"+resp.Body.ID+".csv", resp.Body.Key)

		mockSweeps.AssertExpectations(t)
		mockS3.AssertExpectations(t)
	})

	t.Run("upload failure", func(t *testing.T) {
		mockSweeps := &MockSweepController{}
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(mockSweeps, mockS3)

		mockSweeps.On("Data").Return([]models.DataPoint{{Frequency: 10, FlowRate: 5}})
		mockS3.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

		_, err := handler.UploadExport(context.Background(), nil)
		assertStatus(t, 500, err)
	})
}

func TestUploadedExports(t *testing.T) {
	id := uuid.New()
	key := "exports/" + id.String() + ".csv"

	t.Run("storage disabled", func(t *testing.T) {
		handler := NewScanHandler(&MockSweepController{}, nil)
		_, err := handler.DownloadExport(context.Background(), &models.ExportRequest{ID: id.String()})
		assertStatus(t, 503, err)
		_, err = handler.ExportLink(context.Background(), &models.ExportRequest{ID: id.String()})
		assertStatus(t, 503, err)
		_, err = handler.DeleteExport(context.Background(), &models.ExportRequest{ID: id.String()})
		assertStatus(t, 503, err)
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := NewScanHandler(&MockSweepController{}, &MockS3Service{})
		_, err := handler.DownloadExport(context.Background(), &models.ExportRequest{ID: "../secrets"})
		assertStatus(t, 400, err)
	})

	t.Run("download", func(t *testing.T) {
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(&MockSweepController{}, mockS3)
		mockS3.On("DownloadFile", mock.Anything, key).Return([]byte("Frequency (Hz),Flow Rate (L/min)\n10,5.000\n"), nil)

		resp, err := handler.DownloadExport(context.Background(), &models.ExportRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "text/csv; charset=utf-8", resp.ContentType)
		assert.Contains(t, resp.ContentDisposition, id.String())
		assert.Equal(t, "Frequency (Hz),Flow Rate (L/min)\n10,5.000\n", string(resp.Body))
		mockS3.AssertExpectations(t)
	})

	t.Run("download missing", func(t *testing.T) {
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(&MockSweepController{}, mockS3)
		mockS3.On("DownloadFile", mock.Anything, key).Return(nil, fmt.Errorf("download %s: %w", key, storage.ErrNotFound))

		_, err := handler.DownloadExport(context.Background(), &models.ExportRequest{ID: id.String()})
		assertStatus(t, 404, err)
	})

	t.Run("re-sign link", func(t *testing.T) {
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(&MockSweepController{}, mockS3)
		mockS3.On("GenerateDownloadURL", mock.Anything, key).Return("https://example.com/again", nil)

		resp, err := handler.ExportLink(context.Background(), &models.ExportRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, id.String(), resp.Body.ID)
		assert.Equal(t, key, resp.Body.Key)
		assert.Equal(t, "https://example.com/again", resp.Body.DownloadURL)
		assert.Equal(t, 86400, resp.Body.ExpiresIn)
	})

	t.Run("delete", func(t *testing.T) {
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(&MockSweepController{}, mockS3)
		mockS3.On("DeleteFile", mock.Anything, key).Return(nil).Once()

		resp, err := handler.DeleteExport(context.Background(), &models.ExportRequest{ID: id.String()})
		require.NoError(t, err)
		assert.True(t, resp.Body.Success)
		mockS3.AssertExpectations(t)
	})

	t.Run("delete failure", func(t *testing.T) {
		mockS3 := &MockS3Service{}
		handler := NewScanHandler(&MockSweepController{}, mockS3)
		mockS3.On("DeleteFile", mock.Anything, key).Return(assert.AnError)

		_, err := handler.DeleteExport(context.Background(), &models.ExportRequest{ID: id.String()})
		assertStatus(t, 500, err)
	})
}

func TestGetSweep(t *testing.T) {
	id := uuid.New()
	mockRepo := &MockSweepRepository{}
	handler := NewSweepHandler(mockRepo)

	_, err := handler.GetSweep(context.Background(), &models.GetSweepRequest{ID: "not-a-uuid"})
	assertStatus(t, 400, err)

	mockRepo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), State: models.SweepCompleted}, nil).Once()
	mockRepo.On("GetDataPoints", mock.Anything, id).Return([]models.DataPoint{{Frequency: 10, FlowRate: 5}}, nil).Once()

	resp, err := handler.GetSweep(context.Background(), &models.GetSweepRequest{ID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, id.String(), resp.Body.Sweep.ID)
	assert.Len(t, resp.Body.DataPoints, 1)

	missing := uuid.New()
	mockRepo.On("GetByID", mock.Anything, missing).Return(nil, repository.ErrNotFound).Once()
	_, err = handler.GetSweep(context.Background(), &models.GetSweepRequest{ID: missing.String()})
	assertStatus(t, 404, err)

	mockRepo.AssertExpectations(t)
}

func TestListSweeps(t *testing.T) {
	mockRepo := &MockSweepRepository{}
	handler := NewSweepHandler(mockRepo)

	mockRepo.On("List", mock.Anything, 5).Return([]*models.Sweep{{ID: "a"}, {ID: "b"}}, nil).Once()
	resp, err := handler.ListSweeps(context.Background(), &models.ListSweepsRequest{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 2)

	mockRepo.On("List", mock.Anything, 20).Return([]*models.Sweep(nil), assert.AnError).Once()
	_, err = handler.ListSweeps(context.Background(), &models.ListSweepsRequest{Limit: 20})
	assertStatus(t, 500, err)

	mockRepo.AssertExpectations(t)
}
