package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "flowrig.db", cfg.Database.URL)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "simulator", cfg.Device.Mode)
	assert.Equal(t, 9600, cfg.Device.BaudRate)
	assert.Equal(t, time.Second, cfg.Device.ReadTimeout)
	assert.True(t, cfg.Device.SimulatorFallback)

	assert.Equal(t, 500*time.Millisecond, cfg.Sweep.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Sweep.SettleDelay)
	assert.Equal(t, time.Second, cfg.Sweep.PumpStartDelay)
	assert.Equal(t, 5, cfg.Sweep.WindowSize)
	assert.Equal(t, 20, cfg.Sweep.MaxAttempts)
	assert.Equal(t, 3, cfg.Sweep.AverageCount)
	assert.Equal(t, 0.3, cfg.Sweep.Tolerance)

	assert.Equal(t, 10, cfg.Rig.HistorySize)
	assert.Equal(t, 5.0, cfg.Rig.StabilityTolerancePercent)
	assert.Empty(t, cfg.AWS.S3Bucket)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://flowrig:secret@db:5432/flowrig?sslmode=disable")
	t.Setenv("DEVICE_MODE", "SERIAL")
	t.Setenv("PUMP_PORT", "/dev/ttyACM0")
	t.Setenv("BAUD_RATE", "115200")
	t.Setenv("SWEEP_POLL_INTERVAL", "250ms")
	t.Setenv("SWEEP_MAX_ATTEMPTS", "40")
	t.Setenv("SWEEP_TOLERANCE", "0.15")
	t.Setenv("ALLOWED_ORIGINS", "https://rig.example.com, http://localhost:5173,")
	t.Setenv("S3_BUCKET", "flowrig-exports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, "postgres://flowrig:secret@db:5432/flowrig?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "serial", cfg.Device.Mode)
	assert.Equal(t, "/dev/ttyACM0", cfg.Device.PumpPort)
	assert.Equal(t, 115200, cfg.Device.BaudRate)
	assert.Equal(t, 250*time.Millisecond, cfg.Sweep.PollInterval)
	assert.Equal(t, 40, cfg.Sweep.MaxAttempts)
	assert.Equal(t, 0.15, cfg.Sweep.Tolerance)
	assert.Equal(t, []string{"https://rig.example.com", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "flowrig-exports", cfg.AWS.S3Bucket)
}
