package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Device   DeviceConfig
	Sweep    SweepConfig
	Rig      RigConfig
	AWS      AWSConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string // postgres:// URL or SQLite file path
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// DeviceConfig selects the pump and flow meter backend
type DeviceConfig struct {
	Mode              string
	PumpPort          string
	FlowMeterPort     string
	BaudRate          int
	ReadTimeout       time.Duration
	SimulatorFallback bool
	SimulatorLatency  time.Duration
}

// SweepConfig holds sweep timing and stability settings
type SweepConfig struct {
	PollInterval   time.Duration
	SettleDelay    time.Duration
	PumpStartDelay time.Duration
	WindowSize     int
	MaxAttempts    int
	AverageCount   int
	Tolerance      float64
}

// RigConfig holds manual-control status settings
type RigConfig struct {
	HistorySize               int
	StabilityTolerancePercent float64
}

// AWSConfig holds AWS/S3 configuration. An empty bucket disables uploads.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

var keys = []string{
	"DATABASE_URL",
	"PORT",
	"ENVIRONMENT",
	"LOG_LEVEL",
	"ALLOWED_ORIGINS",
	"DEVICE_MODE",
	"PUMP_PORT",
	"FLOW_METER_PORT",
	"BAUD_RATE",
	"SERIAL_READ_TIMEOUT",
	"SIMULATOR_FALLBACK",
	"SIMULATOR_LATENCY",
	"SWEEP_POLL_INTERVAL",
	"SWEEP_SETTLE_DELAY",
	"SWEEP_PUMP_START_DELAY",
	"SWEEP_WINDOW_SIZE",
	"SWEEP_MAX_ATTEMPTS",
	"SWEEP_AVERAGE_COUNT",
	"SWEEP_TOLERANCE",
	"STATUS_HISTORY_SIZE",
	"STABILITY_TOLERANCE_PERCENT",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"S3_BUCKET",
	"S3_ENDPOINT",
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("DATABASE_URL", "flowrig.db")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "dev")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("DEVICE_MODE", "simulator")
	viper.SetDefault("PUMP_PORT", "/dev/ttyUSB0")
	viper.SetDefault("FLOW_METER_PORT", "/dev/ttyUSB1")
	viper.SetDefault("BAUD_RATE", 9600)
	viper.SetDefault("SERIAL_READ_TIMEOUT", time.Second)
	viper.SetDefault("SIMULATOR_FALLBACK", true)
	viper.SetDefault("SIMULATOR_LATENCY", 100*time.Millisecond)
	viper.SetDefault("SWEEP_POLL_INTERVAL", 500*time.Millisecond)
	viper.SetDefault("SWEEP_SETTLE_DELAY", 2*time.Second)
	viper.SetDefault("SWEEP_PUMP_START_DELAY", time.Second)
	viper.SetDefault("SWEEP_WINDOW_SIZE", 5)
	viper.SetDefault("SWEEP_MAX_ATTEMPTS", 20)
	viper.SetDefault("SWEEP_AVERAGE_COUNT", 3)
	viper.SetDefault("SWEEP_TOLERANCE", 0.3)
	viper.SetDefault("STATUS_HISTORY_SIZE", 10)
	viper.SetDefault("STABILITY_TOLERANCE_PERCENT", 5.0)
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	viper.SetDefault("S3_BUCKET", "")
	viper.SetDefault("S3_ENDPOINT", "")

	// Environment variables override .env file values
	viper.AutomaticEnv()
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	// Read from .env files based on environment
	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev" // matches .env.dev
	}

	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Read .env file (ignore error if file doesn't exist)
	_ = viper.ReadInConfig()

	var config Config
	config.Database.URL = viper.GetString("DATABASE_URL")
	config.Server.Port = viper.GetString("PORT")
	config.Server.Env = viper.GetString("ENVIRONMENT")
	config.Server.LogLevel = viper.GetString("LOG_LEVEL")
	config.Server.AllowedOrigins = splitList(viper.GetString("ALLOWED_ORIGINS"))

	config.Device.Mode = strings.ToLower(viper.GetString("DEVICE_MODE"))
	config.Device.PumpPort = viper.GetString("PUMP_PORT")
	config.Device.FlowMeterPort = viper.GetString("FLOW_METER_PORT")
	config.Device.BaudRate = viper.GetInt("BAUD_RATE")
	config.Device.ReadTimeout = viper.GetDuration("SERIAL_READ_TIMEOUT")
	config.Device.SimulatorFallback = viper.GetBool("SIMULATOR_FALLBACK")
	config.Device.SimulatorLatency = viper.GetDuration("SIMULATOR_LATENCY")

	config.Sweep.PollInterval = viper.GetDuration("SWEEP_POLL_INTERVAL")
	config.Sweep.SettleDelay = viper.GetDuration("SWEEP_SETTLE_DELAY")
	config.Sweep.PumpStartDelay = viper.GetDuration("SWEEP_PUMP_START_DELAY")
	config.Sweep.WindowSize = viper.GetInt("SWEEP_WINDOW_SIZE")
	config.Sweep.MaxAttempts = viper.GetInt("SWEEP_MAX_ATTEMPTS")
	config.Sweep.AverageCount = viper.GetInt("SWEEP_AVERAGE_COUNT")
	config.Sweep.Tolerance = viper.GetFloat64("SWEEP_TOLERANCE")

	config.Rig.HistorySize = viper.GetInt("STATUS_HISTORY_SIZE")
	config.Rig.StabilityTolerancePercent = viper.GetFloat64("STABILITY_TOLERANCE_PERCENT")

	config.AWS.Region = viper.GetString("AWS_REGION")
	config.AWS.AccessKeyID = viper.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = viper.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = viper.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = viper.GetString("S3_ENDPOINT")

	log.Debug().
		Str("environment", config.Server.Env).
		Str("device_mode", config.Device.Mode).
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Bool("storage_enabled", config.AWS.S3Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

// IsDev reports whether the server runs in the development environment
func (c *Config) IsDev() bool {
	return c.Server.Env == "" || c.Server.Env == "dev" || c.Server.Env == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
