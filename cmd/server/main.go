package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/flowrig/internal/api"
	"github.com/RMahshie/flowrig/internal/config"
	"github.com/RMahshie/flowrig/internal/device"
	"github.com/RMahshie/flowrig/internal/repository/sqlstore"
	"github.com/RMahshie/flowrig/internal/rig"
	"github.com/RMahshie/flowrig/internal/storage"
	"github.com/RMahshie/flowrig/internal/sweep"
	"github.com/RMahshie/flowrig/pkg/models"
)

const version = "1.0.0"

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogging(cfg)

	ctx := context.Background()

	// Devices
	dev, err := device.Open(device.Config{
		Mode: cfg.Device.Mode,
		Serial: device.SerialConfig{
			PumpPort:      cfg.Device.PumpPort,
			FlowMeterPort: cfg.Device.FlowMeterPort,
			BaudRate:      cfg.Device.BaudRate,
			ReadTimeout:   cfg.Device.ReadTimeout,
		},
		Simulator:           device.SimulatorConfig{Latency: cfg.Device.SimulatorLatency},
		FallbackToSimulator: cfg.Device.SimulatorFallback,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open devices")
	}
	flowRig := rig.New(dev, rig.Config{
		HistorySize:      cfg.Rig.HistorySize,
		TolerancePercent: cfg.Rig.StabilityTolerancePercent,
	})

	// Database
	db, dialect, err := sqlstore.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	log.Info().Str("dialect", string(dialect)).Msg("Database ready")
	sweepRepo := sqlstore.NewSweepRepository(db, dialect)

	// Object storage for CSV exports
	var s3Service storage.S3Service
	s3Config := storage.S3Config{
		Bucket:    cfg.AWS.S3Bucket,
		Endpoint:  cfg.AWS.S3Endpoint,
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		SecretKey: cfg.AWS.SecretAccessKey,
	}
	if s3Config.Enabled() {
		s3Service, err = storage.NewS3Service(s3Config)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure export storage")
		}
		log.Info().Str("bucket", s3Config.Bucket).Msg("Export uploads enabled")
	} else {
		log.Info().Msg("S3_BUCKET not set, export uploads disabled")
	}

	controller := sweep.NewController(sweep.FromRig(flowRig), sweepRepo, sweep.Config{
		PollInterval:   cfg.Sweep.PollInterval,
		SettleDelay:    cfg.Sweep.SettleDelay,
		PumpStartDelay: cfg.Sweep.PumpStartDelay,
		WindowSize:     cfg.Sweep.WindowSize,
		MaxAttempts:    cfg.Sweep.MaxAttempts,
		AverageCount:   cfg.Sweep.AverageCount,
		Tolerance:      cfg.Sweep.Tolerance,
	})

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("Flow Rig API", version)
	humaConfig.DocsPath = "/docs"
	humaAPI := humachi.New(router, humaConfig)

	// Register health endpoint
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	api.RegisterRoutes(humaAPI, flowRig, controller, sweepRepo, s3Service)

	// Serve OpenAPI spec at /api/docs
	router.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		spec, err := humaAPI.OpenAPI().MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to generate OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Write(spec)
	})

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("device_mode", cfg.Device.Mode).Msg("Starting flow rig API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// A running sweep finishes its current step and stops the pump
	if err := controller.Stop(); err == nil {
		log.Info().Msg("Stopping running sweep")
	} else if !errors.Is(err, sweep.ErrNotRunning) {
		log.Error().Err(err).Msg("Failed to stop sweep")
	}
	if err := controller.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Sweep did not stop before shutdown deadline")
	}

	if err := flowRig.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close devices")
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}

	log.Info().Msg("Server exited")
}

// configureLogging switches to JSON output outside development and applies LOG_LEVEL
func configureLogging(cfg *config.Config) {
	if !cfg.IsDev() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.Server.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("user_agent", r.UserAgent()).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
