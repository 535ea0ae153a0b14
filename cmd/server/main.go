package main

import (
	"context"
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
	"go.opentelemetry.io/otel"

	"github.com/voiceshield/api/internal/api"
	appconfig "github.com/voiceshield/api/internal/config"
	"github.com/voiceshield/api/internal/inference"
	"github.com/voiceshield/api/internal/observe"
	"github.com/voiceshield/api/internal/predict"
	"github.com/voiceshield/api/internal/storage"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Metrics provider with Prometheus exporter bridge
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voiceshield",
		ServiceVersion: api.Version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics provider")
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Metrics shutdown failed")
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create metrics")
	}

	// Optionally provision the model artifact from object storage
	if cfg.ModelS3.Bucket != "" && cfg.ModelS3.Key != "" {
		fetcher, err := storage.NewModelFetcher(storage.FetcherConfig{
			Bucket:    cfg.ModelS3.Bucket,
			Key:       cfg.ModelS3.Key,
			Endpoint:  cfg.ModelS3.Endpoint,
			Region:    cfg.ModelS3.Region,
			AccessKey: cfg.ModelS3.AccessKey,
			SecretKey: cfg.ModelS3.SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure model fetcher")
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		if err := fetcher.Fetch(fetchCtx, cfg.Inference.ModelPath); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("Failed to download model artifact")
		}
		cancel()
	}

	// Load the classifier. A load failure is not fatal for the process:
	// health reports model_loaded=false and predictions fail with 500
	// instead of crashing on first request.
	var classifier inference.Classifier
	status := api.Status{ModelLoaded: false, Device: "cpu"}
	onnx, err := inference.NewONNXClassifier(inference.Config{
		ModelPath:   cfg.Inference.ModelPath,
		LibraryPath: cfg.Inference.LibraryPath,
		Device:      cfg.Inference.Device,
	})
	if err != nil {
		log.Error().Err(err).Str("model", cfg.Inference.ModelPath).
			Msg("Model load failed; serving without predictions")
	} else {
		classifier = onnx
		status = api.Status{ModelLoaded: true, Device: onnx.Device()}
		defer onnx.Close()
	}

	svc := predict.NewPredictionService(classifier, cfg.Upload.MaxBytes, metrics)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(observe.Middleware(metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("VoiceShield API", api.Version)
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	api.RegisterRoutes(router, humaAPI, svc, status, cfg.Upload.MaxBytes)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("model_loaded", status.ModelLoaded).
			Str("device", status.Device).Msg("Starting VoiceShield API server")
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
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
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
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("user_agent", r.UserAgent()).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
