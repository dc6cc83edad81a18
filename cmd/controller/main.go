// Package main is the entry point for the shortforge server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortforge/internal/auth"
	"shortforge/internal/config"
	"shortforge/internal/controller"
	"shortforge/internal/controller/handlers"
	"shortforge/internal/controller/middleware"
	"shortforge/internal/logger"
	"shortforge/internal/media"
	"shortforge/internal/observability"
	"shortforge/internal/providers"
	"shortforge/internal/store"
	"shortforge/internal/store/memory"
	"shortforge/internal/store/postgres"
	"shortforge/internal/worker"
	"shortforge/internal/worker/runtime"
	"shortforge/internal/workspace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting (postgres store only)")
	configPath := flag.String("config", "", "Path to config file (default: shortforge.yaml in current directory)")
	flag.Parse()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	ctx := context.Background()

	for _, key := range cfg.MissingProviderKeys() {
		appLogger.Warn("Provider credential not configured", "key", key)
	}

	// Store
	jobStore, closeStore, err := openStore(ctx, cfg, *migrateFlag)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Tracing
	if cfg.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
			ServiceName: observability.ServiceName,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
		})
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Printf("Failed to shutdown tracer: %v", err)
			}
		}()
	}

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics(ctx, observability.ServiceName)
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	workerMetrics, err := worker.NewMetrics()
	if err != nil {
		log.Printf("Failed to register worker metrics: %v", err)
	}

	// Workspace
	layout, err := workspace.New(cfg.UploadsDir, cfg.OutputsDir)
	if err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	// Providers
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	openaiClient := providers.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient)
	gemini, err := providers.NewGeminiImage(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel)
	if err != nil {
		log.Fatalf("Failed to create gemini client: %v", err)
	}
	voice := providers.NewElevenLabsVoice(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL, cfg.ElevenLabsVoiceID)

	generators := worker.Providers{
		Script: providers.NewOpenAIScript(openaiClient),
		Voice:  voice,
		Image:  providers.NewFallbackImage(providers.NewOpenAIImage(openaiClient, httpClient), gemini, appLogger),
	}

	// Encoder
	rt, binary, err := newRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to init encoder runtime: %v", err)
	}
	pipeline := media.NewPipeline(rt, media.PipelineConfig{
		Binary: binary,
		Mounts: []string{layout.UploadsDir, layout.OutputsDir},
	}, appLogger)

	// Worker
	orchestrator := worker.NewOrchestrator(jobStore, generators, pipeline, layout, appLogger, workerMetrics)
	agent := worker.NewAgent(orchestrator, jobStore, worker.AgentConfig{
		Concurrency:  cfg.WorkerConcurrency,
		JobTimeout:   cfg.JobTimeout,
		DrainTimeout: cfg.DrainTimeout,
	}, appLogger)
	service := worker.NewService(jobStore, agent, layout, appLogger, workerMetrics)

	// Use an Observable Gauge (Async) that counts jobs only when scraped.
	meter := otel.Meter("shortforge")
	_, err = meter.Int64ObservableGauge("shortforge.jobs.by_status",
		metric.WithDescription("Current number of jobs per status"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			counts, err := service.Counts(ctx)
			if err != nil {
				appLogger.Warn("Failed to count jobs", "error", err)
				return nil // Don't crash metrics scrape on store error
			}
			for status, n := range counts {
				obs.Observe(n, metric.WithAttributes(attribute.String("status", string(status))))
			}
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register job status metric: %v", err)
	}

	// HTTP
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	h := handlers.New(service, issuer, handlers.Config{AdminPassword: cfg.AdminPassword}, appLogger)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(controller.Config{
		Addr:        addr,
		OutputsDir:  layout.OutputsDir,
		Metrics:     metricsHandler,
		RateLimiter: middleware.NewRateLimiter(middleware.WithLimit(cfg.RateLimit, cfg.RateLimitBurst)),
	}, h, issuer, appLogger)

	go func() {
		appLogger.Info("Shortforge server starting", "addr", addr, "store", cfg.StoreDriver, "runtime", cfg.Runtime)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	httpCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout+10*time.Second)
	defer cancelDrain()
	if err := agent.Shutdown(drainCtx); err != nil {
		appLogger.Error("Worker did not drain cleanly", "error", err)
	}
	appLogger.Info("Server exited properly")
}

// openStore builds the configured JobStore and its close function.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (store.JobStore, func(), error) {
	if cfg.StoreDriver != "postgres" {
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		log.Println("Running database migrations...")
		version, err := postgres.Migrate(pg.DB())
		if err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Printf("Migrations completed, schema version %d", version)
	}
	return pg, func() { pg.Close() }, nil
}

// newRuntime returns the encoder runtime and the binary it should invoke.
func newRuntime(cfg *config.Config) (runtime.Runtime, string, error) {
	switch cfg.Runtime {
	case "docker":
		rt, err := runtime.NewDockerRuntime(cfg.FFmpegImage)
		if err != nil {
			return nil, "", err
		}
		return rt, "ffmpeg", nil
	default:
		return runtime.NewExecRuntime(), cfg.FFmpegPath, nil
	}
}
