package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/ashish-admin/stratech-orchestrator/config"
	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
	"github.com/ashish-admin/stratech-orchestrator/internal/audit"
	"github.com/ashish-admin/stratech-orchestrator/internal/breaker"
	"github.com/ashish-admin/stratech-orchestrator/internal/budget"
	"github.com/ashish-admin/stratech-orchestrator/internal/engine"
	"github.com/ashish-admin/stratech-orchestrator/internal/httpapi"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider/claude"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider/gemini"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider/openai"
	"github.com/ashish-admin/stratech-orchestrator/internal/quality"
	"github.com/ashish-admin/stratech-orchestrator/internal/routing"
	"github.com/ashish-admin/stratech-orchestrator/internal/telemetry"
	"github.com/ashish-admin/stratech-orchestrator/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg.Environment)

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("stratech-orchestrator", cfg.OTELExporterType, cfg.OTELExporterEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping postgres")
	}
	logger.Info().Msg("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping redis")
	}
	logger.Info().Msg("Redis connected")

	// 5. Init provider gateways
	var gateways []provider.Gateway
	var caps []routing.Capability
	if cfg.GeminiAPIKey != "" {
		gateways = append(gateways, gemini.New(cfg.GeminiAPIKey))
		caps = append(caps, routing.Capability{
			Name: "gemini", CostEffectiveness: 0.9, Quality: 0.7, Speed: 0.9, LiveRetrieval: true,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		gateways = append(gateways, openai.New(cfg.OpenAIAPIKey))
		caps = append(caps, routing.Capability{
			Name: "openai", CostEffectiveness: 0.8, Quality: 0.8, Speed: 0.7,
		})
	}
	if cfg.AnthropicAPIKey != "" {
		gateways = append(gateways, claude.New(cfg.AnthropicAPIKey))
		caps = append(caps, routing.Capability{
			Name: "claude", CostEffectiveness: 0.5, Quality: 0.95, Speed: 0.5,
		})
	}
	registry := provider.NewRegistry(gateways...)

	// 6. Init orchestration collaborators
	breakers := breaker.NewRegistry(registry.Names(), breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, logger)

	ledger := budget.NewLedger(budget.Config{
		TotalBudgetUSD: cfg.BudgetTotalUSD,
		HardCeilingPct: cfg.BudgetHardCeilingPct,
		AlertCooldown:  cfg.BudgetAlertCooldown,
	}, budget.NewPostgresStore(pool), logger)

	sink := audit.NewPostgresStore(pool)

	history := quality.NewHistory()
	if rates, err := sink.ProviderSuccessRates(ctx, time.Now().AddDate(0, 0, -7)); err != nil {
		logger.Warn().Err(err).Msg("could not seed provider history")
	} else {
		history.Seed(rates)
	}

	// 7. Init engine
	tracer := otel.GetTracerProvider().Tracer("stratech-orchestrator")
	eng := engine.New(
		engine.DefaultConfig(),
		analyzer.New(analyzer.DefaultWeights()),
		routing.NewPolicy(caps),
		breakers,
		ledger,
		registry,
		quality.NewValidator(quality.DefaultAssessWeights()),
		history,
		sink,
		tracer,
		logger,
	)

	// 8. Init rate limiter and HTTP boundary
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitTPM)
	handler := httpapi.NewHandler(eng, ledger, limiter, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"stratech-orchestrator"}`))
	})
	r.Post("/v1/analysis", handler.HandleAnalysis)
	r.Get("/v1/budget", handler.HandleBudgetStatus)

	// 9. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("orchestrator starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(environment string) zerolog.Logger {
	if environment == "production" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	}
	return zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
