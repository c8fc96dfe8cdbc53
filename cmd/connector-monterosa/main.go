// Connector-monterosa serves Monterosa Control API operations to the
// workflow host over the /exec contract.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/audit"
	"github.com/bturcanu/monterosa-connector/pkg/auth"
	"github.com/bturcanu/monterosa-connector/pkg/config"
	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/dispatch"
	mrOtel "github.com/bturcanu/monterosa-connector/pkg/otel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)
	config.LoadDotEnv(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelShutdown, err := mrOtel.Setup(ctx, mrOtel.Config{
		ServiceName:    config.EnvOr("OTEL_SERVICE_NAME", mrOtel.DefaultServiceName),
		OTLPEndpoint:   otelEndpoint,
		MetricsEnabled: true,
		TracingEnabled: otelEndpoint != "",
	})
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	// ── Dependencies ─────────────────────────────────────────────────────
	dispatcher, err := dispatch.New(log, mrOtel.Meter("github.com/bturcanu/monterosa-connector/pkg/dispatch"))
	if err != nil {
		log.Error("dispatcher init failed", "error", err)
		os.Exit(1)
	}

	conn := &MonterosaConnector{
		log:        log,
		dispatcher: dispatcher,
		defaults: controlapi.Credentials{
			Environment: config.EnvOr("MONTEROSA_ENVIRONMENT", "us"),
			AccessToken: os.Getenv("MONTEROSA_ACCESS_TOKEN"),
		},
		apiBase: os.Getenv("MONTEROSA_API_BASE_URL"),
		cdnBase: os.Getenv("MONTEROSA_CDN_BASE_URL"),
		httpClient: &http.Client{
			Timeout: config.EnvOrSeconds("UPSTREAM_TIMEOUT_SEC", 30*time.Second),
		},
	}

	var ready func(context.Context) error
	if config.EnvOrBool("AUDIT_ENABLED", false) {
		pool, err := pgxpool.New(ctx, config.PostgresDSN())
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := audit.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			log.Error("audit migrate failed", "error", err)
			os.Exit(1)
		}
		conn.recorder = audit.NewLogger(store, log)
		ready = store.Ping
	}

	keyStore := auth.NewKeyStore(os.Getenv("API_KEYS"))
	if keyStore.Len() == 0 {
		log.Warn("API_KEYS is empty, inbound calls are not authenticated")
	}

	handler := newRouter(log, conn, serverConfig{
		InternalToken: os.Getenv("INTERNAL_AUTH_TOKEN"),
		ExecTimeout:   config.EnvOrSeconds("EXEC_TIMEOUT_SEC", 15*time.Second),
		RateLimit:     config.EnvOrInt("RATE_LIMIT_PER_CLIENT", 50),
		Keys:          keyStore,
		Ready:         ready,
	})

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsAddr := config.EnvOr("METRICS_ADDR", "127.0.0.1:9090")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	addr := config.EnvOr("CONNECTOR_MONTEROSA_ADDR", ":8084")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("connector-monterosa starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down connector-monterosa")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
}
