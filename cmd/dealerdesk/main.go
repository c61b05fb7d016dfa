package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/openauto/dealerdesk/internal/adapter/fsm"
	otelx "github.com/openauto/dealerdesk/internal/adapter/otel"
	riverx "github.com/openauto/dealerdesk/internal/adapter/river"
	"github.com/openauto/dealerdesk/internal/adapter/sqlite"
	"github.com/openauto/dealerdesk/internal/app"

	handler "github.com/openauto/dealerdesk/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "dealerdesk.db")

	policy, err := policyFromEnv()
	if err != nil {
		return err
	}

	// --- Telemetry ---
	providers, err := otelx.Setup(ctx, otelx.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelx.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer store.Close()

	riverClient, err := riverx.Setup(ctx, db)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	publisher := otelx.NewTracingPublisher(riverx.NewPublisher(riverClient))

	// --- Application ---
	svc := app.NewWorkflow(otelx.NewTracingStore(store), fsm.New(), publisher, policy)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("dealerdesk", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("dealerdesk", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("dealerdesk listening", "port", port)
		slog.Info("API docs", "url", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Warn("river stop", "error", err)
	}

	slog.Info("stopped")
	return nil
}

// policyFromEnv reads the lifecycle knobs. DEPOSIT_THRESHOLD is the fraction
// of an order total a partial payment must cover before delivery creation.
func policyFromEnv() (app.Policy, error) {
	raw := os.Getenv("DEPOSIT_THRESHOLD")
	if raw == "" {
		return app.Policy{DepositThreshold: app.DefaultDepositThreshold}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		return app.Policy{}, fmt.Errorf("DEPOSIT_THRESHOLD must be a fraction in (0, 1], got %q", raw)
	}
	return app.Policy{DepositThreshold: v}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
