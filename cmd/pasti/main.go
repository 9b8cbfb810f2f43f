package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pasti/internal/backend"
	"pasti/internal/cli"
	"pasti/internal/config"
	apphttp "pasti/internal/http"
	applog "pasti/internal/log"
	"pasti/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	if envErr != nil {
		cli.Fatal(logger, "Failed to load .env file", envErr)
	}

	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	stores, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err.Error())
		}
	}()

	tracker := services.NewTrackerService(cli.Users(cfg), stores.Catalog, stores.Meals, stores.Weights, stores.Publisher)
	srv := apphttp.NewServer(":"+cfg.Port, tracker, apphttp.Options{
		Ready:  stores.Ping,
		Logger: logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting pasti server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"users", len(cfg.Users),
			"events", stores.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		}
	}

	start := time.Now()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully", "shutdown_ms", time.Since(start).Milliseconds())
}
