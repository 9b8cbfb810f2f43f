// Package cli holds the start-up steps shared by cmd/pasti and
// cmd/pasti-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pasti/internal/config"
	"pasti/internal/core"
	applog "pasti/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. A missing file is
// not an error; a malformed one is.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads the configuration and runs validate on it, typically
// (*config.Config).Validate or ValidateWorker.
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Users turns the configured names into tracked users.
func Users(cfg *config.Config) []core.User {
	out := make([]core.User, 0, len(cfg.Users))
	for _, name := range cfg.Users {
		out = append(out, core.NewUser(name))
	}
	return out
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err as a start-up failure and exits.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg,
		applog.FieldError, err.Error(),
		applog.FieldErrorType, applog.ErrorTypeConfiguration,
		applog.FieldOperation, applog.OpStartup)
	os.Exit(1)
}
