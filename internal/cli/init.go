// Package cli holds the startup plumbing shared by cmd/cassa and
// cmd/cassa-worker: logging, env loading, config validation, and the
// pieces both binaries open before doing anything useful.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cassa/internal/auth"
	"cassa/internal/config"
	"cassa/internal/storage"
)

// SetupLogger installs a text slog handler as the process default and
// returns it.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. Missing files are fine;
// production sets real environment variables.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment config, exiting the
// process when it does not validate.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository, exiting the process on failure. The
// caller owns the Close.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to open SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitGate builds the admin gate from the configured credential, exiting
// the process when neither a hash nor a password is set. The dashboard
// is useless without a way into the admin area.
func InitGate(logger *slog.Logger, cfg *config.Config) *auth.Gate {
	gate, err := auth.NewGate(cfg.AdminPasswordHash, cfg.AdminPassword)
	if err != nil {
		logger.Error("Failed to build admin gate, set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH", "error", err)
		os.Exit(1)
	}
	return gate
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
