// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"os"

	"interview-analyzer/internal/config"
	"interview-analyzer/internal/db/migrate"
	"interview-analyzer/internal/logutil"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logutil.New(os.Stderr, "info").Error(err, "config")
		os.Exit(1)
	}
	logger := logutil.New(os.Stderr, cfg.LogLevel).WithName("migrate")
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Error(err, "migration failed", "direction", *direction)
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Error(err, "failed to read schema version")
		os.Exit(1)
	}
	logger.Info("migrations applied", "direction", *direction, "version", version, "dirty", dirty)
}
