// worker deletes stale sessions on a fixed interval, for deployments that run the API with
// several replicas and want a single cleanup process. Requires DATABASE_URL.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"interview-analyzer/internal/config"
	"interview-analyzer/internal/db"
	"interview-analyzer/internal/logutil"
	sessionrepo "interview-analyzer/internal/session/repository"
	sessionservice "interview-analyzer/internal/session/service"
)

func main() {
	once := flag.Bool("once", false, "Run a single cleanup and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logutil.New(os.Stderr, "info").Error(err, "config")
		os.Exit(1)
	}
	logger := logutil.New(os.Stdout, cfg.LogLevel).WithName("worker")
	if cfg.DatabaseURL == "" {
		logger.Info("worker: DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenWithRetry(ctx, logger, cfg.DatabaseURL, uint(cfg.DBConnectRetries))
	if err != nil {
		logger.Error(err, "failed to open database")
		os.Exit(1)
	}
	defer database.Close()

	store := sessionservice.NewStore(sessionrepo.NewPostgresRepository(database), cfg.SessionSecretBytes, logger)
	janitor := sessionservice.NewJanitor(store, cfg.CleanupInterval(), logger)
	if *once {
		if _, err := janitor.RunOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}
	janitor.Run(ctx)
}
