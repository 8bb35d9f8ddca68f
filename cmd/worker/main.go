package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"hookline/internal/app"
	"hookline/internal/pkg/logger"
	"hookline/internal/platform/config"
	"hookline/internal/platform/database"
)

// The worker runs the webhook retry loop on a fixed interval. Deployments
// that trigger retries over HTTP instead do not need it.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single retry pass and exit")
	limit := flag.Int("limit", 0, "Batch size for -once (0 uses the configured default)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db, "up"); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, db)

	if *once {
		if _, err := a.RetryWorker.Run(ctx, *limit); err != nil {
			log.Error().Err(err).Msg("webhook retry run failed")
		}
		return
	}

	log.Info().Dur("interval", cfg.Webhooks.RetryInterval).Msg("webhook retry worker started")
	a.RetryWorker.RunEvery(ctx, cfg.Webhooks.RetryInterval)
	log.Info().Msg("webhook retry worker stopped")
}
