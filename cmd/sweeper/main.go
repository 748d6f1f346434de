package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"server/internal/infra"
	"server/internal/storage"
	"server/internal/sweeper"
)

// The sweeper reconciles the artifact store against the generations table on
// a cron schedule. It runs as its own process so a stuck walk can never
// block request serving.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "sweeper").Logger()

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open artifact store")
	}

	sw := &sweeper.Sweeper{
		SQL:    infra.NewSQLRunner(dbpool, logger),
		Store:  store,
		Logger: logger,
		Grace:  cfg.SweepGrace,
	}

	runOnce := func() {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if _, err := sw.Run(runCtx); err != nil {
			logger.Error().Err(err).Msg("sweep pass failed")
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, runOnce); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("invalid sweep schedule")
	}

	logger.Info().Str("schedule", cfg.SweepSchedule).Dur("grace", cfg.SweepGrace).Msg("sweeper started")
	runOnce()
	scheduler.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-scheduler.Stop().Done()
	logger.Info().Msg("sweeper stopped")
}
