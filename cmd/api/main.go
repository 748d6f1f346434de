package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/auth"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/inference"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/mailer"
	"server/internal/middleware"
	"server/internal/pipeline"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	creds := credentials.NewStore(runner)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize artifact store")
	}

	// Environment keys win; the credentials store covers rotation without
	// restarts.
	inferenceKey := cfg.InferenceAPIKey
	if inferenceKey == "" {
		lookup, cancel := context.WithTimeout(ctx, 5*time.Second)
		if stored, err := creds.InferenceAPIKey(lookup); err == nil && stored != "" {
			inferenceKey = stored
		}
		cancel()
	}
	inferenceClient, err := inference.NewClient(inference.Options{
		APIKey:  inferenceKey,
		BaseURL: cfg.InferenceBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize inference client")
	}
	if !inferenceClient.HasCredentials() {
		logger.Warn().Msg("no inference api key configured, generation requests will fail")
	}

	mailKey := cfg.MailAPIKey
	if mailKey == "" {
		lookup, cancel := context.WithTimeout(ctx, 5*time.Second)
		if stored, err := creds.MailAPIKey(lookup); err == nil && stored != "" {
			mailKey = stored
		}
		cancel()
	}
	var mail pipeline.Mailer
	if mailKey != "" {
		client, err := mailer.NewClient(mailer.Options{
			APIKey:    mailKey,
			BaseURL:   cfg.MailBaseURL,
			FromEmail: cfg.MailFromEmail,
			FromName:  cfg.MailFromName,
			Logger:    &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize mailer")
		}
		mail = client
	} else {
		logger.Warn().Msg("no mail api key configured, completion emails disabled")
	}

	var countryLookup middleware.CountryLookup
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip database unavailable, country annotation disabled")
		} else {
			defer resolver.Close()
			countryLookup = resolver.CountryCode
		}
	}

	app := &handlers.App{
		Config: cfg,
		Logger: logger,
		SQL:    runner,
		Auth:   auth.NewResolver(runner, cfg.SessionJWTSecret, logger),
		Pipeline: &pipeline.Pipeline{
			SQL:                runner,
			Logger:             logger,
			Inference:          inferenceClient,
			Store:              store,
			Mailer:             mail,
			StorageBaseURL:     cfg.StorageBaseURL,
			PublicAssetBaseURL: cfg.PublicAssetBaseURL,
		},
		Store: store,
	}

	router := httpapi.NewRouter(app, countryLookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
