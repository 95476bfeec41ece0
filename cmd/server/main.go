package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chris44528/lux-aged-cases/internal/cache"
	"github.com/chris44528/lux-aged-cases/internal/config"
	"github.com/chris44528/lux-aged-cases/internal/db"
	httpapi "github.com/chris44528/lux-aged-cases/internal/http"
	"github.com/chris44528/lux-aged-cases/internal/notify"
	"github.com/chris44528/lux-aged-cases/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "aged-cases").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	metricsCache, err := cache.New(cfg.RedisURL, cfg.MetricsCacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer metricsCache.Close()
	if metricsCache == nil {
		logger.Info().Msg("redis not configured, metrics caching disabled")
	}

	dispatcher := buildDispatcher(cfg, logger)

	comms := &service.Communicator{
		Store:       store,
		Dispatcher:  dispatcher,
		Logger:      logger,
		CompanyName: cfg.CompanyName,
	}

	router := httpapi.Router(cfg, store, comms, metricsCache, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func buildDispatcher(cfg config.Config, logger zerolog.Logger) *notify.Dispatcher {
	d := &notify.Dispatcher{Logger: logger}

	if cfg.TwilioAccountSID != "" {
		d.Texts = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	} else {
		d.Texts = notify.Noop{}
		logger.Info().Msg("twilio not configured, using noop text sender")
	}

	if cfg.SendGridAPIKey != "" {
		d.Mail = notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromMail)
	} else {
		d.Mail = notify.Noop{}
		logger.Info().Msg("sendgrid not configured, using noop mailer")
	}
	return d
}
