package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/app"
	"crowd-safety-service/internal/config"
	"crowd-safety-service/internal/directory"
	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/events"
	httpapi "crowd-safety-service/internal/http"
	"crowd-safety-service/internal/observability"
	"crowd-safety-service/internal/observability/logging"
	"crowd-safety-service/internal/router"
	"crowd-safety-service/internal/session"
	"crowd-safety-service/internal/store"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application startup failed")
	}

	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
		Timeout:   cfg.Kafka.Timeout,
	})
	defer publisher.Close()

	var (
		eventStore store.EventStore
		ledger     dispatch.Ledger
		sessions   session.Store
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable")
		}
		defer client.Close()

		eventStore = store.NewRedisStore(client, 5*time.Second)
		ledger = dispatch.NewRedisLedger(client, cfg.Redis.Retention)
		sessions = session.NewRedisStore(client, cfg.Session.HistoryCap)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis-backed event store, dedup ledger and sessions")
	} else {
		eventStore = store.NewMemoryStore()
		ledger = dispatch.NewMemoryLedger(cfg.Redis.Retention)
		sessions = session.NewMemoryStore(cfg.Session.HistoryCap)
		log.Info().Msg("Redis disabled, using in-memory event store, dedup ledger and sessions")
	}

	engine := dispatch.NewEngine(ledger, publisher, cfg.Dispatch.Cooldown)
	lookup := directory.NewStaticLookup()

	rt := router.New(eventStore, engine, sessions, lookup, router.Config{
		HistoryLimit:    cfg.Dispatch.HistoryLimit,
		DefaultLocation: cfg.Dispatch.DefaultLocation,
	})

	obsServer := observability.NewServer(":" + cfg.Service.MetricsPort)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      httpapi.NewRouter(rt, engine),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", apiServer.Addr).Msg("Crowd safety service started")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
	application.Shutdown()
}
