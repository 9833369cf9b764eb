package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"push-relay/internal/config"
	delivery "push-relay/internal/delivery/http"
	"push-relay/internal/delivery/websocket"
	"push-relay/internal/domain"
	"push-relay/internal/infrastructure/db"
	"push-relay/internal/infrastructure/fcm"
	"push-relay/internal/infrastructure/logging"
	"push-relay/internal/infrastructure/pubsub"
	"push-relay/internal/repository"
	"push-relay/internal/usecase"
)

func main() {
	cfg, envLoaded, err := config.Load()
	log := logging.New(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("load .env")
	}
	if !envLoaded {
		log.Debug().Msg("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// 1. Push provider; missing credentials degrade to fallback-only mode
	fcmClient, err := fcm.NewClient(ctx, cfg.Firebase, log)
	if err != nil {
		return err
	}

	// 2. Registry and notification sinks
	registry := repository.NewDeviceRegistry()
	hub := websocket.NewHub(log)

	var notificationLog domain.NotificationLog = repository.NewInMemoryNotificationLog(cfg.NotificationLogSize)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		notificationLog = repository.NewPostgresNotificationLog(pool)
		log.Info().Msg("notification log stored in Postgres")
	}

	sinks := []domain.NotificationSink{notificationLog, hub}
	if cfg.RedisURL != "" {
		publisher, err := pubsub.NewRedisPublisher(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info().Str("sink", publisher.Name()).Msg("publishing notifications to Redis")
	}

	// 3. Usecases
	notifications := usecase.NewNotificationUsecase(registry, fcmClient, usecase.DispatcherConfig{
		BatchSize:       cfg.ProviderBatchSize,
		ProviderTimeout: cfg.ProviderTimeout,
		RatePerSec:      cfg.ProviderRatePerSec,
	}, log, sinks...)

	sweeper := usecase.NewSweeper(registry, cfg.StaleAfter, cfg.SweepInterval, log)
	sweeper.Start()

	// 4. Delivery
	router := delivery.NewRouter(delivery.Dependencies{
		Registry:        registry,
		Notifications:   notifications,
		NotificationLog: notificationLog,
		Connections:     hub,
		Realtime:        websocket.NewHandler(hub, log).Handle,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("push_enabled", fcmClient.Enabled()).Msg("push relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			sweeper.Stop(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	sweeper.Stop(shutdownCtx)
	log.Info().Msg("push relay stopped")
	return nil
}
