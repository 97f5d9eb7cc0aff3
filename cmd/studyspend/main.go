package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studyspend/internal/bus"
	"studyspend/internal/cache"
	"studyspend/internal/config"
	apphttp "studyspend/internal/http"
	"studyspend/internal/identity"
	applog "studyspend/internal/log"
	"studyspend/internal/session"
	"studyspend/internal/store"
	synchub "studyspend/internal/sync"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer st.Close()

	settings := store.NewCachedSettings(st, cfg.SettingsCacheTTL)
	sweeper := &cache.Sweeper{}
	sweeper.Register(settings)

	hub := synchub.NewHub(st)
	ids := identity.NewService(st, []byte(cfg.JWTSecret), cfg.TokenTTL)
	sessions := session.NewManager(hub, settings, cfg.SessionIdleTimeout)

	// The broker is optional: without it, change fan-out stays in-process.
	var publisher apphttp.ChangePublisher
	var busClient *bus.Client
	if cfg.AMQPURL != "" {
		busClient, err = bus.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		publisher = busClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, ids, sessions, st, hub, publisher)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting studyspend server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sessions.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sweeper.Run(ctx, 10*time.Minute)
		return nil
	})

	if busClient != nil {
		g.Go(func() error {
			err := busClient.ConsumeChanges(ctx, func(ev *bus.ChangeEvent) error {
				return hub.HandleChange(ctx, ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
