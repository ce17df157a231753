package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/augur/internal/app"
	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/augur/pkg/config"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

// The worker applies approved payments from RabbitMQ to the ledger.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.LogConfigFor("", "info")).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel)).
		With(observability.ModuleKey, "worker")

	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is required for the worker")
		os.Exit(1)
	}

	container, err := app.NewWorkerContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize worker", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:    cfg.RabbitMQURL,
		Logger: logger,
	}, container.Registry)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	if err := consumer.RegisterConsumer(entapp.NewPaymentConsumer(container.Entitlements)); err != nil {
		logger.Error("failed to bind payment consumer", "error", err)
		os.Exit(1)
	}
	container.Health.Register("consumer", observability.PingChecker("consumer", true, consumer.Ping))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consumer.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthMux(container),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return healthSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "error", err)
		container.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func healthMux(container *app.Container) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		health := container.Health.Check(checkCtx)
		w.Header().Set("Content-Type", "application/json")
		if health.Status == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
	return mux
}
