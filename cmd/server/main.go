package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpHandlers "github.com/JeanGrijp/api-guardian/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/api-guardian/internal/adapters/http/middleware"
	fallbackstorage "github.com/JeanGrijp/api-guardian/internal/adapters/storage/fallback"
	memorystorage "github.com/JeanGrijp/api-guardian/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/api-guardian/internal/adapters/storage/redis"
	"github.com/JeanGrijp/api-guardian/internal/config"
	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
	"github.com/JeanGrijp/api-guardian/internal/core/services"
	"github.com/JeanGrijp/api-guardian/internal/observability"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	clock := clockwork.NewRealClock()
	recorder := observability.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	local := memorystorage.New(clock, cfg.Storage.SweepInterval)
	defer local.Stop()

	storage, closeFn, err := initStorage(cfg.Storage, local, logger, recorder)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}
	defer closeFn()

	evaluator := services.NewEvaluator(storage, clock)

	resolver, err := services.NewTierResolver(evaluator, services.DefaultTiers(
		toPolicyTable(cfg.Tiers.IP),
		toPolicyTable(cfg.Tiers.User),
		toPolicyTable(cfg.Tiers.Org),
		toPolicyTable(cfg.Tiers.APIKey),
	))
	if err != nil {
		logger.Fatal("failed to create tier resolver", zap.Error(err))
	}

	quarantine, err := services.NewQuarantineManager(storage, clock, logger, services.QuarantineConfig{
		Threshold:     cfg.Quarantine.Threshold,
		Window:        cfg.Quarantine.Window,
		BlockDuration: cfg.Quarantine.BlockDuration,
	})
	if err != nil {
		logger.Fatal("failed to create quarantine manager", zap.Error(err))
	}

	admission, err := services.NewAdmissionService(quarantine, resolver, storage, clock, logger, recorder, services.Config{
		Timeout:    cfg.Admission.Timeout,
		FailClosed: cfg.Admission.FailClosed,
	})
	if err != nil {
		logger.Fatal("failed to create admission service", zap.Error(err))
	}

	admit := func(action string) func(http.Handler) http.Handler {
		return httpMiddleware.NewAdmissionMiddleware(admission, action, logger)
	}

	r := chi.NewRouter()
	r.With(admit("api_call")).Get("/ping", httpHandlers.PingHandler)
	r.With(admit("login")).Post("/login", httpHandlers.PingHandler)
	r.With(admit("file_upload")).Post("/upload", httpHandlers.PingHandler)
	r.Route("/admin", httpHandlers.NewAdminHandler(admission, logger).Routes)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	logger.Info("server started", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Type))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func initStorage(cfg config.StorageConfig, local *memorystorage.Storage, logger *zap.Logger, recorder ports.MetricsRecorder) (ports.Storage, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		primary, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		storage := fallbackstorage.New(primary, local, logger, recorder)
		return storage, func() {
			if err := primary.Close(); err != nil {
				logger.Error("failed to close redis storage", zap.Error(err))
			}
		}, nil
	case "memory":
		return local, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func toPolicyTable(tier config.TierConfig) services.PolicyTable {
	return services.PolicyTable{
		Default: tier.Default,
		Actions: clonePolicies(tier.Actions),
	}
}

func clonePolicies(src map[string]domain.Policy) map[string]domain.Policy {
	if src == nil {
		return nil
	}
	clone := make(map[string]domain.Policy, len(src))
	for k, v := range src {
		clone[k] = v
	}
	return clone
}
