package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"deduper/internal/bus"
	"deduper/internal/canonical"
	"deduper/internal/catalog"
	"deduper/internal/config"
	"deduper/internal/dispatcher"
	"deduper/internal/gate"
	"deduper/internal/handlers"
	"deduper/internal/instrumentation"
	"deduper/internal/logging"
	"deduper/internal/pipeline"
)

// store is a gate backend the process owns.
type store interface {
	gate.Store
	io.Closer
}

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID)
	slog.SetDefault(logger)

	policy, err := gate.ParsePolicy(cfg.CacheFailurePolicy)
	if err != nil {
		logger.Error("invalid cache failure policy", "error", err)
		os.Exit(1)
	}

	logger.Info("deduper_starting",
		"cache_backend", cfg.CacheBackend,
		"failure_policy", policy.String(),
		"incoming_nats", cfg.IncomingNATSURL,
		"outgoing_nats", cfg.OutgoingNATSURL,
		"queue_group", cfg.NATSQueueGroup,
		"order_ttl", cfg.OrderTTL,
		"history_ttl", cfg.HistoryTTL,
		"history_day_ttl", cfg.HistoryDayTTL,
	)

	if err := run(cfg, policy, instanceID, logger); err != nil {
		logger.Error("deduper_failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}

	logger.Info("deduper_stopped")
}

func run(cfg *config.Config, policy gate.Policy, instanceID string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := instrumentation.NewMetrics(registry)

	items := loadCatalog(ctx, cfg.ItemCatalogURL, logger)

	var err error
	aliases := canonical.DefaultAliases()
	if cfg.LocationAliasesFile != "" {
		aliases, err = canonical.LoadAliases(cfg.LocationAliasesFile)
		if err != nil {
			return fmt.Errorf("load location aliases: %w", err)
		}
		logger.Info("location_aliases_loaded", "path", cfg.LocationAliasesFile, "aliases", len(aliases))
	}

	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	admissions := gate.New(st, policy, metrics, logger)

	outgoing, err := bus.Connect(cfg.OutgoingNATSURL, "deduper-out-"+instanceID, logger)
	if err != nil {
		return fmt.Errorf("outgoing bus: %w", err)
	}
	defer outgoing.Close()

	incoming, err := bus.Connect(cfg.IncomingNATSURL, "deduper-in-"+instanceID, logger)
	if err != nil {
		return fmt.Errorf("incoming bus: %w", err)
	}
	defer incoming.Close()

	ttls := pipeline.TTLs{
		Orders:     cfg.OrderTTL,
		History:    cfg.HistoryTTL,
		HistoryDay: cfg.HistoryDayTTL,
		MapData:    cfg.MapTTL,
		GoldPrices: cfg.GoldTTL,
	}
	pipe := pipeline.New(canonical.New(aliases, items), admissions, outgoing, ttls, metrics, logger)

	disp := dispatcher.New(dispatcher.Config{
		QueueGroup:    cfg.NATSQueueGroup,
		HandleTimeout: cfg.HandleTimeout,
	}, incoming, pipe, metrics, logger)

	if err := disp.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Instance: instanceID,
			Cache:    admissions,
			Conns: map[string]handlers.ConnStatus{
				"nats_incoming": incoming,
				"nats_outgoing": outgoing,
			},
			Gatherer:     registry,
			CheckTimeout: cfg.CacheTimeout,
		}, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("deduper_running", "status", "healthy")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop intake first so in-flight messages still reach the outgoing bus.
	if err := disp.Stop(shutdownCtx); err != nil {
		logger.Warn("dispatcher_drain_incomplete", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	return runErr
}

func newStore(cfg *config.Config, logger *slog.Logger) (store, error) {
	switch cfg.CacheBackend {
	case "memory":
		logger.Warn("memory_cache_backend", "note", "admissions are not shared across replicas")
		return gate.NewMemoryStore(time.Minute), nil
	default:
		s, err := gate.NewRedisStore(gate.RedisOptions{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			Timeout:  cfg.CacheTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return s, nil
	}
}

// loadCatalog fetches the item catalog. A missing catalog only leaves
// history item names unset.
func loadCatalog(ctx context.Context, url string, logger *slog.Logger) *catalog.Catalog {
	if url == "" || url == "off" {
		logger.Info("catalog_disabled")
		return catalog.Empty()
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	items, err := catalog.Fetch(ctx, nil, url, logger)
	if err != nil {
		logger.Warn("catalog_unavailable", "url", url, "error", err)
		return catalog.Empty()
	}
	return items
}
