package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache is the read side of the dedup cache.
type Cache interface {
	Pinger
	AdmissionReader
}

// RouterConfig wires the operational HTTP surface.
type RouterConfig struct {
	Instance     string
	Cache        Cache
	Conns        map[string]ConnStatus
	Gatherer     prometheus.Gatherer
	CheckTimeout time.Duration
}

// NewRouter builds the chi router serving /health, /metrics and
// /admissions/{key}.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", HealthCheckHandler(cfg.Instance, cfg.Cache, cfg.Conns, cfg.CheckTimeout, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Method(http.MethodGet, "/admissions/{key}", NewAdmissionHandler(cfg.Cache, logger))

	return r
}
