package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// LoggingMiddleware logs all incoming requests.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			// Scrapes and probes are frequent; keep them out of info logs.
			level := slog.LevelInfo
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Pinger reports whether the dedup cache answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnStatus reports a message bus connection.
type ConnStatus interface {
	Connected() bool
	Status() string
}

type healthResponse struct {
	Status   string            `json:"status"`
	Instance string            `json:"instance"`
	Checks   map[string]string `json:"checks"`
}

// HealthCheckHandler reports cache and bus health. Any failing dependency
// turns the response into a 503.
func HealthCheckHandler(instance string, cache Pinger, conns map[string]ConnStatus, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "healthy",
			Instance: instance,
			Checks:   make(map[string]string, len(conns)+1),
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := cache.Ping(ctx); err != nil {
			logger.Warn("health_cache_unreachable", "error", err)
			resp.Checks["cache"] = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Checks["cache"] = "ok"
		}

		for name, conn := range conns {
			if conn.Connected() {
				resp.Checks[name] = "ok"
				continue
			}
			resp.Checks[name] = conn.Status()
			resp.Status = "degraded"
		}

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
