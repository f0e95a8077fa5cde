package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/reframe-api/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// RateLimitPerMinute and RateLimitPerHour bound requests per client IP.
	// Zero disables the window.
	RateLimitPerMinute int
	RateLimitPerHour   int
	// TrustedProxies are the peers allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies TrustedProxies
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 60,
		RateLimitPerHour:   1000,
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/upload", h.Upload)
	mux.HandleFunc("GET /api/v1/upload/health", h.UploadHealth)

	mux.HandleFunc("POST /api/v1/reframe", h.Reframe)
	mux.HandleFunc("GET /api/v1/reframe/health", h.ReframeHealth)
	mux.HandleFunc("GET /api/v1/reframe/status/{job_id}", h.JobStatus)
	mux.HandleFunc("POST /api/v1/reframe/wait/{job_id}", h.WaitForJob)
	mux.HandleFunc("GET /api/v1/reframe/jobs", h.ListJobs)
	mux.HandleFunc("DELETE /api/v1/reframe/jobs/{job_id}", h.DeleteJob)

	mux.HandleFunc("POST /api/v1/process", h.StartProcess)
	mux.HandleFunc("GET /api/v1/process/{session_id}", h.GetProcess)
	mux.HandleFunc("DELETE /api/v1/process/{session_id}", h.DeleteProcess)

	var limiter *RateLimiter
	if cfg.RateLimitPerMinute > 0 || cfg.RateLimitPerHour > 0 {
		limiter = NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerHour)
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
		RateLimitMiddleware(limiter, cfg.TrustedProxies, logger, "/health", "/metrics"),
	)

	return chain(mux)
}
