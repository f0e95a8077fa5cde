package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/reframe-api/internal/fal"
	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/picadabra"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
	"github.com/maauso/reframe-api/internal/workflow"
)

// SessionHeader carries the workflow session identifier.
const SessionHeader = "X-Session-ID"

// bodySlack is added to the encoded size limit for the JSON envelope.
const bodySlack = 64 << 10

// Reframer is the reframe service as seen by the HTTP layer.
type Reframer interface {
	workflow.Reframer
	Health(ctx context.Context) bool
}

// Services are the collaborators the handlers delegate to.
type Services struct {
	Uploader uploader.Uploader
	// UploadBackend names the upload vendor in health responses ("picadabra", "s3").
	UploadBackend string
	Reframer      Reframer
	Gate          *validation.Gate
	Jobs          job.Repository
	Sessions      *workflow.SessionStore
	Workflow      *workflow.Controller
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	svc                Services
	validator          *validator.Validate
	logger             *slog.Logger
	wait               workflow.WaitOptions
	maxBodyBytes       int64
	service            string
	version            string
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, StartProcess runs the workflow inline and responds once it ends.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithWaitDefaults sets the wait budget used when a request does not pass one.
func WithWaitDefaults(opts workflow.WaitOptions) HandlerOption {
	return func(h *Handlers) {
		if opts.MaxWait > 0 {
			h.wait.MaxWait = opts.MaxWait
		}
		if opts.PollInterval > 0 {
			h.wait.PollInterval = opts.PollInterval
		}
	}
}

// WithServiceInfo sets the name and version reported by the health endpoint.
func WithServiceInfo(name, version string) HandlerOption {
	return func(h *Handlers) {
		h.service = name
		h.version = version
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if svc.UploadBackend == "" {
		svc.UploadBackend = "upload"
	}
	maxSize := validation.DefaultLimits().MaxSize
	if svc.Gate != nil {
		maxSize = svc.Gate.Limits().MaxSize
	}
	h := &Handlers{
		svc:                svc,
		validator:          validator.New(),
		logger:             logger,
		wait:               workflow.DefaultWaitOptions(),
		maxBodyBytes:       int64(base64.StdEncoding.EncodedLen(int(maxSize))) + bodySlack,
		service:            "video-reframe-api",
		version:            "dev",
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	})
}

// UploadHealth handles GET /api/v1/upload/health requests.
func (h *Handlers) UploadHealth(w http.ResponseWriter, r *http.Request) {
	h.vendorHealth(w, r, h.svc.UploadBackend, h.svc.Uploader.Healthy)
}

// ReframeHealth handles GET /api/v1/reframe/health requests.
func (h *Handlers) ReframeHealth(w http.ResponseWriter, r *http.Request) {
	h.vendorHealth(w, r, "fal", h.svc.Reframer.Health)
}

func (h *Handlers) vendorHealth(w http.ResponseWriter, r *http.Request, vendor string, check func(context.Context) bool) {
	ok := check(r.Context())
	resp := VendorHealthResponse{
		Status:  "healthy",
		Vendor:  vendor,
		State:   "healthy",
		Details: map[string]bool{vendor + "_accessible": ok},
	}
	if !ok {
		resp.Status = "degraded"
		resp.State = "unhealthy"
		h.logger.Warn("vendor health check failed", slog.String("vendor", vendor))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody reads and validates a JSON request body into dst.
// It writes the error response itself and reports whether decoding succeeded.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "REQUEST_TOO_LARGE")
			return false
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeValidationError maps a gate rejection to its HTTP status.
func (h *Handlers) writeValidationError(w http.ResponseWriter, err error) {
	h.logger.Info("video rejected", slog.String("reason", err.Error()))

	switch {
	case errors.Is(err, validation.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error(), "UNSUPPORTED_FORMAT")
	case errors.Is(err, validation.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, validation.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, err.Error(), "EMPTY_FILE")
	case errors.Is(err, validation.ErrDimensionMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "DIMENSION_MISMATCH")
	case errors.Is(err, validation.ErrLoadFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "LOAD_FAILED")
	case errors.Is(err, validation.ErrInspectionUnavailable):
		h.logger.Error("video inspection unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "video inspection is unavailable", "INSPECTION_UNAVAILABLE")
	default:
		writeError(w, http.StatusInternalServerError, "failed to validate video", "VALIDATION_FAILED")
	}
}

// writeVendorError maps an upstream failure to its HTTP status.
func (h *Handlers) writeVendorError(w http.ResponseWriter, vendor string, err error) {
	h.logger.Error("vendor request failed",
		slog.String("vendor", vendor),
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, fal.ErrJobNotFound), errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, picadabra.ErrTimeout),
		errors.Is(err, fal.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, vendor+" request timed out", "VENDOR_TIMEOUT")
	default:
		writeError(w, http.StatusBadGateway, vendor+" request failed: "+err.Error(), "VENDOR_ERROR")
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
