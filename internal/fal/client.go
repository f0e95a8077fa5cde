package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maauso/reframe-api/internal/job"
)

// Defaults for the fal.ai reframe model.
const (
	DefaultBaseURL = "https://fal.ai"
	DefaultModel   = "fal-ai/luma-dream-machine/ray-2-flash/reframe"

	// defaultInProgress is reported when a running job carries no progress.
	defaultInProgress = 0.5
)

// Static errors for fal client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is configured.
	ErrAPIKeyRequired = errors.New("fal: API key is required")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("fal: job ID is required")
	// ErrJobNotFound is returned when the service does not know the job.
	ErrJobNotFound = errors.New("fal: job not found")
	// ErrRequestFailed is returned when the request could not be sent or read.
	ErrRequestFailed = errors.New("fal: request failed")
	// ErrTimeout is returned when a request does not finish in time.
	ErrTimeout = errors.New("fal: request timed out")
)

// APIError is returned when fal answers with an unexpected status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client defines the interface for interacting with the fal reframe model.
type Client interface {
	// Submit queues a reframe job.
	Submit(ctx context.Context, req job.SubmitRequest) (job.Submission, error)

	// Status fetches the current state of a job.
	Status(ctx context.Context, jobID string) (job.StatusReport, error)

	// Health reports whether the API is reachable.
	Health(ctx context.Context) bool
}

// HTTPClient is the HTTP implementation of the fal Client interface.
type HTTPClient struct {
	apiKey        string
	baseURL       string
	model         string
	httpClient    *http.Client
	submitTimeout time.Duration
	statusTimeout time.Duration
	healthTimeout time.Duration
	logger        *slog.Logger
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the fal API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		if u != "" {
			hc.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the model path, e.g. "fal-ai/luma-dream-machine/ray-2-flash/reframe".
func WithModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		if model != "" {
			hc.model = strings.Trim(model, "/")
		}
	}
}

// WithTimeouts overrides the per-call submit and status timeouts.
func WithTimeouts(submit, status time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		if submit > 0 {
			hc.submitTimeout = submit
		}
		if status > 0 {
			hc.statusTimeout = status
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		hc.logger = l
	}
}

// NewClient creates a new fal HTTP client.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		model:         DefaultModel,
		httpClient:    &http.Client{},
		submitTimeout: 120 * time.Second,
		statusTimeout: 30 * time.Second,
		healthTimeout: 10 * time.Second,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Submit queues a reframe job.
// A 2xx answer carrying neither a request ID nor a video URL is reported as
// an unsuccessful Submission rather than an error.
func (c *HTTPClient) Submit(ctx context.Context, req job.SubmitRequest) (job.Submission, error) {
	body, err := json.Marshal(submitRequest{
		VideoURL:            req.VideoURL,
		Prompt:              req.Prompt,
		AspectRatio:         string(req.AspectRatio),
		EnableSafetyChecker: true,
		OutputFormat:        "mp4",
	})
	if err != nil {
		return job.Submission{}, fmt.Errorf("fal: marshal request: %w", err)
	}

	c.logger.Info("submitting reframe job",
		slog.String("video_url", req.VideoURL),
		slog.String("aspect_ratio", string(req.AspectRatio)),
	)

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	status, respBody, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/models/%s/api", c.baseURL, c.model), body)
	if err != nil {
		return job.Submission{}, err
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return job.Submission{}, &APIError{StatusCode: status, Body: string(respBody)}
	}

	var resp submitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return job.Submission{}, fmt.Errorf("fal: unmarshal response: %w", err)
	}

	switch {
	case resp.RequestID != "":
		c.logger.Info("reframe job submitted", slog.String("job_id", resp.RequestID))
		return job.Submission{
			Success: true,
			JobID:   resp.RequestID,
			Status:  job.StatusSubmitted,
			Message: "Reframe job submitted successfully",
		}, nil
	case resp.VideoURL != "":
		c.logger.Info("reframe completed immediately", slog.String("result_url", resp.VideoURL))
		return job.Submission{
			Success:   true,
			Status:    job.StatusCompleted,
			ResultURL: resp.VideoURL,
			Message:   "Video reframed successfully",
		}, nil
	default:
		c.logger.Error("unexpected reframe response", slog.String("body", string(respBody)))
		return job.Submission{Success: false, Message: "Unexpected API response format"}, nil
	}
}

// Status fetches the current state of a job.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	if jobID == "" {
		return job.StatusReport{}, ErrJobIDRequired
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s/requests/%s", c.baseURL, c.model, url.PathEscape(jobID))
	status, respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return job.StatusReport{}, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return job.StatusReport{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	default:
		return job.StatusReport{}, &APIError{StatusCode: status, Body: string(respBody)}
	}

	var resp statusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return job.StatusReport{}, fmt.Errorf("fal: unmarshal response: %w", err)
	}

	raw := resp.Status
	if raw == "" {
		raw = "unknown"
	}

	report := job.StatusReport{
		JobID:       jobID,
		Status:      job.ParseStatus(raw),
		CreatedAt:   string(resp.CreatedAt),
		CompletedAt: string(resp.CompletedAt),
	}

	switch report.Status {
	case job.StatusCompleted:
		report.ResultURL = resp.VideoURL
		if report.ResultURL == "" && resp.Video != nil {
			report.ResultURL = resp.Video.URL
		}
	case job.StatusFailed:
		report.ErrorMessage = resp.Error
		if report.ErrorMessage == "" {
			report.ErrorMessage = "Job failed without error message"
		}
	case job.StatusRunning:
		p := defaultInProgress
		if resp.Progress != nil {
			p = *resp.Progress
		}
		report.Progress = &p
	}

	c.logger.Debug("job status", slog.String("job_id", jobID), slog.String("status", string(report.Status)))
	return report, nil
}

// Health reports whether GET /health answers 200.
func (c *HTTPClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	status, _, err := c.do(ctx, http.MethodGet, c.baseURL+"/health", nil)
	return err == nil && status == http.StatusOK
}

// do performs a single request. There are no retries.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("fal: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}
	return resp.StatusCode, respBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
