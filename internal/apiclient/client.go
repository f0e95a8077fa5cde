// Package apiclient talks to the reframe backend over HTTP.
//
// Client implements uploader.Uploader and workflow.Reframer, so the command
// line tool drives the same workflow controller as the server, one hop further
// from the vendors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
)

const (
	// DefaultBaseURL is where a locally started backend listens.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds each request to the backend.
	DefaultTimeout = 180 * time.Second
)

// Static errors for backend calls.
var (
	// ErrBaseURLRequired is returned when the backend URL is empty.
	ErrBaseURLRequired = errors.New("backend URL is required")
	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrRequestFailed is returned for other non-success responses and transport errors.
	ErrRequestFailed = errors.New("backend request failed")
)

// HTTPError is a non-success answer from the backend.
// Message is the text shown to the user; Reason is the matching sentinel.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Reason     error
}

func (e *HTTPError) Error() string { return e.Message }

func (e *HTTPError) Unwrap() error { return e.Reason }

// ComponentHealth is the reachability of one backend dependency.
type ComponentHealth struct {
	Name   string
	Status string
	OK     bool
}

// Client is an HTTP client for the reframe backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type uploadRequest struct {
	MIMEType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
	FileName   string `json:"fileName"`
	Prefix     string `json:"prefix,omitempty"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Message  string `json:"message"`
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type reframeRequest struct {
	VideoURL    string `json:"video_url"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

type reframeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

type statusResponse struct {
	JobID        string   `json:"job_id"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress"`
	ResultURL    string   `json:"result_url"`
	ErrorMessage string   `json:"error_message"`
	CreatedAt    string   `json:"created_at"`
	CompletedAt  string   `json:"completed_at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Upload sends the video to POST /api/v1/upload.
func (c *Client) Upload(ctx context.Context, req uploader.Request) (uploader.Result, error) {
	var resp uploadResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/upload", uploadRequest{
		MIMEType:   req.MIMEType,
		Base64Data: base64.StdEncoding.EncodeToString(req.Data),
		FileName:   req.FileName,
		Prefix:     req.Prefix,
	}, &resp)
	if err != nil {
		return uploader.Result{}, err
	}
	return uploader.Result{
		Success:  resp.Success,
		URL:      resp.URL,
		Message:  resp.Message,
		FileID:   resp.FileID,
		FileSize: resp.FileSize,
	}, nil
}

// Healthy reports whether the backend's upload vendor is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	status, _, err := c.vendorHealth(ctx, "/api/v1/upload/health")
	return err == nil && status == "healthy"
}

// Submit sends a reframe request to POST /api/v1/reframe.
func (c *Client) Submit(ctx context.Context, req job.SubmitRequest) (job.Submission, error) {
	var resp reframeResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/reframe", reframeRequest{
		VideoURL:    req.VideoURL,
		Prompt:      req.Prompt,
		AspectRatio: string(req.AspectRatio),
	}, &resp)
	if err != nil {
		return job.Submission{}, err
	}
	sub := job.Submission{
		Success:   resp.Success,
		JobID:     resp.JobID,
		ResultURL: resp.ResultURL,
		Message:   resp.Message,
	}
	if resp.Status != "" {
		sub.Status = job.ParseStatus(resp.Status)
	}
	return sub, nil
}

// Status fetches GET /api/v1/reframe/status/{job_id}.
func (c *Client) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/reframe/status/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return job.StatusReport{}, err
	}
	return job.StatusReport{
		JobID:        resp.JobID,
		Status:       job.ParseStatus(resp.Status),
		Progress:     resp.Progress,
		ResultURL:    resp.ResultURL,
		ErrorMessage: resp.ErrorMessage,
		CreatedAt:    resp.CreatedAt,
		CompletedAt:  resp.CompletedAt,
	}, nil
}

// Health checks the backend and both vendors behind it.
// It never fails; unreachable components are reported as such.
func (c *Client) Health(ctx context.Context) []ComponentHealth {
	components := make([]ComponentHealth, 0, 3)

	var health struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		components = append(components, ComponentHealth{Name: "backend", Status: "unreachable"})
	} else {
		components = append(components, ComponentHealth{Name: "backend", Status: health.Status, OK: health.Status == "healthy"})
	}

	for _, path := range []string{"/api/v1/upload/health", "/api/v1/reframe/health"} {
		status, vendors, err := c.vendorHealth(ctx, path)
		if err != nil {
			components = append(components, ComponentHealth{Name: path, Status: "unreachable"})
			continue
		}
		for name, state := range vendors {
			components = append(components, ComponentHealth{Name: name, Status: state, OK: status == "healthy"})
		}
	}
	return components
}

// vendorHealth returns the overall status and every "<vendor>_api" entry.
func (c *Client) vendorHealth(ctx context.Context, path string) (string, map[string]string, error) {
	var raw map[string]any
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return "", nil, err
	}
	vendors := make(map[string]string)
	for k, v := range raw {
		if name, ok := strings.CutSuffix(k, "_api"); ok {
			if s, ok := v.(string); ok {
				vendors[name] = s
			}
		}
	}
	status, _ := raw["status"].(string)
	return status, vendors, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := newHTTPError(resp.StatusCode, data)
		c.logger.Debug("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", httpErr.Code),
		)
		return httpErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRequestFailed, err)
	}
	return nil
}

// newHTTPError maps a backend status to the message shown to users.
func newHTTPError(status int, body []byte) *HTTPError {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	e := &HTTPError{StatusCode: status, Code: er.Code, Message: er.Error}

	switch {
	case status == http.StatusRequestEntityTooLarge:
		e.Reason = validation.ErrFileTooLarge
		e.Message = "File too large. Maximum size is 100MB."
	case status == http.StatusUnsupportedMediaType:
		e.Reason = validation.ErrUnsupportedFormat
		e.Message = "Invalid file format or dimensions. Please use MP4, WebM or MOV."
	case status == http.StatusUnprocessableEntity:
		switch er.Code {
		case "LOAD_FAILED":
			e.Reason = validation.ErrLoadFailed
		default:
			e.Reason = validation.ErrDimensionMismatch
		}
		if e.Message == "" {
			e.Message = "Invalid file format or dimensions."
		}
	case status >= http.StatusInternalServerError:
		e.Reason = ErrServer
		e.Message = "Server error. Please try again later."
	case status == http.StatusNotFound:
		e.Reason = ErrNotFound
		if e.Message == "" {
			e.Message = "Not found."
		}
	default:
		e.Reason = ErrRequestFailed
		if e.Message == "" {
			e.Message = fmt.Sprintf("Request failed with status %d", status)
		}
	}
	return e
}
