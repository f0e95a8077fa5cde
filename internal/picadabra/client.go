package picadabra

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
	"path"
	"strings"
	"time"
)

// DefaultBaseURL is the Picadabra API used when no base URL is configured.
const DefaultBaseURL = "https://api-test.picadabra.ai"

// DefaultPrefix is the storage prefix uploads land under.
const DefaultPrefix = "uploads/videos"

// Static errors for Picadabra client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is configured.
	ErrAPIKeyRequired = errors.New("picadabra: API key is required")
	// ErrRequestFailed is returned when the request could not be sent or read.
	ErrRequestFailed = errors.New("picadabra: request failed")
	// ErrTimeout is returned when the upload does not finish in time.
	ErrTimeout = errors.New("picadabra: request timed out")
)

// APIError is returned when Picadabra answers with a non-200 status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("picadabra: upload failed with status %d: %s", e.StatusCode, e.Body)
}

// Client defines the interface for interacting with the Picadabra API.
type Client interface {
	// Upload stores a base64-encoded file and returns its public URL.
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)

	// Health reports whether the API is reachable.
	Health(ctx context.Context) bool
}

// HTTPClient is the HTTP implementation of the Picadabra Client interface.
type HTTPClient struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
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

// WithBaseURL sets a custom base URL for the Picadabra API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		if u != "" {
			hc.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		hc.logger = l
	}
}

// NewClient creates a new Picadabra HTTP client.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		healthTimeout: 10 * time.Second,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Upload sends the file to /api/v1/file-upload.
// A 200 response with success=false is returned as a result, not an error.
func (c *HTTPClient) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if req.Prefix == "" {
		req.Prefix = DefaultPrefix
	}

	body, err := json.Marshal(uploadRequest(req))
	if err != nil {
		return UploadResult{}, fmt.Errorf("picadabra: marshal request: %w", err)
	}

	c.logger.Info("uploading video",
		slog.String("file_name", req.FileName),
		slog.String("mime_type", req.MIMEType),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/file-upload", bytes.NewReader(body))
	if err != nil {
		return UploadResult{}, fmt.Errorf("picadabra: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return UploadResult{}, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return UploadResult{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}

	c.logger.Info("picadabra response", slog.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return UploadResult{}, fmt.Errorf("picadabra: unmarshal response: %w", err)
	}

	if !parsed.Success || parsed.URL == "" {
		msg := parsed.Message
		if msg == "" {
			msg = parsed.Error
		}
		if msg == "" {
			msg = "Upload failed"
		}
		c.logger.Warn("picadabra refused upload", slog.String("message", msg))
		return UploadResult{Success: false, Message: msg}, nil
	}

	return UploadResult{
		Success: true,
		URL:     parsed.URL,
		Message: "Video uploaded successfully",
		FileID:  ExtractFileID(parsed.URL),
	}, nil
}

// Health reports whether GET /health answers 200.
func (c *HTTPClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ExtractFileID returns the file name without extension for URLs under /uploads/.
// Other URLs yield "".
func ExtractFileID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(u.Path, "/uploads/") {
		return ""
	}
	name := path.Base(u.Path)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
