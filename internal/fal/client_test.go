package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reframe-api/internal/job"
)

const modelPath = "/models/fal-ai/luma-dream-machine/ray-2-flash/reframe"

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)

	c, err := NewClient("key", WithModel("/fal-ai/other/"), WithTimeouts(time.Second, 0))
	require.NoError(t, err)
	assert.Equal(t, "fal-ai/other", c.model)
	assert.Equal(t, time.Second, c.submitTimeout)
	assert.Equal(t, 30*time.Second, c.statusTimeout)
}

func TestHTTPClient_Submit(t *testing.T) {
	req := job.SubmitRequest{
		VideoURL:    "https://cdn.example.test/uploads/videos/sample.mp4",
		Prompt:      "Focus on the main subject",
		AspectRatio: job.AspectLandscape,
	}

	t.Run("queued", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, modelPath+"/api", r.URL.Path)
			assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, req.VideoURL, body["video_url"])
			assert.Equal(t, req.Prompt, body["prompt"])
			assert.Equal(t, "16:9", body["aspect_ratio"])
			assert.Equal(t, true, body["enable_safety_checker"])
			assert.Equal(t, "mp4", body["output_format"])

			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"request_id":"req-123"}`))
		})

		sub, err := c.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, sub.Success)
		assert.Equal(t, "req-123", sub.JobID)
		assert.Equal(t, job.StatusSubmitted, sub.Status)
	})

	t.Run("completed immediately", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"video_url":"https://cdn.example.test/out.mp4"}`))
		})

		sub, err := c.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, sub.Success)
		assert.Empty(t, sub.JobID)
		assert.Equal(t, job.StatusCompleted, sub.Status)
		assert.Equal(t, "https://cdn.example.test/out.mp4", sub.ResultURL)
	})

	t.Run("unexpected body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"detail":"hmm"}`))
		})

		sub, err := c.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, sub.Success)
		assert.Equal(t, "Unexpected API response format", sub.Message)
	})

	t.Run("http error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"bad video"}`))
		})

		_, err := c.Submit(context.Background(), req)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	})

	t.Run("server error is not retried", func(t *testing.T) {
		calls := 0
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := c.Submit(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestHTTPClient_Status(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   job.Status
		progress *float64
		result   string
		errMsg   string
	}{
		{
			name:   "queued",
			body:   `{"status":"IN_QUEUE"}`,
			status: job.StatusQueued,
		},
		{
			name:     "in progress defaults progress",
			body:     `{"status":"IN_PROGRESS"}`,
			status:   job.StatusRunning,
			progress: ptr(0.5),
		},
		{
			name:     "in progress with progress",
			body:     `{"status":"IN_PROGRESS","progress":0.8}`,
			status:   job.StatusRunning,
			progress: ptr(0.8),
		},
		{
			name:   "completed with video_url",
			body:   `{"status":"COMPLETED","video_url":"https://cdn.test/out.mp4","created_at":"2026-10-18T10:00:00Z","completed_at":"2026-10-18T10:01:00Z"}`,
			status: job.StatusCompleted,
			result: "https://cdn.test/out.mp4",
		},
		{
			name:   "completed with video object",
			body:   `{"status":"COMPLETED","video":{"url":"https://cdn.test/nested.mp4"}}`,
			status: job.StatusCompleted,
			result: "https://cdn.test/nested.mp4",
		},
		{
			name:   "failed with error",
			body:   `{"status":"FAILED","error":"safety checker rejected input"}`,
			status: job.StatusFailed,
			errMsg: "safety checker rejected input",
		},
		{
			name:   "failed without error",
			body:   `{"status":"FAILED"}`,
			status: job.StatusFailed,
			errMsg: "Job failed without error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, modelPath+"/requests/req-123", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			report, err := c.Status(context.Background(), "req-123")
			require.NoError(t, err)
			assert.Equal(t, "req-123", report.JobID)
			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, tt.result, report.ResultURL)
			assert.Equal(t, tt.errMsg, report.ErrorMessage)
			if tt.progress == nil {
				assert.Nil(t, report.Progress)
			} else {
				require.NotNil(t, report.Progress)
				assert.InDelta(t, *tt.progress, *report.Progress, 1e-9)
			}
		})
	}
}

func TestHTTPClient_Status_Timestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"COMPLETED","created_at":"2026-10-18T10:00:00Z","completed_at":1760781660}`))
	})

	report, err := c.Status(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T10:00:00Z", report.CreatedAt)
	assert.Equal(t, "1760781660", report.CompletedAt)
}

func TestHTTPClient_Status_Errors(t *testing.T) {
	t.Run("job id required", func(t *testing.T) {
		c, _ := NewClient("k")
		_, err := c.Status(context.Background(), "")
		assert.ErrorIs(t, err, ErrJobIDRequired)
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.Status(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.Status(context.Background(), "req")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		c, _ := NewClient("k", WithBaseURL(server.URL), WithTimeouts(0, 20*time.Millisecond))
		_, err := c.Status(context.Background(), "req")
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestHTTPClient_Health(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, c.Health(context.Background()))

	c = newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.False(t, c.Health(context.Background()))
}

func ptr(f float64) *float64 { return &f }
