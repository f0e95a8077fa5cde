package apiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
	"github.com/maauso/reframe-api/internal/workflow"
)

var (
	_ uploader.Uploader = (*Client)(nil)
	_ workflow.Reframer = (*Client)(nil)
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/upload", r.URL.Path)

		var body uploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "video/mp4", body.MIMEType)
		assert.Equal(t, "clip.mp4", body.FileName)
		decoded, err := base64.StdEncoding.DecodeString(body.Base64Data)
		require.NoError(t, err)
		assert.Equal(t, "bytes", string(decoded))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"url":"https://cdn/x.mp4","message":"ok","file_id":"x","file_size":5}`))
	})

	res, err := c.Upload(context.Background(), uploader.Request{FileName: "clip.mp4", MIMEType: "video/mp4", Data: []byte("bytes")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://cdn/x.mp4", res.URL)
	assert.Equal(t, int64(5), res.FileSize)
}

func TestUpload_Refused(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Quota exceeded"}`))
	})

	res, err := c.Upload(context.Background(), uploader.Request{FileName: "a.mp4", MIMEType: "video/mp4", Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Quota exceeded", res.Message)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantReason  error
		wantMessage string
	}{
		{
			name:        "too large",
			status:      http.StatusRequestEntityTooLarge,
			body:        `{"error":"File size exceeds","code":"FILE_TOO_LARGE"}`,
			wantReason:  validation.ErrFileTooLarge,
			wantMessage: "File too large. Maximum size is 100MB.",
		},
		{
			name:        "unsupported",
			status:      http.StatusUnsupportedMediaType,
			body:        `{"error":"Unsupported","code":"UNSUPPORTED_FORMAT"}`,
			wantReason:  validation.ErrUnsupportedFormat,
			wantMessage: "Invalid file format or dimensions. Please use MP4, WebM or MOV.",
		},
		{
			name:        "dimensions",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":"Video must be exactly 512x512 pixels (got 640x480)","code":"DIMENSION_MISMATCH"}`,
			wantReason:  validation.ErrDimensionMismatch,
			wantMessage: "Video must be exactly 512x512 pixels (got 640x480)",
		},
		{
			name:        "load failure",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":"Failed to load video","code":"LOAD_FAILED"}`,
			wantReason:  validation.ErrLoadFailed,
			wantMessage: "Failed to load video",
		},
		{
			name:        "server error",
			status:      http.StatusBadGateway,
			body:        `{"error":"picadabra request failed","code":"VENDOR_ERROR"}`,
			wantReason:  ErrServer,
			wantMessage: "Server error. Please try again later.",
		},
		{
			name:        "bad request",
			status:      http.StatusBadRequest,
			body:        `{"error":"invalid base64 video data","code":"INVALID_BASE64"}`,
			wantReason:  ErrRequestFailed,
			wantMessage: "invalid base64 video data",
		},
		{
			name:        "empty body",
			status:      http.StatusTeapot,
			wantReason:  ErrRequestFailed,
			wantMessage: "Request failed with status 418",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Upload(context.Background(), uploader.Request{FileName: "a.mp4", MIMEType: "video/mp4", Data: []byte("x")})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantReason)
			assert.Equal(t, tt.wantMessage, err.Error())

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
}

func TestSubmitAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/reframe":
			var body reframeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "9:16", body.AspectRatio)
			_, _ = w.Write([]byte(`{"success":true,"message":"submitted","job_id":"req-1","status":"submitted"}`))
		case "/api/v1/reframe/status/req-1":
			_, _ = w.Write([]byte(`{"job_id":"req-1","status":"in_progress","progress":0.5}`))
		default:
			http.NotFound(w, r)
		}
	})

	sub, err := c.Submit(context.Background(), job.SubmitRequest{
		VideoURL:    "https://cdn/x.mp4",
		Prompt:      "p",
		AspectRatio: job.AspectPortrait,
	})
	require.NoError(t, err)
	assert.True(t, sub.Success)
	assert.Equal(t, "req-1", sub.JobID)
	assert.Equal(t, job.StatusSubmitted, sub.Status)

	report, err := c.Status(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, report.Status)
	require.NotNil(t, report.Progress)
	assert.InDelta(t, 0.5, *report.Progress, 1e-9)

	_, err = c.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"healthy","service":"video-reframe-api","version":"1.0.0"}`))
		case "/api/v1/upload/health":
			_, _ = w.Write([]byte(`{"status":"healthy","picadabra_api":"healthy","details":{"picadabra_accessible":true}}`))
		case "/api/v1/reframe/health":
			_, _ = w.Write([]byte(`{"status":"degraded","fal_api":"unhealthy","details":{"fal_accessible":false}}`))
		}
	})

	components := c.Health(context.Background())
	require.Len(t, components, 3)
	assert.Equal(t, ComponentHealth{Name: "backend", Status: "healthy", OK: true}, components[0])
	assert.Equal(t, ComponentHealth{Name: "picadabra", Status: "healthy", OK: true}, components[1])
	assert.Equal(t, ComponentHealth{Name: "fal", Status: "unhealthy", OK: false}, components[2])

	assert.True(t, c.Healthy(context.Background()))
}
