package picadabra

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
)

func TestNewClient(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewClient("")
		assert.ErrorIs(t, err, ErrAPIKeyRequired)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := NewClient("key")
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, 60*time.Second, c.httpClient.Timeout)
	})

	t.Run("base url trailing slash trimmed", func(t *testing.T) {
		c, err := NewClient("key", WithBaseURL("http://example.test/"))
		require.NoError(t, err)
		assert.Equal(t, "http://example.test", c.baseURL)
	})
}

func TestHTTPClient_Upload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/file-upload", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "video/mp4", body["mimeType"])
			assert.Equal(t, "AAAA", body["base64Data"])
			assert.Equal(t, "uploads/videos", body["prefix"])
			assert.Equal(t, "sample.mp4", body["fileName"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"url":"https://cdn.example.test/uploads/videos/abc123.mp4"}`))
		}))
		defer server.Close()

		c, err := NewClient("test-key", WithBaseURL(server.URL))
		require.NoError(t, err)

		res, err := c.Upload(context.Background(), UploadRequest{
			MIMEType:   "video/mp4",
			Base64Data: "AAAA",
			FileName:   "sample.mp4",
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "https://cdn.example.test/uploads/videos/abc123.mp4", res.URL)
		assert.Equal(t, "abc123", res.FileID)
	})

	t.Run("refused upload is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"url":"","message":"quota exceeded"}`))
		}))
		defer server.Close()

		c, _ := NewClient("k", WithBaseURL(server.URL))
		res, err := c.Upload(context.Background(), UploadRequest{MIMEType: "video/mp4", Base64Data: "AAAA"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "quota exceeded", res.Message)
	})

	t.Run("success without url is refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer server.Close()

		c, _ := NewClient("k", WithBaseURL(server.URL))
		res, err := c.Upload(context.Background(), UploadRequest{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Upload failed", res.Message)
	})

	t.Run("non-200 is api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad key"))
		}))
		defer server.Close()

		c, _ := NewClient("k", WithBaseURL(server.URL))
		_, err := c.Upload(context.Background(), UploadRequest{})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "bad key", apiErr.Body)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		c, _ := NewClient("k", WithBaseURL(server.URL), WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
		_, err := c.Upload(context.Background(), UploadRequest{})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		c, _ := NewClient("k", WithBaseURL(addr))
		_, err := c.Upload(context.Background(), UploadRequest{})
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
}

func TestHTTPClient_Health(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	c, _ := NewClient("k", WithBaseURL(healthy.URL))
	assert.True(t, c.Health(context.Background()))

	c, _ = NewClient("k", WithBaseURL(down.URL))
	assert.False(t, c.Health(context.Background()))
}

func TestExtractFileID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api-test.picadabra.ai/uploads/videos/file_id.mp4", "file_id"},
		{"https://cdn.test/uploads/videos/noext", "noext"},
		{"https://cdn.test/videos/file.mp4", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractFileID(tt.url), tt.url)
	}
}
