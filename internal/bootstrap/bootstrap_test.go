package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reframe-api/internal/config"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		FalAPIKey:              "fal-key",
		FalBaseURL:             "https://fal.example.com",
		FalModel:               "fal-ai/test/reframe",
		PicadabraAPIKey:        "pic-key",
		PicadabraBaseURL:       "https://picadabra.example.com",
		UploadBackend:          config.UploadBackendPicadabra,
		UploadPrefix:           "uploads/videos",
		TempDir:                t.TempDir(),
		MaxFileSize:            1 << 20,
		ValidateDimensions:     true,
		RequiredWidth:          512,
		RequiredHeight:         512,
		DefaultMaxWaitSec:      120,
		DefaultPollIntervalSec: 5,
	}
}

func TestNewDependencies_Picadabra(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	svc := deps.Services
	assert.IsType(t, &uploader.PicadabraAdapter{}, svc.Uploader)
	assert.Equal(t, "picadabra", svc.UploadBackend)
	assert.NotNil(t, svc.Reframer)
	assert.NotNil(t, svc.Jobs)
	assert.NotNil(t, svc.Sessions)
	assert.NotNil(t, svc.Workflow)
	require.NotNil(t, svc.Gate)
	assert.Equal(t, int64(1<<20), svc.Gate.Limits().MaxSize)
	assert.Equal(t, 120, int(deps.Wait.MaxWait.Seconds()))
	assert.Equal(t, 5, int(deps.Wait.PollInterval.Seconds()))
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := testConfig(t)
	cfg.UploadBackend = config.UploadBackendS3
	cfg.S3Bucket = "videos"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.IsType(t, &uploader.S3Adapter{}, deps.Services.Uploader)
	assert.Equal(t, "s3", deps.Services.UploadBackend)
}

func TestNewGate_DimensionCheckDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ValidateDimensions = false

	gate := NewGate(cfg, nil)

	// Without probing, any supported container within the size limit passes
	err := gate.Validate(context.Background(), validation.Candidate{
		Name:     "clip.mp4",
		MIMEType: "video/mp4",
		Size:     4,
		Data:     []byte("data"),
	})
	assert.NoError(t, err)
}
