// Package bootstrap provides dependency initialization for the Video Reframe API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/reframe-api/internal/config"
	"github.com/maauso/reframe-api/internal/fal"
	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/media"
	"github.com/maauso/reframe-api/internal/picadabra"
	"github.com/maauso/reframe-api/internal/server"
	"github.com/maauso/reframe-api/internal/storage"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
	"github.com/maauso/reframe-api/internal/workflow"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Services server.Services
	Wait     workflow.WaitOptions
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize upload backend
	up, err := initUploader(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	// Initialize fal.ai client
	falClient, err := fal.NewClient(cfg.FalAPIKey,
		fal.WithBaseURL(cfg.FalBaseURL),
		fal.WithModel(cfg.FalModel),
		fal.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create fal client: %w", err)
	}

	gate := NewGate(cfg, store)

	// Initialize registries
	repo := job.NewMemoryRepository()
	sessions := workflow.NewSessionStore(workflow.WithSessionTTL(cfg.SessionTTL()))

	wait := workflow.WaitOptions{MaxWait: cfg.DefaultMaxWait(), PollInterval: cfg.DefaultPollInterval()}
	controller := workflow.NewController(up, falClient,
		workflow.WithGate(gate),
		workflow.WithJobRepository(repo),
		workflow.WithWaitDefaults(wait),
		workflow.WithLogger(logger),
	)

	return &Dependencies{
		Services: server.Services{
			Uploader:      up,
			UploadBackend: strings.ToLower(cfg.UploadBackend),
			Reframer:      falClient,
			Gate:          gate,
			Jobs:          repo,
			Sessions:      sessions,
			Workflow:      controller,
		},
		Wait: wait,
	}, nil
}

// NewGate builds the validation gate from configuration.
// Dimension probing stages files in temp.
func NewGate(cfg *config.Config, temp media.TempStore) *validation.Gate {
	limits := validation.Limits{
		MaxSize:         cfg.MaxFileSize,
		CheckDimensions: cfg.ValidateDimensions,
		RequiredWidth:   cfg.RequiredWidth,
		RequiredHeight:  cfg.RequiredHeight,
	}
	var inspector validation.Inspector
	if cfg.ValidateDimensions {
		inspector = media.NewProber(cfg.FFprobePath, temp)
	}
	return validation.NewGate(limits, inspector)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}

// initUploader selects the upload backend named by UPLOAD_BACKEND.
func initUploader(cfg *config.Config, store storage.Storage, logger *slog.Logger) (uploader.Uploader, error) {
	if cfg.S3Enabled() {
		logger.Info("upload backend configured", slog.String("backend", config.UploadBackendS3))
		return uploader.NewS3Adapter(store, cfg.UploadPrefix), nil
	}

	client, err := picadabra.NewClient(cfg.PicadabraAPIKey,
		picadabra.WithBaseURL(cfg.PicadabraBaseURL),
		picadabra.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create Picadabra client: %w", err)
	}
	logger.Info("upload backend configured",
		slog.String("backend", config.UploadBackendPicadabra),
		slog.String("base_url", cfg.PicadabraBaseURL),
	)
	return uploader.NewPicadabraAdapter(client, cfg.UploadPrefix), nil
}
