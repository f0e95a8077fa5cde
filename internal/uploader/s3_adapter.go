package uploader

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/maauso/reframe-api/internal/storage"
)

// S3Adapter stores uploads in an S3 bucket.
type S3Adapter struct {
	store  storage.Storage
	prefix string
}

// NewS3Adapter creates a new S3 uploader.
func NewS3Adapter(store storage.Storage, prefix string) *S3Adapter {
	if prefix == "" {
		prefix = "uploads/videos"
	}
	return &S3Adapter{store: store, prefix: strings.Trim(prefix, "/")}
}

// Upload puts the video under prefix/<secure name> and returns its object URL.
func (a *S3Adapter) Upload(ctx context.Context, req Request) (Result, error) {
	prefix := strings.Trim(req.Prefix, "/")
	if prefix == "" {
		prefix = a.prefix
	}

	name := SecureFileName(req.FileName)
	key := path.Join(prefix, name)

	url, err := a.store.UploadToS3(ctx, key, req.MIMEType, bytes.NewReader(req.Data))
	if err != nil {
		return Result{}, fmt.Errorf("s3 adapter upload: %w", err)
	}

	return Result{
		Success:  true,
		URL:      url,
		Message:  "Video uploaded successfully",
		FileID:   strings.TrimSuffix(name, path.Ext(name)),
		FileSize: int64(len(req.Data)),
	}, nil
}

// Healthy reports whether the bucket is reachable.
func (a *S3Adapter) Healthy(ctx context.Context) bool {
	return a.store.Ping(ctx) == nil
}
