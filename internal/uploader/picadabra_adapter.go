package uploader

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/maauso/reframe-api/internal/picadabra"
)

// PicadabraAdapter adapts the Picadabra client to the Uploader interface.
type PicadabraAdapter struct {
	client picadabra.Client
	prefix string
}

// NewPicadabraAdapter creates a new Picadabra uploader.
// An empty prefix uses picadabra.DefaultPrefix.
func NewPicadabraAdapter(client picadabra.Client, prefix string) *PicadabraAdapter {
	if prefix == "" {
		prefix = picadabra.DefaultPrefix
	}
	return &PicadabraAdapter{client: client, prefix: prefix}
}

// Upload base64-encodes the video and sends it to Picadabra.
func (a *PicadabraAdapter) Upload(ctx context.Context, req Request) (Result, error) {
	prefix := req.Prefix
	if prefix == "" {
		prefix = a.prefix
	}

	res, err := a.client.Upload(ctx, picadabra.UploadRequest{
		MIMEType:   req.MIMEType,
		Base64Data: base64.StdEncoding.EncodeToString(req.Data),
		Prefix:     prefix,
		FileName:   SecureFileName(req.FileName),
	})
	if err != nil {
		return Result{}, fmt.Errorf("picadabra adapter upload: %w", err)
	}

	return Result{
		Success:  res.Success,
		URL:      res.URL,
		Message:  res.Message,
		FileID:   res.FileID,
		FileSize: int64(len(req.Data)),
	}, nil
}

// Healthy reports whether the Picadabra API is reachable.
func (a *PicadabraAdapter) Healthy(ctx context.Context) bool {
	return a.client.Health(ctx)
}
