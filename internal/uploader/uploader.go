// Package uploader provides the common interface for video upload backends.
// Both the Picadabra and S3 adapters implement this interface.
package uploader

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Request is a single video upload.
type Request struct {
	FileName string
	MIMEType string
	// Prefix is the storage folder. Empty means the backend default.
	Prefix string
	Data   []byte
}

// Result is the outcome of an upload.
// Success is false when the backend answered but refused the file; Message
// then carries the backend's reason.
type Result struct {
	Success  bool
	URL      string
	Message  string
	FileID   string
	FileSize int64
}

// Uploader defines the interface for video upload backends.
type Uploader interface {
	// Upload stores the video and returns its public URL.
	Upload(ctx context.Context, req Request) (Result, error)

	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) bool
}

// SecureFileName strips any directory components from name and prefixes it
// with 16 random hex characters.
func SecureFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		name = "video"
	}

	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:]) + "_" + name
}
