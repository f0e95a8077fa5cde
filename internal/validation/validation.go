// Package validation rejects unsuitable videos before any network call is made.
//
// Checks run in a fixed order: declared container type, byte size, then
// (optionally) decoded pixel dimensions. Every failure is an *Error whose
// Reason is one of the package sentinels, so callers can map failures with
// errors.Is while still showing the human-readable message.
package validation

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxFileSize is the largest accepted upload (100 MiB).
const MaxFileSize int64 = 100 * 1024 * 1024

// Required input resolution of the reframe model.
const (
	RequiredWidth  = 512
	RequiredHeight = 512
)

// Failure reasons.
var (
	ErrUnsupportedFormat = errors.New("unsupported video format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrEmptyFile         = errors.New("file is empty")
	ErrDimensionMismatch = errors.New("video dimensions mismatch")
	ErrLoadFailed        = errors.New("failed to load video")
)

// ErrInspectionUnavailable is returned by an Inspector that could not run at
// all, such as when staging the file or starting ffprobe fails. It is a
// server-side fault, not a verdict on the video, and Gate passes it through.
var ErrInspectionUnavailable = errors.New("video inspection unavailable")

// allowedTypes maps accepted MIME types to their container name.
var allowedTypes = map[string]string{
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
	"video/mov":       "mov",
}

// Error is a validation failure.
type Error struct {
	Reason  error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Reason }

func newError(reason error, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Candidate is a selected file awaiting validation.
type Candidate struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// NormalizeMIMEType lowercases the type and strips parameters such as codecs.
func NormalizeMIMEType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// IsSupportedType reports whether the declared MIME type is an accepted container.
func IsSupportedType(mimeType string) bool {
	_, ok := allowedTypes[NormalizeMIMEType(mimeType)]
	return ok
}

// ValidateContainerAndSize checks the declared MIME type and byte size against maxSize.
// A non-positive maxSize means MaxFileSize.
// The format check runs first: an unsupported type is reported as such whatever its size.
func ValidateContainerAndSize(c Candidate, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}

	if !IsSupportedType(c.MIMEType) {
		return newError(ErrUnsupportedFormat,
			"Video format %q is not supported. Allowed formats: MP4, WebM, MOV", c.MIMEType)
	}
	if c.Size <= 0 {
		return newError(ErrEmptyFile, "Video file is empty")
	}
	if c.Size > maxSize {
		return newError(ErrFileTooLarge,
			"File size (%s) exceeds maximum allowed size (%s)",
			humanize.IBytes(uint64(c.Size)), humanize.IBytes(uint64(maxSize)))
	}
	return nil
}

// ValidateDimensions requires an exact match with the required resolution.
func ValidateDimensions(width, height, requiredWidth, requiredHeight int) error {
	if width != requiredWidth || height != requiredHeight {
		return newError(ErrDimensionMismatch,
			"Video must be exactly %dx%d pixels (got %dx%d)", requiredWidth, requiredHeight, width, height)
	}
	return nil
}

// LoadFailed wraps a decode failure into an ErrLoadFailed validation error.
func LoadFailed(err error) *Error {
	if err == nil {
		return newError(ErrLoadFailed, "Failed to load video")
	}
	return newError(ErrLoadFailed, "Failed to load video: %v", err)
}

// Inspector decodes the pixel dimensions of a video.
type Inspector interface {
	Dimensions(ctx context.Context, name string, data []byte) (width, height int, err error)
}

// Limits configures a Gate.
type Limits struct {
	MaxSize         int64
	CheckDimensions bool
	RequiredWidth   int
	RequiredHeight  int
}

// DefaultLimits returns the limits the reframe model expects.
func DefaultLimits() Limits {
	return Limits{
		MaxSize:         MaxFileSize,
		CheckDimensions: true,
		RequiredWidth:   RequiredWidth,
		RequiredHeight:  RequiredHeight,
	}
}

// Gate runs every check on a candidate.
type Gate struct {
	limits    Limits
	inspector Inspector
}

// NewGate creates a Gate. A nil inspector disables the dimension check.
func NewGate(limits Limits, inspector Inspector) *Gate {
	if limits.RequiredWidth == 0 && limits.RequiredHeight == 0 {
		limits.RequiredWidth = RequiredWidth
		limits.RequiredHeight = RequiredHeight
	}
	return &Gate{limits: limits, inspector: inspector}
}

// Limits returns the gate's limits.
func (g *Gate) Limits() Limits {
	return g.limits
}

// Validate checks the candidate. Decode failures are reported as ErrLoadFailed,
// never as a dimension mismatch.
func (g *Gate) Validate(ctx context.Context, c Candidate) error {
	if err := ValidateContainerAndSize(c, g.limits.MaxSize); err != nil {
		return err
	}

	if !g.limits.CheckDimensions || g.inspector == nil {
		return nil
	}

	width, height, err := g.inspector.Dimensions(ctx, c.Name, c.Data)
	if err != nil {
		if errors.Is(err, ErrInspectionUnavailable) {
			return err
		}
		var verr *Error
		if errors.As(err, &verr) {
			return verr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return LoadFailed(err)
	}
	if width <= 0 || height <= 0 {
		return LoadFailed(fmt.Errorf("no video dimensions found"))
	}

	return ValidateDimensions(width, height, g.limits.RequiredWidth, g.limits.RequiredHeight)
}
