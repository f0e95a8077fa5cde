package job

import (
	"errors"
	"strings"
)

// ErrUnsupportedAspectRatio is returned when an aspect ratio is not one of the supported values.
var ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")

// AspectRatio is the requested output aspect ratio of a reframe job.
type AspectRatio string

// Supported aspect ratios.
const (
	AspectSquare           AspectRatio = "1:1"
	AspectPortraitStandard AspectRatio = "3:4"
	AspectPortrait         AspectRatio = "9:16"
	AspectStandard         AspectRatio = "4:3"
	AspectLandscape        AspectRatio = "16:9"
)

// outputDimensions maps each aspect ratio to the pixel size the reframe model renders.
var outputDimensions = map[AspectRatio][2]int{
	AspectSquare:           {1024, 1024},
	AspectPortraitStandard: {768, 1024},
	AspectPortrait:         {576, 1024},
	AspectStandard:         {1024, 768},
	AspectLandscape:        {1024, 576},
}

// AspectRatios returns the supported aspect ratios in a stable order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectLandscape, AspectPortrait, AspectSquare, AspectStandard, AspectPortraitStandard}
}

// ParseAspectRatio converts a string such as "16:9" into an AspectRatio.
func ParseAspectRatio(s string) (AspectRatio, error) {
	ar := AspectRatio(strings.TrimSpace(s))
	if !ar.IsValid() {
		return "", ErrUnsupportedAspectRatio
	}
	return ar, nil
}

// IsValid returns true if the aspect ratio is supported.
func (a AspectRatio) IsValid() bool {
	_, ok := outputDimensions[a]
	return ok
}

// Dimensions returns the output width and height for the aspect ratio.
// Unsupported ratios return zero values.
func (a AspectRatio) Dimensions() (width, height int) {
	d, ok := outputDimensions[a]
	if !ok {
		return 0, 0
	}
	return d[0], d[1]
}

// Status represents the lifecycle state of a reframe job.
// Remote states are the lowercase spellings returned by the reframe service.
type Status string

const (
	// StatusSubmitted indicates the job was accepted but not yet reported on.
	StatusSubmitted Status = "submitted"
	// StatusQueued indicates the job is waiting for a worker.
	StatusQueued Status = "in_queue"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "in_progress"
	// StatusCompleted indicates the job finished and a result URL is available.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job finished with an error.
	StatusFailed Status = "failed"
	// StatusTimedOut indicates the caller stopped waiting before the job finished.
	// It is never reported by the remote service.
	StatusTimedOut Status = "timed_out"
)

// ParseStatus normalizes a status string reported by the reframe service.
// Unknown values are lowercased and treated as non-terminal.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitted":
		return StatusSubmitted
	case "in_queue", "queued", "pending":
		return StatusQueued
	case "in_progress", "running", "processing":
		return StatusRunning
	case "completed", "complete", "succeeded":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	case "timed_out":
		return StatusTimedOut
	default:
		return Status(strings.ToLower(strings.TrimSpace(s)))
	}
}

// IsTerminal returns true if no further transitions can occur from this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// SubmitRequest is a request to reframe an already uploaded video.
type SubmitRequest struct {
	VideoURL    string
	Prompt      string
	AspectRatio AspectRatio
}

// Submission is the reframe service's acknowledgement of a SubmitRequest.
type Submission struct {
	// Success is false when the service accepted the call but refused the job.
	Success bool
	// JobID is the remote request identifier (empty when the result was returned inline).
	JobID string
	// Status is the job status right after submission.
	Status Status
	// ResultURL is set when the service completed the job synchronously.
	ResultURL string
	// Message is a human-readable description of the outcome.
	Message string
}

// StatusReport is a single observation of a remote job.
type StatusReport struct {
	JobID  string
	Status Status
	// Progress is the completion fraction in [0,1], when reported.
	Progress     *float64
	ResultURL    string
	ErrorMessage string
	// CreatedAt and CompletedAt are the raw timestamps reported by the service.
	CreatedAt   string
	CompletedAt string
}
