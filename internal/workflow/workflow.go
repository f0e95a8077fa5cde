// Package workflow drives a video through upload, reframe submission and
// polling as one logical run.
//
// A run belongs to a Session. A Session accepts one run at a time; starting a
// second run while the first is still in flight fails with ErrWorkflowInFlight.
// Every step failure aborts the remaining steps. Nothing is retried and nothing
// already created remotely (the uploaded file) is rolled back.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/maauso/reframe-api/internal/job"
)

// Static errors for workflow operations.
var (
	// ErrWorkflowInFlight is returned when a session already has a run in progress.
	ErrWorkflowInFlight = errors.New("a workflow run is already in progress for this session")
	// ErrWaitTimeout is returned when a job does not reach a terminal state before the wait budget elapses.
	ErrWaitTimeout = errors.New("timed out waiting for job completion")
	// ErrUploadRejected is the reason of a RejectedError raised by the upload step.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrSubmitRejected is the reason of a RejectedError raised by the submit step.
	ErrSubmitRejected = errors.New("reframe submission rejected")
	// ErrJobFailed is returned when the remote job ends in the failed state.
	ErrJobFailed = errors.New("reframe job failed")
	// ErrInvalidInput is returned when the prompt or aspect ratio is unusable.
	ErrInvalidInput = errors.New("invalid workflow input")
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
)

// MaxPromptLength is the longest prompt accepted by the reframe model.
const MaxPromptLength = 500

// RejectedError is returned when a vendor answers but refuses the request.
// Its message is the vendor's message, verbatim.
type RejectedError struct {
	Reason  error
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

func (e *RejectedError) Unwrap() error { return e.Reason }

// StatusChecker fetches the current state of a reframe job.
type StatusChecker interface {
	Status(ctx context.Context, jobID string) (job.StatusReport, error)
}

// Reframer submits and tracks reframe jobs.
type Reframer interface {
	StatusChecker
	Submit(ctx context.Context, req job.SubmitRequest) (job.Submission, error)
}

// Input is one video to push through the workflow.
type Input struct {
	FileName    string
	MIMEType    string
	Data        []byte
	Prompt      string
	AspectRatio job.AspectRatio
	// Wait overrides the controller's default wait budget when non-zero.
	Wait WaitOptions
}

// Outcome is the end-to-end result of a run. It is never mutated once returned.
type Outcome struct {
	SessionID     string
	JobID         string
	OriginalVideo string
	// ReframedVideo is empty until the job completes.
	ReframedVideo string
	Prompt        string
	AspectRatio   job.AspectRatio
	// Width and Height are the output dimensions of the requested aspect ratio.
	Width       int
	Height      int
	Status      job.Status
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}

func (o *Outcome) clone() *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
