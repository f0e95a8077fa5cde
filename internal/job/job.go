// Package job provides the reframe Job aggregate.
// It includes the Job entity with a monotonic state machine aligned with the
// reframe service states, aspect ratio definitions, and repository interfaces
// for the in-memory job registry.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Terminal states have no outgoing transitions.
var validTransitions = map[Status][]Status{
	StatusSubmitted: {StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusTimedOut},
	StatusQueued:    {StatusRunning, StatusCompleted, StatusFailed, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job represents a reframe request submitted to the reframe service.
type Job struct {
	mu sync.RWMutex

	// ID is the remote request identifier.
	ID string
	// Status is the current job state.
	Status Status
	// VideoURL is the uploaded source video.
	VideoURL string
	// Prompt is the reframing prompt.
	Prompt string
	// AspectRatio is the requested output aspect ratio.
	AspectRatio AspectRatio
	// Progress is the last reported completion fraction, if any.
	Progress *float64
	// ResultURL is the reframed video URL once completed.
	ResultURL string
	// Error contains the failure message if the job failed.
	Error string
	// RemoteCreatedAt and RemoteCompletedAt are timestamps reported by the service.
	RemoteCreatedAt   string
	RemoteCompletedAt string
	// CreatedAt is when the job was first recorded locally.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the job reached a terminal state locally.
	CompletedAt time.Time
}

// New creates a Job in the submitted state for the given remote ID.
func New(id string, req SubmitRequest) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Status:      StatusSubmitted,
		VideoURL:    req.VideoURL,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Transitioning to the current status is a no-op.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if j.Status == status {
		return nil
	}
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Apply folds a status report into the job.
// Reports that would move the job backwards (or out of a terminal state) leave
// the status untouched and return ErrInvalidTransition; unknown statuses are ignored.
func (j *Job) Apply(report StatusReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status.IsTerminal() {
		if report.Status != j.Status {
			return ErrInvalidTransition
		}
		return nil
	}

	if _, known := validTransitions[report.Status]; known {
		if err := j.transitionLocked(report.Status); err != nil {
			return err
		}
	}

	if report.Progress != nil {
		p := clampProgress(*report.Progress)
		j.Progress = &p
	}
	if report.ResultURL != "" {
		j.ResultURL = report.ResultURL
	}
	if report.ErrorMessage != "" {
		j.Error = report.ErrorMessage
	}
	if report.CreatedAt != "" {
		j.RemoteCreatedAt = report.CreatedAt
	}
	if report.CompletedAt != "" {
		j.RemoteCompletedAt = report.CompletedAt
	}
	j.UpdatedAt = time.Now()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// Report returns the job as a StatusReport.
func (j *Job) Report() StatusReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var progress *float64
	if j.Progress != nil {
		p := *j.Progress
		progress = &p
	}
	return StatusReport{
		JobID:        j.ID,
		Status:       j.Status,
		Progress:     progress,
		ResultURL:    j.ResultURL,
		ErrorMessage: j.Error,
		CreatedAt:    j.RemoteCreatedAt,
		CompletedAt:  j.RemoteCompletedAt,
	}
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var progress *float64
	if j.Progress != nil {
		p := *j.Progress
		progress = &p
	}

	return &Job{
		ID:                j.ID,
		Status:            j.Status,
		VideoURL:          j.VideoURL,
		Prompt:            j.Prompt,
		AspectRatio:       j.AspectRatio,
		Progress:          progress,
		ResultURL:         j.ResultURL,
		Error:             j.Error,
		RemoteCreatedAt:   j.RemoteCreatedAt,
		RemoteCompletedAt: j.RemoteCompletedAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
