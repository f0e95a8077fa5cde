package workflow

import (
	"errors"
	"slices"
)

// ErrInvalidStateTransition is returned when a run skips or reverses a step.
var ErrInvalidStateTransition = errors.New("invalid workflow state transition")

// State is the step a run is at.
type State string

// Run states, in order.
const (
	StateIdle       State = "IDLE"
	StateUploading  State = "UPLOADING"
	StateUploaded   State = "UPLOADED"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StatePolling    State = "POLLING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateTimedOut   State = "TIMED_OUT"
)

// validStateTransitions lists the allowed moves. Any non-terminal state may fail.
// A submission that completes synchronously goes straight from SUBMITTED to COMPLETED.
var validStateTransitions = map[State][]State{
	StateIdle:       {StateUploading, StateFailed},
	StateUploading:  {StateUploaded, StateFailed},
	StateUploaded:   {StateSubmitting, StateFailed},
	StateSubmitting: {StateSubmitted, StateFailed},
	StateSubmitted:  {StatePolling, StateCompleted, StateFailed},
	StatePolling:    {StateCompleted, StateFailed, StateTimedOut},
	StateCompleted:  {},
	StateFailed:     {},
	StateTimedOut:   {},
}

// IsTerminal returns true if the run has finished.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

func canTransition(from, to State) bool {
	return slices.Contains(validStateTransitions[from], to)
}
