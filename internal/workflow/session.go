package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/reframe-api/internal/job"
)

// Session owns the state of one user's workflow. It replaces a process-wide
// store: each caller passes its own Session to the Controller.
type Session struct {
	mu sync.RWMutex

	id        string
	state     State
	running   bool
	done      chan struct{}
	uploadURL string
	jobID     string
	jobStatus job.Status
	progress  *float64
	outcome   *Outcome
	lastError string
	startedAt time.Time
	updatedAt time.Time
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	ID        string
	State     State
	Running   bool
	UploadURL string
	JobID     string
	JobStatus job.Status
	Progress  *float64
	Outcome   *Outcome
	Error     string
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an idle session. An empty id gets a random UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	closed := make(chan struct{})
	close(closed)
	return &Session{
		id:        id,
		state:     StateIdle,
		done:      closed,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current run state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Running reports whether a run is in flight.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Done returns a channel closed when the current run finishes.
// For an idle session the channel is already closed.
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// idleSince returns the last update time and whether no run is in flight.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, !s.running
}

// begin resets the session for a new run.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrWorkflowInFlight
	}

	now := time.Now()
	s.running = true
	s.done = make(chan struct{})
	s.state = StateIdle
	s.uploadURL = ""
	s.jobID = ""
	s.jobStatus = ""
	s.progress = nil
	s.outcome = nil
	s.lastError = ""
	s.startedAt = now
	s.updatedAt = now
	return nil
}

func (s *Session) advance(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == to {
		return nil
	}
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s.state, to)
	}
	s.state = to
	s.updatedAt = time.Now()
	return nil
}

func (s *Session) setUpload(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadURL = url
	s.updatedAt = time.Now()
}

func (s *Session) setJob(id string, status job.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = id
	s.jobStatus = status
	s.updatedAt = time.Now()
}

func (s *Session) observe(report job.StatusReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobStatus.IsTerminal() {
		return
	}
	if report.Status != "" {
		s.jobStatus = report.Status
	}
	if report.Progress != nil {
		p := *report.Progress
		s.progress = &p
	}
	s.updatedAt = time.Now()
}

// finish records the outcome and releases the in-flight guard.
func (s *Session) finish(outcome *Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcome = outcome.clone()
	if err != nil {
		s.lastError = err.Error()
	}
	if !s.state.IsTerminal() {
		if err != nil {
			s.state = StateFailed
		} else {
			s.state = StateCompleted
		}
	}
	s.running = false
	s.updatedAt = time.Now()
	close(s.done)
}

// Snapshot returns a copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var progress *float64
	if s.progress != nil {
		p := *s.progress
		progress = &p
	}

	return Snapshot{
		ID:        s.id,
		State:     s.state,
		Running:   s.running,
		UploadURL: s.uploadURL,
		JobID:     s.jobID,
		JobStatus: s.jobStatus,
		Progress:  progress,
		Outcome:   s.outcome.clone(),
		Error:     s.lastError,
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
}
