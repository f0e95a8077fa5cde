package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/metrics"
	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
)

// Controller runs the upload -> submit -> poll workflow.
type Controller struct {
	uploader uploader.Uploader
	reframer Reframer
	gate     *validation.Gate
	jobs     job.Repository
	wait     WaitOptions
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithGate validates every input before the upload step.
func WithGate(g *validation.Gate) Option {
	return func(c *Controller) {
		c.gate = g
	}
}

// WithJobRepository records submitted jobs and their reports.
func WithJobRepository(repo job.Repository) Option {
	return func(c *Controller) {
		c.jobs = repo
	}
}

// WithWaitDefaults sets the wait budget used when an Input carries none.
func WithWaitDefaults(opts WaitOptions) Option {
	return func(c *Controller) {
		c.wait = opts.withDefaults(DefaultWaitOptions())
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates a new Controller.
func NewController(up uploader.Uploader, rf Reframer, opts ...Option) *Controller {
	c := &Controller{
		uploader: up,
		reframer: rf,
		wait:     DefaultWaitOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessVideo runs the whole workflow for session and blocks until it ends.
// The returned Outcome is non-nil whenever the session accepted the run,
// including on failure and timeout.
func (c *Controller) ProcessVideo(ctx context.Context, session *Session, in Input) (*Outcome, error) {
	if err := session.begin(); err != nil {
		return nil, err
	}
	return c.execute(ctx, session, in)
}

// Start acquires the session synchronously, then runs the workflow in the
// background. Callers follow progress through session.Snapshot or session.Done.
func (c *Controller) Start(ctx context.Context, session *Session, in Input) error {
	if err := session.begin(); err != nil {
		return err
	}
	go func() {
		_, _ = c.execute(ctx, session, in)
	}()
	return nil
}

func (c *Controller) execute(ctx context.Context, session *Session, in Input) (outcome *Outcome, err error) {
	started := time.Now()
	logger := c.logger.With(slog.String("session_id", session.ID()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("workflow panic", slog.Any("panic", r))
			err = fmt.Errorf("workflow panic: %v", r)
			outcome = c.failed(session, outcome, err)
		}
		session.finish(outcome, err)
		metrics.ObserveWorkflow(string(outcome.Status), time.Since(started))
		logger.Info("workflow finished",
			slog.String("status", string(outcome.Status)),
			slog.String("job_id", outcome.JobID),
			slog.Duration("duration", time.Since(started)),
		)
	}()

	width, height := in.AspectRatio.Dimensions()
	outcome = &Outcome{
		SessionID:   session.ID(),
		Prompt:      in.Prompt,
		AspectRatio: in.AspectRatio,
		Width:       width,
		Height:      height,
		CreatedAt:   started,
	}

	if err := checkInput(in); err != nil {
		return c.failed(session, outcome, err), err
	}

	if c.gate != nil {
		if err := c.gate.Validate(ctx, validation.Candidate{
			Name:     in.FileName,
			MIMEType: in.MIMEType,
			Size:     int64(len(in.Data)),
			Data:     in.Data,
		}); err != nil {
			logger.Warn("validation failed", slog.String("error", err.Error()))
			return c.failed(session, outcome, err), err
		}
	}

	// Upload.
	_ = session.advance(StateUploading)
	logger.Info("uploading video", slog.String("file_name", in.FileName), slog.Int("size", len(in.Data)))

	uploaded, err := c.uploader.Upload(ctx, uploader.Request{
		FileName: in.FileName,
		MIMEType: validation.NormalizeMIMEType(in.MIMEType),
		Data:     in.Data,
	})
	metrics.ObserveVendorCall("upload", "upload", err)
	if err != nil {
		err = fmt.Errorf("upload video: %w", err)
		return c.failed(session, outcome, err), err
	}
	if !uploaded.Success || uploaded.URL == "" {
		msg := uploaded.Message
		if msg == "" {
			msg = "Upload failed"
		}
		err := &RejectedError{Reason: ErrUploadRejected, Message: msg}
		return c.failed(session, outcome, err), err
	}

	outcome.OriginalVideo = uploaded.URL
	session.setUpload(uploaded.URL)
	_ = session.advance(StateUploaded)

	// Submit.
	_ = session.advance(StateSubmitting)
	req := job.SubmitRequest{VideoURL: uploaded.URL, Prompt: in.Prompt, AspectRatio: in.AspectRatio}

	sub, err := c.reframer.Submit(ctx, req)
	metrics.ObserveVendorCall("reframe", "submit", err)
	if err != nil {
		err = fmt.Errorf("submit reframe job: %w", err)
		return c.failed(session, outcome, err), err
	}
	if !sub.Success {
		msg := sub.Message
		if msg == "" {
			msg = "Reframe job submission failed"
		}
		err := &RejectedError{Reason: ErrSubmitRejected, Message: msg}
		return c.failed(session, outcome, err), err
	}

	outcome.JobID = sub.JobID
	status := sub.Status
	if status == "" {
		status = job.StatusSubmitted
	}
	session.setJob(sub.JobID, status)
	_ = session.advance(StateSubmitted)
	c.record(ctx, sub, req, logger)

	if sub.Status == job.StatusCompleted && sub.ResultURL != "" {
		logger.Info("reframe completed on submission")
		outcome.ReframedVideo = sub.ResultURL
		outcome.Status = job.StatusCompleted
		outcome.CompletedAt = time.Now()
		session.observe(job.StatusReport{Status: job.StatusCompleted})
		_ = session.advance(StateCompleted)
		return outcome, nil
	}
	if sub.JobID == "" {
		err := &RejectedError{Reason: ErrSubmitRejected, Message: "Reframe service returned no job ID"}
		return c.failed(session, outcome, err), err
	}

	// Poll.
	_ = session.advance(StatePolling)
	opts := in.Wait.withDefaults(c.wait)
	logger = logger.With(slog.String("job_id", sub.JobID))
	logger.Info("polling job",
		slog.Duration("max_wait", opts.MaxWait),
		slog.Duration("poll_interval", opts.PollInterval),
	)

	report, err := WaitForCompletion(ctx, &trackingChecker{c: c, session: session}, sub.JobID, opts)
	c.applyTimestamps(outcome, report)

	switch {
	case errors.Is(err, ErrWaitTimeout):
		logger.Warn("job timed out", slog.String("last_status", string(report.Status)))
		outcome.Status = job.StatusTimedOut
		outcome.Error = err.Error()
		outcome.CompletedAt = time.Now()
		_ = session.advance(StateTimedOut)
		return outcome, err
	case err != nil:
		err = fmt.Errorf("check job status: %w", err)
		return c.failed(session, outcome, err), err
	case report.Status == job.StatusFailed:
		msg := report.ErrorMessage
		if msg == "" {
			msg = "Job failed without error message"
		}
		err := fmt.Errorf("%w: %s", ErrJobFailed, msg)
		return c.failed(session, outcome, err), err
	}

	outcome.Status = job.StatusCompleted
	outcome.ReframedVideo = report.ResultURL
	_ = session.advance(StateCompleted)
	return outcome, nil
}

// failed marks the outcome and session as failed.
func (c *Controller) failed(session *Session, outcome *Outcome, err error) *Outcome {
	if outcome == nil {
		outcome = &Outcome{SessionID: session.ID(), CreatedAt: time.Now()}
	}
	outcome.Status = job.StatusFailed
	outcome.Error = err.Error()
	if outcome.CompletedAt.IsZero() {
		outcome.CompletedAt = time.Now()
	}
	_ = session.advance(StateFailed)
	return outcome
}

func (c *Controller) record(ctx context.Context, sub job.Submission, req job.SubmitRequest, logger *slog.Logger) {
	if c.jobs == nil || sub.JobID == "" {
		return
	}
	j := job.New(sub.JobID, req)
	if sub.Status != "" {
		_ = j.TransitionTo(sub.Status)
	}
	if err := c.jobs.Save(ctx, j); err != nil {
		logger.Warn("failed to record job", slog.String("error", err.Error()))
	}
}

// applyTimestamps copies vendor timestamps, keeping the local clock when absent.
func (c *Controller) applyTimestamps(outcome *Outcome, report job.StatusReport) {
	if t, ok := ParseTimestamp(report.CreatedAt); ok {
		outcome.CreatedAt = t
	}
	if t, ok := ParseTimestamp(report.CompletedAt); ok {
		outcome.CompletedAt = t
	} else {
		outcome.CompletedAt = time.Now()
	}
}

// trackingChecker feeds every report into the session and job registry.
type trackingChecker struct {
	c       *Controller
	session *Session
}

func (t *trackingChecker) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	report, err := t.c.reframer.Status(ctx, jobID)
	metrics.ObserveVendorCall("reframe", "status", err)
	if err != nil {
		return report, err
	}

	t.session.observe(report)
	if t.c.jobs != nil {
		if j, ferr := t.c.jobs.FindByID(ctx, jobID); ferr == nil {
			if aerr := j.Apply(report); aerr == nil {
				_ = t.c.jobs.Save(ctx, j)
			}
		}
	}
	return report, nil
}

func checkInput(in Input) error {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidInput, MaxPromptLength)
	}
	if !in.AspectRatio.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidInput, job.ErrUnsupportedAspectRatio, in.AspectRatio)
	}
	return nil
}

// ParseTimestamp parses an RFC 3339 string or a Unix timestamp in seconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), true
	}
	return time.Time{}, false
}
