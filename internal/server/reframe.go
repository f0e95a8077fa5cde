package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/workflow"
)

// checkerFunc adapts a function to workflow.StatusChecker.
type checkerFunc func(ctx context.Context, jobID string) (job.StatusReport, error)

func (f checkerFunc) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	return f(ctx, jobID)
}

// Reframe handles POST /api/v1/reframe requests.
func (h *Handlers) Reframe(w http.ResponseWriter, r *http.Request) {
	var req ReframeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	ratio, err := job.ParseAspectRatio(req.AspectRatio)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	submitReq := job.SubmitRequest{
		VideoURL:    req.VideoURL,
		Prompt:      req.Prompt,
		AspectRatio: ratio,
	}
	sub, err := h.svc.Reframer.Submit(r.Context(), submitReq)
	if err != nil {
		h.writeVendorError(w, "fal", err)
		return
	}

	if !sub.Success {
		h.logger.Warn("reframe refused", slog.String("message", sub.Message))
		writeJSON(w, http.StatusOK, ReframeResponse{Success: false, Message: sub.Message})
		return
	}

	if sub.JobID != "" {
		h.recordJob(r.Context(), sub, submitReq)
	}

	h.logger.Info("reframe submitted",
		slog.String("job_id", sub.JobID),
		slog.String("status", string(sub.Status)),
		slog.String("aspect_ratio", string(ratio)),
	)

	writeJSON(w, http.StatusOK, ReframeResponse{
		Success:   true,
		Message:   sub.Message,
		JobID:     sub.JobID,
		Status:    string(sub.Status),
		ResultURL: sub.ResultURL,
	})
}

func (h *Handlers) recordJob(ctx context.Context, sub job.Submission, req job.SubmitRequest) {
	j := job.New(sub.JobID, req)
	if sub.Status != job.StatusSubmitted {
		_ = j.Apply(job.StatusReport{JobID: sub.JobID, Status: sub.Status, ResultURL: sub.ResultURL})
	}
	if err := h.svc.Jobs.Save(ctx, j); err != nil {
		h.logger.Error("failed to record job",
			slog.String("job_id", sub.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// trackStatus fetches a job's status and folds it into the registry.
// The registry's view is returned, so a terminal status never regresses.
func (h *Handlers) trackStatus(ctx context.Context, jobID string) (job.StatusReport, error) {
	report, err := h.svc.Reframer.Status(ctx, jobID)
	if err != nil {
		return report, err
	}

	j, err := h.svc.Jobs.FindByID(ctx, jobID)
	if errors.Is(err, job.ErrJobNotFound) {
		j = job.New(jobID, job.SubmitRequest{})
	} else if err != nil {
		return report, err
	}

	if err := j.Apply(report); err != nil {
		h.logger.Debug("ignoring status regression",
			slog.String("job_id", jobID),
			slog.String("current", string(j.GetStatus())),
			slog.String("reported", string(report.Status)),
		)
	}
	if err := h.svc.Jobs.Save(ctx, j); err != nil {
		return report, err
	}
	return j.Report(), nil
}

// JobStatus handles GET /api/v1/reframe/status/{job_id} requests.
func (h *Handlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	report, err := h.trackStatus(r.Context(), jobID)
	if err != nil {
		h.writeVendorError(w, "fal", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(report))
}

// WaitForJob handles POST /api/v1/reframe/wait/{job_id} requests.
// The request blocks until the job ends or max_wait_time elapses.
func (h *Handlers) WaitForJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	maxWait, err := secondsParam(r, "max_wait_time", h.wait.MaxWait)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_WAIT_OPTIONS")
		return
	}
	interval, err := secondsParam(r, "poll_interval", h.wait.PollInterval)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_WAIT_OPTIONS")
		return
	}
	opts := workflow.WaitOptions{MaxWait: maxWait, PollInterval: interval}
	if err := opts.CheckBounds(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_WAIT_OPTIONS")
		return
	}

	report, err := workflow.WaitForCompletion(r.Context(), checkerFunc(h.trackStatus), jobID, opts)
	if errors.Is(err, workflow.ErrWaitTimeout) {
		h.logger.Warn("wait timed out",
			slog.String("job_id", jobID),
			slog.String("last_status", string(report.Status)),
		)
		writeError(w, http.StatusGatewayTimeout,
			fmt.Sprintf("Job %s did not complete within %s", jobID, opts.MaxWait), "WAIT_TIMEOUT")
		return
	}
	if err != nil {
		h.writeVendorError(w, "fal", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(report))
}

// ListJobs handles GET /api/v1/reframe/jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.Jobs.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobSummary, 0, len(jobs)), Count: len(jobs)}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{
			JobID:       j.ID,
			Status:      string(j.Status),
			VideoURL:    j.VideoURL,
			Prompt:      j.Prompt,
			AspectRatio: string(j.AspectRatio),
			Progress:    j.Progress,
			ResultURL:   j.ResultURL,
			Error:       j.Error,
			CreatedAt:   j.CreatedAt,
			UpdatedAt:   j.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /api/v1/reframe/jobs/{job_id} requests.
// Only the local record is forgotten; the remote job is untouched.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if err := h.svc.Jobs.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func secondsParam(r *http.Request, name string, def time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer number of seconds", workflow.ErrInvalidWaitOptions, name)
	}
	return seconds(n), nil
}

func toStatusResponse(report job.StatusReport) JobStatusResponse {
	return JobStatusResponse{
		JobID:        report.JobID,
		Status:       string(report.Status),
		Progress:     report.Progress,
		ResultURL:    report.ResultURL,
		ErrorMessage: report.ErrorMessage,
		CreatedAt:    report.CreatedAt,
		CompletedAt:  report.CompletedAt,
	}
}
