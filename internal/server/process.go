package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/validation"
	"github.com/maauso/reframe-api/internal/workflow"
)

// StartProcess handles POST /api/v1/process requests.
// The run belongs to the session named by X-Session-ID; a new session is
// created when the header is absent or unknown.
func (h *Handlers) StartProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	data, err := validation.DecodeBase64(req.Base64Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_BASE64")
		return
	}

	session, created := h.svc.Sessions.GetOrCreate(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, session.ID())

	input := workflow.Input{
		FileName:    req.FileName,
		MIMEType:    req.MIMEType,
		Data:        data,
		Prompt:      req.Prompt,
		AspectRatio: job.AspectRatio(req.AspectRatio),
		Wait: workflow.WaitOptions{
			MaxWait:      seconds(req.MaxWaitTime),
			PollInterval: seconds(req.PollInterval),
		},
	}

	if h.enableAsyncProcess {
		// Start processing in background with a detached context
		err = h.svc.Workflow.Start(context.WithoutCancel(r.Context()), session, input)
	} else {
		_, err = h.svc.Workflow.ProcessVideo(r.Context(), session, input)
		// Run failures are recorded on the session.
		if !errors.Is(err, workflow.ErrWorkflowInFlight) {
			err = nil
		}
	}
	if errors.Is(err, workflow.ErrWorkflowInFlight) {
		writeError(w, http.StatusConflict, err.Error(), "WORKFLOW_IN_FLIGHT")
		return
	}
	if err != nil {
		h.logger.Error("failed to start workflow",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start workflow", "WORKFLOW_START_FAILED")
		return
	}

	h.logger.Info("workflow started",
		slog.String("session_id", session.ID()),
		slog.Bool("new_session", created),
		slog.String("file_name", req.FileName),
	)

	writeJSON(w, http.StatusAccepted, ProcessResponse{
		SessionID: session.ID(),
		State:     string(session.State()),
	})
}

// GetProcess handles GET /api/v1/process/{session_id} requests.
func (h *Handlers) GetProcess(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Sessions.Get(r.PathValue("session_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session.Snapshot()))
}

// DeleteProcess handles DELETE /api/v1/process/{session_id} requests.
// A session with a run in flight cannot be deleted.
func (h *Handlers) DeleteProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	switch err := h.svc.Sessions.Delete(id); {
	case errors.Is(err, workflow.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, workflow.ErrWorkflowInFlight):
		writeError(w, http.StatusConflict, err.Error(), "WORKFLOW_IN_FLIGHT")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete session", "INTERNAL_ERROR")
	default:
		h.logger.Info("session deleted", slog.String("session_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

func toSessionResponse(s workflow.Snapshot) SessionResponse {
	resp := SessionResponse{
		SessionID: s.ID,
		State:     string(s.State),
		Running:   s.Running,
		UploadURL: s.UploadURL,
		JobID:     s.JobID,
		JobStatus: string(s.JobStatus),
		Progress:  s.Progress,
		Error:     s.Error,
		StartedAt: optionalTime(s.StartedAt),
		UpdatedAt: s.UpdatedAt,
	}
	if o := s.Outcome; o != nil {
		resp.Outcome = &OutcomeResponse{
			SessionID:     o.SessionID,
			JobID:         o.JobID,
			OriginalVideo: o.OriginalVideo,
			ReframedVideo: o.ReframedVideo,
			Prompt:        o.Prompt,
			AspectRatio:   string(o.AspectRatio),
			Width:         o.Width,
			Height:        o.Height,
			Status:        string(o.Status),
			Error:         o.Error,
			CreatedAt:     o.CreatedAt,
			CompletedAt:   optionalTime(o.CompletedAt),
		}
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
