// Package server provides the HTTP server for the Video Reframe API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"encoding/json"
	"time"
)

// UploadRequest is the HTTP request body for uploading a video.
type UploadRequest struct {
	// MIMEType is the declared content type of the video.
	MIMEType string `json:"mimeType" validate:"required"`
	// Base64Data is the base64-encoded video, optionally as a data URL.
	Base64Data string `json:"base64Data" validate:"required"`
	// FileName is the original file name.
	FileName string `json:"fileName" validate:"required,max=255"`
	// Prefix is the storage folder. Empty means the configured default.
	Prefix string `json:"prefix" validate:"omitempty,max=255"`
}

// UploadResponse is the HTTP response after an upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message"`
	FileID   string `json:"file_id,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// ReframeRequest is the HTTP request body for submitting a reframe job.
type ReframeRequest struct {
	VideoURL    string `json:"video_url" validate:"required,url"`
	Prompt      string `json:"prompt" validate:"required,max=500"`
	AspectRatio string `json:"aspect_ratio" validate:"required,oneof=1:1 3:4 9:16 4:3 16:9"`
}

// ReframeResponse is the HTTP response after submitting a reframe job.
type ReframeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	JobID     string `json:"job_id,omitempty"`
	Status    string `json:"status,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
}

// JobStatusResponse is the HTTP response for a job status query.
type JobStatusResponse struct {
	JobID        string   `json:"job_id"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress,omitempty"`
	ResultURL    string   `json:"result_url,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	CompletedAt  string   `json:"completed_at,omitempty"`
}

// JobSummary describes a job known to this server.
type JobSummary struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	VideoURL    string    `json:"video_url,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	AspectRatio string    `json:"aspect_ratio,omitempty"`
	Progress    *float64  `json:"progress,omitempty"`
	ResultURL   string    `json:"result_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs  []JobSummary `json:"jobs"`
	Count int          `json:"count"`
}

// ProcessRequest is the HTTP request body for the composite workflow.
type ProcessRequest struct {
	MIMEType    string `json:"mimeType" validate:"required"`
	Base64Data  string `json:"base64Data" validate:"required"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	Prompt      string `json:"prompt" validate:"required,max=500"`
	AspectRatio string `json:"aspect_ratio" validate:"required,oneof=1:1 3:4 9:16 4:3 16:9"`
	// MaxWaitTime and PollInterval are in seconds. Zero means the server default.
	MaxWaitTime  int `json:"max_wait_time" validate:"omitempty,min=30,max=600"`
	PollInterval int `json:"poll_interval" validate:"omitempty,min=5,max=30"`
}

// ProcessResponse is the HTTP response after starting a workflow run.
type ProcessResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// OutcomeResponse is the final result of a workflow run.
type OutcomeResponse struct {
	SessionID     string     `json:"session_id"`
	JobID         string     `json:"job_id,omitempty"`
	OriginalVideo string     `json:"original_video,omitempty"`
	ReframedVideo string     `json:"reframed_video,omitempty"`
	Prompt        string     `json:"prompt"`
	AspectRatio   string     `json:"aspect_ratio"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	Status        string     `json:"status,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SessionResponse is the HTTP response for a session snapshot.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	State     string           `json:"state"`
	Running   bool             `json:"running"`
	UploadURL string           `json:"upload_url,omitempty"`
	JobID     string           `json:"job_id,omitempty"`
	JobStatus string           `json:"job_status,omitempty"`
	Progress  *float64         `json:"progress,omitempty"`
	Error     string           `json:"error,omitempty"`
	Outcome   *OutcomeResponse `json:"outcome,omitempty"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// VendorHealthResponse reports the reachability of one vendor.
// The vendor key is rendered as "<vendor>_api".
type VendorHealthResponse struct {
	Status  string          `json:"status"`
	Vendor  string          `json:"-"`
	State   string          `json:"-"`
	Details map[string]bool `json:"details"`
}

// MarshalJSON renders the vendor state under its "<vendor>_api" key.
func (v VendorHealthResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"status":          v.Status,
		v.Vendor + "_api": v.State,
		"details":         v.Details,
	})
}
