// Package fal provides an HTTP client for the fal.ai video reframe model.
package fal

import (
	"encoding/json"
	"strings"
)

// submitRequest is the request body for the reframe model endpoint.
type submitRequest struct {
	VideoURL            string `json:"video_url"`
	Prompt              string `json:"prompt"`
	AspectRatio         string `json:"aspect_ratio"`
	EnableSafetyChecker bool   `json:"enable_safety_checker"`
	OutputFormat        string `json:"output_format"`
}

// submitResponse is the response from the reframe model endpoint.
// Queued jobs carry a request ID; synchronous runs carry the video URL.
type submitResponse struct {
	RequestID string `json:"request_id,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
}

// statusResponse is the response from the requests/{id} endpoint.
type statusResponse struct {
	Status      string     `json:"status"`
	Progress    *float64   `json:"progress,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	Video       *videoFile `json:"video,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   timestamp  `json:"created_at,omitempty"`
	CompletedAt timestamp  `json:"completed_at,omitempty"`
}

type videoFile struct {
	URL string `json:"url"`
}

// timestamp keeps whatever the service sent, string or number, as text.
type timestamp string

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = timestamp(s)
		return nil
	}
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = ""
		return nil
	}
	*t = timestamp(raw)
	return nil
}
