// Package picadabra provides an HTTP client for the Picadabra file-upload API.
package picadabra

// UploadRequest is a single base64-encoded file upload.
type UploadRequest struct {
	MIMEType   string
	Base64Data string
	Prefix     string
	FileName   string
}

// UploadResult is Picadabra's acknowledgement of an upload.
// Success is false when the service answered 200 but refused the file.
type UploadResult struct {
	Success bool
	URL     string
	Message string
	// FileID is derived from the storage URL when it points into /uploads/.
	FileID string
}

// uploadRequest is the request body for /api/v1/file-upload.
type uploadRequest struct {
	MIMEType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
	Prefix     string `json:"prefix"`
	FileName   string `json:"fileName"`
}

// uploadResponse is the response body from /api/v1/file-upload.
type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
