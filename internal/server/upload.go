package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/reframe-api/internal/uploader"
	"github.com/maauso/reframe-api/internal/validation"
)

// Upload handles POST /api/v1/upload requests.
// A vendor that answers but refuses the file yields 200 with success=false
// so the vendor's message reaches the caller unchanged.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	data, err := validation.DecodeBase64(req.Base64Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_BASE64")
		return
	}

	candidate := validation.Candidate{
		Name:     req.FileName,
		MIMEType: req.MIMEType,
		Size:     int64(len(data)),
		Data:     data,
	}
	if err := h.svc.Gate.Validate(r.Context(), candidate); err != nil {
		h.writeValidationError(w, err)
		return
	}

	res, err := h.svc.Uploader.Upload(r.Context(), uploader.Request{
		FileName: req.FileName,
		MIMEType: validation.NormalizeMIMEType(req.MIMEType),
		Prefix:   req.Prefix,
		Data:     data,
	})
	if err != nil {
		h.writeVendorError(w, h.svc.UploadBackend, err)
		return
	}

	if !res.Success {
		h.logger.Warn("upload refused",
			slog.String("file_name", req.FileName),
			slog.String("message", res.Message),
		)
		writeJSON(w, http.StatusOK, UploadResponse{Success: false, Message: res.Message})
		return
	}

	h.logger.Info("video uploaded",
		slog.String("file_name", req.FileName),
		slog.String("url", res.URL),
		slog.Int64("size", res.FileSize),
	)

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		URL:      res.URL,
		Message:  res.Message,
		FileID:   res.FileID,
		FileSize: res.FileSize,
	})
}
