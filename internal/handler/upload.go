package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
)

// UploadHandler hosts photos before a form is submitted, for clients that
// send imageUrls instead of attaching the files to the post request.
type UploadHandler struct {
	images images.Store
	logger *slog.Logger
}

func NewUploadHandler(store images.Store, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{images: store, logger: logger}
}

// UploadResponse lists the hosted URLs in upload order.
type UploadResponse struct {
	URLs []string `json:"urls"`
}

// HandleUpload handles POST /api/uploads (multipart "images", at most 5)
// Auth: Required
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if viewerID(r) == "" {
		writeError(w, apperror.Unauthorized("sign in required"))
		return
	}

	var ignored struct{}
	files, cleanup, err := readForm(w, r, &ignored, "images")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	switch {
	case len(files) == 0:
		writeError(w, apperror.ValidationFailed("images", "no images attached"))
		return
	case len(files) > images.MaxPerPost:
		writeError(w, apperror.ValidationFailed("images", fmt.Sprintf("at most %d photos per post", images.MaxPerPost)))
		return
	}
	for _, f := range files {
		if err := images.Validate(f); err != nil {
			writeError(w, err)
			return
		}
	}

	urls, err := images.UploadAll(r.Context(), h.images, files, h.logger)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URLs: urls})
}
