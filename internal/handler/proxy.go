package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/kansenki/internal/places"
	"github.com/sakif/kansenki/internal/service"
)

// ProxyHandler forwards browser requests to third-party APIs that need a
// server-side key or can't be called cross-origin: Google Places and link
// previews. The routes are rate limited per client IP.
type ProxyHandler struct {
	places  *places.Client
	preview service.LinkPreviewer
	logger  *slog.Logger
}

func NewProxyHandler(placesClient *places.Client, preview service.LinkPreviewer, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{places: placesClient, preview: preview, logger: logger}
}

// HandlePlaceSearch handles GET /api/places/search?q=Anfield
//
// The Places response is passed through as-is.
func (h *ProxyHandler) HandlePlaceSearch(w http.ResponseWriter, r *http.Request) {
	body, err := h.places.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// HandlePlaceDetails handles GET /api/places/details?placeId=ChIJ...
func (h *ProxyHandler) HandlePlaceDetails(w http.ResponseWriter, r *http.Request) {
	body, err := h.places.Details(r.Context(), r.URL.Query().Get("placeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// HandlePlacePhoto streams a place photo.
//
// HTTP: GET /api/places/photo?ref=...&maxWidth=800
func (h *ProxyHandler) HandlePlacePhoto(w http.ResponseWriter, r *http.Request) {
	maxWidth, err := queryInt(r, "maxWidth")
	if err != nil {
		writeError(w, err)
		return
	}

	photo, err := h.places.Photo(r.Context(), r.URL.Query().Get("ref"), maxWidth)
	if err != nil {
		writeError(w, err)
		return
	}
	defer photo.Body.Close()

	w.Header().Set("Content-Type", photo.ContentType)
	// Photo references are stable; let the browser keep them for a day.
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, photo.Body); err != nil {
		h.logger.Warn("place photo stream interrupted", slog.String("error", err.Error()))
	}
}

// HandleOGP returns the link preview of a page.
//
// HTTP: GET /api/ogp?url=https://...
// Auth: Admin
func (h *ProxyHandler) HandleOGP(w http.ResponseWriter, r *http.Request) {
	meta, err := h.preview.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
