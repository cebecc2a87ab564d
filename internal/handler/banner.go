package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/service"
)

// BannerHandler serves the home page carousel. Reading is public; writes are
// for admins (RequireAdmin on the routes, re-checked by the service).
type BannerHandler struct {
	banners *service.BannerService
	logger  *slog.Logger
}

func NewBannerHandler(banners *service.BannerService, logger *slog.Logger) *BannerHandler {
	return &BannerHandler{banners: banners, logger: logger}
}

// HandleList handles GET /api/banners
func (h *BannerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	banners, err := h.banners.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, banners)
}

// HandleCreate adds a banner. Only linkUrl is required; missing text and
// image are filled from the linked page's OGP tags.
//
// HTTP: POST /api/banners
func (h *BannerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.BannerInput
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	banner, err := h.banners.Create(r.Context(), viewerID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, banner)
}

// HandleUpdate handles PUT /api/banners/{id}
func (h *BannerHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.BannerInput
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	banner, err := h.banners.Update(r.Context(), viewerID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, banner)
}

// HandleDelete handles DELETE /api/banners/{id}
func (h *BannerHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.banners.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
