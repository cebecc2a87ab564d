package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/service"
)

// SpotHandler serves recommended spots (pubs, restaurants, sights).
type SpotHandler struct {
	spots  *service.SpotService
	logger *slog.Logger
}

func NewSpotHandler(spots *service.SpotService, logger *slog.Logger) *SpotHandler {
	return &SpotHandler{spots: spots, logger: logger}
}

// HandleList returns spots newest first.
//
// HTTP: GET /api/spots?country=England&category=pub&limit=20
func (h *SpotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	spots, err := h.spots.List(r.Context(), viewerID(r), service.SpotFilter{
		Country:  r.URL.Query().Get("country"),
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

// HandleCreate handles POST /api/spots (JSON or multipart with "data" + "images")
func (h *SpotHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SpotInput
	files, cleanup, err := readForm(w, r, &in, "images")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	spot, err := h.spots.Submit(r.Context(), viewerID(r), in, files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, spot)
}

// HandleUpdate handles PUT /api/spots/{id}
func (h *SpotHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SpotInput
	files, cleanup, err := readForm(w, r, &in, "images")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	spot, err := h.spots.Update(r.Context(), viewerID(r), chi.URLParam(r, "id"), in, files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spot)
}

// HandleDelete handles DELETE /api/spots/{id}
func (h *SpotHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.spots.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
