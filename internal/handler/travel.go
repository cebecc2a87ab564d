package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/service"
)

// TravelHandler serves trip records. Reports link to a trip through its id.
type TravelHandler struct {
	travels *service.TravelService
	logger  *slog.Logger
}

func NewTravelHandler(travels *service.TravelService, logger *slog.Logger) *TravelHandler {
	return &TravelHandler{travels: travels, logger: logger}
}

// HandleCreate handles POST /api/travels
func (h *TravelHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.TravelInput
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	travel, err := h.travels.Create(r.Context(), viewerID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, travel)
}

// HandleGet handles GET /api/travels/{id}
func (h *TravelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	travel, err := h.travels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, travel)
}

// HandleUpdate handles PUT /api/travels/{id}
func (h *TravelHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.TravelInput
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	travel, err := h.travels.Update(r.Context(), viewerID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, travel)
}

// HandleDelete handles DELETE /api/travels/{id}
func (h *TravelHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.travels.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMine returns the signed-in user's trips for the post form's
// trip picker.
//
// HTTP: GET /api/me/travels
func (h *TravelHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	travels, err := h.travels.ListByAuthor(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, travels)
}
