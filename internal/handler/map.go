package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/kansenki/internal/service"
)

// MapHandler serves the pins of the "where fans went" map.
type MapHandler struct {
	maps   *service.MapService
	logger *slog.Logger
}

func NewMapHandler(maps *service.MapService, logger *slog.Logger) *MapHandler {
	return &MapHandler{maps: maps, logger: logger}
}

// HandleMarkers handles GET /api/map/markers
func (h *MapHandler) HandleMarkers(w http.ResponseWriter, r *http.Request) {
	markers, err := h.maps.Markers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

// HandleHealth is the liveness probe.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
