package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/service"
)

// QuestionHandler serves the Q&A thread under a post. Readers ask, the
// post's author answers.
type QuestionHandler struct {
	questions *service.QuestionService
	logger    *slog.Logger
}

func NewQuestionHandler(questions *service.QuestionService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{questions: questions, logger: logger}
}

type questionRequest struct {
	Body string `json:"body"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// HandleList handles GET /api/{collection}/{id}/questions (oldest first)
func (h *QuestionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	collection, id := target(r)
	questions, err := h.questions.ListForPost(r.Context(), collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// HandleAsk handles POST /api/{collection}/{id}/questions (Auth: Required)
func (h *QuestionHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	collection, id := target(r)
	q, err := h.questions.Ask(r.Context(), viewerID(r), collection, id, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// HandleAnswer handles POST /api/questions/{id}/answer (Auth: post author)
func (h *QuestionHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.questions.Answer(r.Context(), viewerID(r), chi.URLParam(r, "id"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// HandleDelete handles DELETE /api/questions/{id} (Auth: asker or admin)
func (h *QuestionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.questions.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
