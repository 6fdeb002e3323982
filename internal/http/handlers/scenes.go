package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *App) sceneIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "scene index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

// RegenerateScene resynthesizes one scene's still image.
func (a *App) RegenerateScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	index, ok := a.sceneIndex(w, r)
	if !ok {
		return
	}

	if err := a.Pipeline.RegenerateScene(r.Context(), sess, index); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// ExportPrompts returns all scene prompts as plain text, the copy-all action.
func (a *App) ExportPrompts(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(sess.PromptsText()))
}
