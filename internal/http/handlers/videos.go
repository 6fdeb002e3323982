package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/middleware"
)

// RenderSceneVideo renders one scene's clip. The request stays open for the
// whole submit-poll-download cycle, which can take minutes; the server's write
// timeout is sized for it.
func (a *App) RenderSceneVideo(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	index, ok := a.sceneIndex(w, r)
	if !ok {
		return
	}

	if err := a.Pipeline.RenderSceneVideo(r.Context(), sess, index); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// DownloadSceneVideo streams the rendered clip, the playback handle the
// snapshot's has_video flag points at.
func (a *App) DownloadSceneVideo(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	index, ok := a.sceneIndex(w, r)
	if !ok {
		return
	}
	clip, found := sess.Video(index)
	if !found || !clip.Present() {
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgNoVideo))
		return
	}

	mime := clip.MimeType
	if mime == "" {
		mime = "video/mp4"
	}
	w.Header().Set("Content-Type", mime)
	_, _ = w.Write(clip.Data)
}
