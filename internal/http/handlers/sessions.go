package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Create()
	a.Log.Info().Str("session", sess.ID()).Msg("session created")
	a.json(w, http.StatusCreated, sess.Snapshot())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}
