package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/middleware"
	"studio/internal/pipeline"
	"studio/internal/session"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Cfg      *infra.Config
	Log      zerolog.Logger
	Sessions *session.Store
	Pipeline *pipeline.Orchestrator
}

func NewApp(cfg *infra.Config, log zerolog.Logger, sessions *session.Store, orch *pipeline.Orchestrator) *App {
	return &App{Cfg: cfg, Log: log, Sessions: sessions, Pipeline: orch}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"code": code, "message": message})
}

// fail maps a domain error to an HTTP response in the requester's locale.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgNotFound))
	case errors.Is(err, domain.ErrImagesRequired):
		a.error(w, http.StatusBadRequest, "images_required", localize(locale, msgImagesRequired))
	case errors.Is(err, domain.ErrPipelineBusy):
		a.error(w, http.StatusConflict, "busy", localize(locale, msgPipelineBusy))
	case errors.Is(err, domain.ErrOperationInFlight):
		a.error(w, http.StatusConflict, "operation_in_flight", localize(locale, msgOperationInFlight))
	case errors.Is(err, domain.ErrStageConflict):
		a.error(w, http.StatusConflict, "stage_conflict", localize(locale, msgStageConflict))
	case errors.Is(err, domain.ErrMissingCredential):
		a.error(w, http.StatusFailedDependency, "configuration", localize(locale, msgMissingCredential))
	case errors.Is(err, domain.ErrGenerationFailed):
		a.error(w, http.StatusBadGateway, "generation_failed", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", localize(locale, msgInternal))
	}
}

// sessionFromRequest resolves the {id} session or writes the error response.
func (a *App) sessionFromRequest(w http.ResponseWriter, r *http.Request, id string) (*session.Session, bool) {
	sess, err := a.Sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return sess, true
}
