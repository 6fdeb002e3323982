package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
)

type generateScenariosRequest struct {
	ProductDescription string `json:"product_description"`
}

// GenerateScenarios runs the first pipeline stage. The handler holds the
// request open for the remote call, the way the original UI awaits it.
func (a *App) GenerateScenarios(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req generateScenariosRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgBadPayload))
			return
		}
	}

	if err := a.Pipeline.GenerateScenarios(r.Context(), sess, req.ProductDescription); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

type selectScenarioRequest struct {
	Index  *int   `json:"index,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// SelectScenario advances the pipeline with either a suggested scenario (by
// position) or user-authored free text under the fixed custom title.
func (a *App) SelectScenario(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req selectScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgBadPayload))
		return
	}

	var scenario domain.Scenario
	switch {
	case req.Index != nil:
		picked, found := sess.Scenario(*req.Index)
		if !found {
			a.fail(w, r, domain.ErrNotFound)
			return
		}
		scenario = picked
	case strings.TrimSpace(req.Custom) != "":
		scenario = domain.CustomScenario(strings.TrimSpace(req.Custom))
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "provide index or custom scenario text")
		return
	}

	if err := a.Pipeline.SelectScenario(r.Context(), sess, scenario); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}
