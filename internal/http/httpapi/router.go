package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Log),
		middleware.CORS(app.Cfg.CORSAllowedOrigins),
		middleware.I18N(app.Cfg.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.With(middleware.RateLimit(app.Cfg.SessionRateLimit, app.Cfg.SessionRateWindow)).
			Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Put("/images/{slot}", app.UploadImage)
			r.Post("/scenarios", app.GenerateScenarios)
			r.Post("/scenarios/select", app.SelectScenario)
			r.Get("/prompts", app.ExportPrompts)
			r.Route("/scenes/{index}", func(r chi.Router) {
				r.Post("/regenerate", app.RegenerateScene)
				r.Get("/image", app.DownloadSceneImage)
				r.Post("/video", app.RenderSceneVideo)
				r.Get("/video", app.DownloadSceneVideo)
			})
		})
	})

	return r
}
