package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/metrics"
	"server/internal/middleware"
)

// NewRouter wires the HTTP surface. Generation routes accept sessions and
// capability-scoped API keys; the account-management surface is session-only
// and enforced inside the handlers.
func NewRouter(app *handlers.App, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		metrics.Middleware,
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.I18N(app.Config.DefaultLocale, countryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
			r.Post("/generate", app.Generate(domain.OpStandard))
			r.Post("/premium", app.Generate(domain.OpPremium))
			r.Post("/remove-background", app.Generate(domain.OpRemoveBackground))
			r.Post("/upscale", app.Generate(domain.OpUpscale))
		})

		r.Get("/account", app.Account)

		r.Route("/generations", func(r chi.Router) {
			r.Get("/", app.ListGenerations)
			r.Get("/export", app.ExportGenerations)
			r.Delete("/{id}", app.DeleteGeneration)
		})

		r.Route("/api-keys", func(r chi.Router) {
			r.Post("/", app.CreateAPIKey)
			r.Get("/", app.ListAPIKeys)
			r.Delete("/{id}", app.RevokeAPIKey)
		})
	})

	r.Get("/static/*", app.Asset)

	return r
}
