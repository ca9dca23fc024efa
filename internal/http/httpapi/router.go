package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"productsnap/internal/http/handlers"
	"productsnap/internal/middleware"
)

type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	AllowedOrigins  []string
	// StaticDir serves locally stored assets under /static when set.
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Get("/v1/usage", app.Usage)
		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/", app.ListJobs)
			r.Get("/{id}", app.GetJob)
			r.Delete("/{id}", app.DeleteJob)
			r.Post("/{id}/cancel", app.CancelJob)
			r.Get("/{id}/download", app.DownloadJob)
		})
	})

	return r
}
