package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"shaggydog/internal/http/handlers"
	"shaggydog/internal/middleware"
)

// RouterOptions carries the cross-cutting settings of the router.
type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
	UploadsPerMin  int
	CountryLookup  middleware.CountryLookup
	Logger         zerolog.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Country(opts.CountryLookup),
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/images/{filename}", app.ServeArtifact)

	r.Route("/v1/images", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.With(middleware.RateLimit(opts.UploadsPerMin, time.Minute)).Post("/", app.UploadImage)
		r.Get("/", app.ListImages)
		r.Get("/{id}/status", app.ImageStatus)
		r.Get("/{id}/archive", app.ImageArchive)
	})

	return r
}
