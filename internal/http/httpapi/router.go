package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plyconv/internal/http/handlers"
	"plyconv/internal/infra"
	"plyconv/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/status", app.Status)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/conversions", func(r chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		}
		r.Post("/", app.CreateConversion)
		r.Get("/{id}", app.GetConversion)
		r.Get("/{id}/files/{format}", app.DownloadArtifact)
		r.Get("/{id}/archive", app.DownloadArchive)
		r.Delete("/{id}", app.DeleteConversion)
	})

	return r
}
