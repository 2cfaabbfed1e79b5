package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"apex-dashboard/internal/handlers"
	"apex-dashboard/internal/metrics"
	"apex-dashboard/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Views  *handlers.ViewHandler
	Cache  *handlers.CacheHandler
	Events *handlers.EventsHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers, requestTimeout time.Duration) {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	r.Route("/v1", func(r chi.Router) {
		// Long-lived websocket; must not sit behind the request timeout.
		r.Get("/events", h.Events.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/views", h.Views.List)
			r.Get("/views/{view}", h.Views.Show)
			r.Get("/views/{view}/export", h.Views.Export)

			r.Get("/cache", h.Cache.Info)
			r.Post("/cache/clear", h.Cache.Clear)
			r.Post("/cache/clear-expired", h.Cache.ClearExpired)
			r.Delete("/cache/{key}", h.Cache.Delete)
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
