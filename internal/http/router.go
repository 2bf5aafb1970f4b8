package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lo/internal/auth"
	"lo/internal/config"
	"lo/internal/geo"
	"lo/internal/http/handler"
	mw "lo/internal/http/middleware"
)

// Deps are the services the router exposes.
type Deps struct {
	Config   config.Config
	JWT      *auth.JWT
	Cities   *geo.Registry
	Sync     handler.Syncer
	Messages handler.MessageStore
	Notifier handler.Notifier
	Realtime http.Handler
	Ping     func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(mw.Origins(cfg.CORSAllowedOrigins), cfg.CORSAllowCredentials))
	}

	health := &handler.HealthHandler{Ping: d.Ping}
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	syncH := &handler.SyncHandler{Svc: d.Sync}
	r.With(httprate.LimitByIP(cfg.RateLimit, time.Minute)).
		Post("/functions/v1/sync-events", syncH.SyncEvents)

	cities := &handler.CitiesHandler{Cities: d.Cities, EventRadius: cfg.EventRadiusMiles}
	r.Get("/cities", cities.List)
	r.Get("/cities/nearest", cities.Nearest)

	msgs := &handler.MessageHandler{
		Store:       d.Messages,
		Cities:      d.Cities,
		EventRadius: cfg.EventRadiusMiles,
		Notifier:    d.Notifier,
	}
	r.Route("/messages", func(r chi.Router) {
		r.With(auth.OptionalAuth(d.JWT)).Get("/active", msgs.Active)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.JWT))
			r.Post("/", msgs.Create)
			r.Delete("/{id}", msgs.Delete)
		})
	})

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(d.JWT)).Get("/me", me.Me)

	if d.Realtime != nil {
		r.Handle("/ws", d.Realtime)
	}

	return r
}
