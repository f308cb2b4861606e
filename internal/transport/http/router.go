package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"quakescope/internal/handler"
	"quakescope/internal/httputil"
	ratemw "quakescope/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AlertHandler *handler.AlertHandler

	CORSAllowOrigins []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(corslib.New(corslib.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})

		r.Route("/alerts", func(r chi.Router) {
			if cfg.RateLimitEnabled {
				r.Use(ratemw.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}

			r.Post("/device-token", cfg.AlertHandler.RegisterDevice)
			r.Post("/preferences", cfg.AlertHandler.UpdatePreferences)
			r.Post("/notify/device", cfg.AlertHandler.NotifyDevice)
			r.Post("/notify/broadcast", cfg.AlertHandler.Broadcast)
			r.Post("/test-earthquake", cfg.AlertHandler.TestEarthquake)
			r.Get("/tokens", cfg.AlertHandler.ListTokens)
		})
	})

	return r
}
