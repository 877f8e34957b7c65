package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/eventcentral/internal/api/handler"
	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/store"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(s store.Store, sessions handler.Sessions, appCache *cache.Cache, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	h := handler.New(s, sessions, appCache, cfg, logger)

	// --- Routes ---
	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Control API
	r.Group(func(r chi.Router) {
		if cfg.ControlAuthConfigured() {
			r.Use(NewAuthenticator(cfg, logger).Middleware)
		} else {
			logger.Warn("No control API credentials configured, control endpoints are disabled")
			r.Use(controlDisabled)
		}
		r.Get("/status", h.GetStatus)
		r.Get("/events", h.GetEvents)
		r.Post("/scrape-event", h.ScrapeEvent)
		r.Post("/stop", h.StopEvent)
	})

	// Read API
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", h.ListGames)
		r.Get("/games/{id}", h.GetGame)
		r.Get("/potg", h.ListPOTG)
		r.Get("/leaderboards", h.Leaderboards)
	})

	return r
}

func controlDisabled(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.WriteError(w, http.StatusServiceUnavailable, "CONTROL_DISABLED", "Control API credentials are not configured")
	})
}
