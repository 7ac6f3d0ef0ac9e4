package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wardlink/clinic-comms-platform/internal/http/handlers"
	httpmiddleware "github.com/wardlink/clinic-comms-platform/internal/http/middleware"
	"github.com/wardlink/clinic-comms-platform/internal/messaging"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	MessagingHandler   *messaging.Handler
	DashboardHandler   *handlers.DashboardHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (gateway webhook, health, metrics).
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.MessagingHandler.HealthCheck)
		public.Post("/webhooks/messaging", cfg.MessagingHandler.Webhook)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Read-only dashboard projections.
	if cfg.DashboardHandler != nil {
		r.Route("/api", func(api chi.Router) {
			api.Get("/escalations", cfg.DashboardHandler.ListEscalations)
			api.Get("/meeting-requests", cfg.DashboardHandler.ListMeetingRequests)
		})
	}

	return r
}
