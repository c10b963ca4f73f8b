package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drmente/intake-api/internal/http/handlers"
	httpmiddleware "github.com/drmente/intake-api/internal/http/middleware"
	"github.com/drmente/intake-api/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	CreatePatient      *handlers.CreatePatientHandler
	SearchPatient      *handlers.SearchPatientHandler
	FormShareWebhook   *handlers.FormShareWebhookHandler
	APIToken           string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates the chi router. OPTIONS requests are answered by CORS before
// token auth, so browser preflights never need the token.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Use(httpmiddleware.TokenAuth(cfg.APIToken, cfg.Logger))

		// Handlers check the method themselves so the JSON 405 bodies match
		// what the intake forms already parse.
		if cfg.CreatePatient != nil {
			api.HandleFunc("/create-patient", cfg.CreatePatient.Handle)
		}
		if cfg.SearchPatient != nil {
			api.HandleFunc("/search-patient", cfg.SearchPatient.Handle)
		}
		if cfg.FormShareWebhook != nil {
			api.HandleFunc("/webhook-formshare", cfg.FormShareWebhook.Handle)
		}
	})

	return r
}
