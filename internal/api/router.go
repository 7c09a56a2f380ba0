package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/kiranshivaraju/threatlens/internal/api/middleware"
	"github.com/kiranshivaraju/threatlens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	// AllowedOrigins configures CORS; empty disables the CORS middleware.
	AllowedOrigins []string

	HealthHandler  http.HandlerFunc
	AnalyzeHandler http.HandlerFunc
	StatsHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
			ExposedHeaders: []string{mw.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			MaxAge:         300,
		}))
	}

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	analyze := orNotImplemented(deps.AnalyzeHandler)
	stats := orNotImplemented(deps.StatsHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		deps.protect(r)

		r.Post("/api/v1/analyze", analyze)
		r.Get("/api/v1/stats", stats)
	})

	// Legacy paths used by the single-page frontend, which reads unwrapped
	// bodies and plain-string errors.
	r.Group(func(r chi.Router) {
		r.Use(response.Bare)
		deps.protect(r)

		r.Post("/analyze", analyze)
		r.Get("/get_chart_data", stats)
	})

	return r
}

// protect installs the optional API key check and rate limit.
func (deps Dependencies) protect(r chi.Router) {
	if deps.Auth != nil {
		r.Use(deps.Auth.Authenticate)
	}
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit.Limit)
	}
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
