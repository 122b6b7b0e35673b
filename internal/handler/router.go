package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type RouterOptions struct {
	AllowedOrigins []string
	// RequireTLS rejects plain HTTP requests with 426.
	RequireTLS     bool
	RequestTimeout time.Duration
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(
	opts RouterOptions,
	authHandler *AuthHandler,
	questionHandler *QuestionHandler,
	health HealthChecker,
	logger *zap.Logger,
) chi.Router {
	router := chi.NewRouter()
	h := responder{logger: logger}

	if opts.RequireTLS {
		router.Use(requireHTTPS)
	}
	if opts.RequestTimeout <= 0 {
		// Long enough for a categorization and an answer with retries.
		opts.RequestTimeout = 90 * time.Second
	}

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.HealthCheck(r.Context()); err != nil {
				h.respondWithError(w, http.StatusServiceUnavailable, err, "Service unhealthy")
				return
			}
		}
		h.respondWithJSON(w, http.StatusOK, successResponse(
			map[string]string{"status": "healthy", "service": "qa-service"},
			"Service is healthy",
		))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		questionHandler.RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondWithJSON(w, http.StatusNotFound, Response{Success: false, Error: "endpoint not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondWithJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Error: "method not allowed"})
	})

	return router
}
