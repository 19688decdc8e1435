package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Den-Varenik/social-network/internal/service"
	"github.com/Den-Varenik/social-network/pkg/health"
	"github.com/Den-Varenik/social-network/pkg/middleware"
)

// NewRouter creates a chi router with all service routes registered.
func NewRouter(
	authService *service.AuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("socialnetwork"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Auth endpoints (public). The login endpoint is form-encoded and the
	// verify endpoint carries no body, so ContentTypeJSON covers only the
	// JSON-bodied routes.
	authHandler := NewAuthHandler(authService, logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/create", authHandler.Login)
		r.Post("/verify", authHandler.VerifyToken)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/register", authHandler.Register)
		})
	})

	// Principal resolver that bridges the auth middleware to the service.
	resolve := func(ctx context.Context, token string) (*middleware.Principal, error) {
		user, err := authService.ResolveCurrentUser(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			UserID: user.ID,
			Email:  user.Email,
		}, nil
	}

	// User profile endpoints (auth required)
	userHandler := NewUserHandler(authService)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.Auth(resolve))

		r.Get("/me", userHandler.GetProfile)
	})

	return r
}
