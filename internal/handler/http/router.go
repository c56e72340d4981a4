package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/service"
	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/health"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// RouterConfig carries everything NewRouter needs.
type RouterConfig struct {
	ServiceName    string
	UserService    *service.UserService
	ChannelService *service.ChannelService
	Health         *health.Handler
	Logger         *slog.Logger

	Cookies   CookieConfig
	Uploads   UploadConfig
	CORS      middleware.CORSConfig
	AuthLimit middleware.RateLimitConfig

	PprofEnabled   bool
	PprofAllowlist []string
}

// AuthGate resolves the access token from the accessToken cookie or the
// Authorization header and rejects the request with 401 otherwise.
func AuthGate(users *service.UserService) func(http.Handler) http.Handler {
	return middleware.Authenticate(middleware.CookieThenBearer(accessTokenCookie), users.ResolveAccessToken)
}

// NewRouter creates a chi router with all user routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFoundMessage("route not found"), logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowlist, logger)
	}

	authHandler := NewAuthHandler(cfg.UserService, cfg.Cookies, cfg.Uploads, logger)
	userHandler := NewUserHandler(cfg.UserService, cfg.ChannelService, cfg.Uploads, logger)
	authLimit := middleware.RateLimit(cfg.AuthLimit, logger)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Public
		r.Post("/register", authHandler.Register)
		r.With(authLimit).Post("/login", authHandler.Login)
		r.With(authLimit).Post("/refresh-token", authHandler.RefreshToken)

		// Auth required
		r.Group(func(r chi.Router) {
			r.Use(AuthGate(cfg.UserService))

			r.Post("/logout", authHandler.Logout)
			r.Post("/change-password", userHandler.ChangePassword)
			r.Get("/current-user", userHandler.CurrentUser)
			r.Patch("/update-account", userHandler.UpdateAccount)
			r.Patch("/avatar", userHandler.UpdateAvatar)
			r.Patch("/cover-image", userHandler.UpdateCoverImage)
			r.Get("/c/{username}", userHandler.ChannelProfile)
			r.Get("/watch-history", userHandler.WatchHistory)
		})
	})

	return r
}
