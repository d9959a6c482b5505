package routes

import (
	"net/http"

	"github.com/BradenHooton/teacup/internal/handlers"
	"github.com/BradenHooton/teacup/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// AccountPrefixes are the equivalent mount points of the account API
var AccountPrefixes = []string{"/account", "/v1/account", "/v1.0/account"}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	accountHandler *handlers.AccountHandler,
	healthHandler *handlers.HealthHandler,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Get("/health", healthHandler.Health)

	// One subrouter, so the rate limit is shared across the prefixes
	accounts := AccountRouter(accountHandler, rateLimitConfig)
	for _, prefix := range AccountPrefixes {
		router.Mount(prefix, accounts)
	}
}

// AccountRouter builds the account endpoints. The credential endpoints are rate
// limited per client IP.
func AccountRouter(h *handlers.AccountHandler, rateLimitConfig middleware.RateLimitConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/ping", h.Ping)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Post("/signUp", h.SignUp)
		r.Post("/logIn", h.LogIn)
		r.Post("/recover", h.Recover)
		r.Post("/changePassword", h.ChangePassword)
	})

	r.Post("/verify", h.Verify)

	return r
}
