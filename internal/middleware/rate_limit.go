package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/teacup/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	// TrustForwardedHeaders keys the limit on the forwarded client address. Only set it
	// behind a proxy that overwrites those headers; otherwise clients pick their own key.
	TrustForwardedHeaders bool
}

// DefaultAccountRateLimit is applied to the credential endpoints when no limit is configured
func DefaultAccountRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 20}
}

func keyByForwardedIP(r *http.Request) (string, error) {
	return pkghttp.ExtractClientIP(r), nil
}

// RateLimitByIP limits requests per client address. The key is the socket peer unless
// forwarded headers are trusted, in which case it matches the source IP the handlers
// record with each attempt.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultAccountRateLimit().RequestsPerMinute
	}

	keyFunc := httprate.KeyByIP
	if config.TrustForwardedHeaders {
		keyFunc = keyByForwardedIP
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
