package middleware

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"sync"
	"time"

	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// RequestID tags every request with a ULID. A well-formed ULID supplied by the
// caller is kept, anything else is replaced. The id is stored where chi's
// middleware.GetReqID finds it, echoed in the response and attached to a
// request scoped logger.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := ulid.ParseStrict(id); err != nil {
				id = newRequestID()
			}

			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
			ctx = pkglogger.WithContext(ctx, logger.With(slog.String("request_id", id)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
