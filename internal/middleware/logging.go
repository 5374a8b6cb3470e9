package middleware

import (
	"net/http"
	"time"

	"github.com/josh-kwaku/rentledger/internal/auth"
	"github.com/josh-kwaku/rentledger/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging installs a request-scoped logger carrying the request id and the
// caller's organization, and logs one line per completed request. It must run
// after Auth.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		attrs := []any{"request_id", TraceIDFromContext(r.Context())}
		if orgID, ok := auth.OrganizationIDFromContext(r.Context()); ok {
			attrs = append(attrs, "organization_id", orgID)
		}
		if userID, ok := auth.UserIDFromContext(r.Context()); ok {
			attrs = append(attrs, "user_id", userID)
		}

		ctx, logger := logging.With(r.Context(), attrs...)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
