package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/rentledger/internal/auth"
	"github.com/josh-kwaku/rentledger/internal/handler"
	"github.com/josh-kwaku/rentledger/internal/logging"
)

// Auth verifies the bearer token and puts the caller's user and organization
// into the request context. Every ledger query downstream is scoped by that
// organization.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r.Header.Get("Authorization"))
			if appErr != nil {
				handler.RespondAppError(w, appErr, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "path", r.URL.Path, "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// The scheme is matched case-insensitively.
func bearerToken(header string) (string, *handler.AppError) {
	if header == "" {
		return "", handler.ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", handler.ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", handler.ErrInvalidToken
	}
	return token, nil
}
