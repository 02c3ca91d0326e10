package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JCampos05/Backend-Taskeer/internal/components/api"
)

type contextKey string

const userIDKey contextKey = "taskeer.userID"

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom extracts the authenticated user id from the context.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// Middleware resolves the caller identity from a bearer session token.
func Middleware(sessions SessionRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "missing bearer token")
				return
			}

			session, err := sessions.Get(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrSessionExpired) {
					api.WriteUnauthorized(w, api.ReasonSessionExpired, "session expired")
					return
				}
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "invalid session")
				return
			}

			ctx := WithUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
