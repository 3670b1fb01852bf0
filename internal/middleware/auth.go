package middleware

import (
	"context"
	"net/http"
	"strings"

	"reconcile/internal/auth"
)

type contextKey string

const actorIDKey contextKey = "actor_id"

// ActorIDFromContext returns the authenticated caller's id. Every mutating
// engine operation requires it; services never read identity from globals.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorIDKey).(string)
	return actorID, ok
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), actorIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
