package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyActor stores the authenticated access.Actor
	ContextKeyActor ContextKey = "actor"
	// ContextKeyRequestID stores the request id
	ContextKeyRequestID ContextKey = "request_id"
)

// ActorFromContext returns the actor placed by RequireAuth.
func ActorFromContext(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(access.Actor)
	return actor, ok
}

// RequireAuth is middleware that validates a Bearer token and injects the actor. The actor
// only ever comes from the verified token, never from the request body.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}

			actor, err := s.authenticator.Authenticate(r.Context(), parts[1])
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
			next(w, r.WithContext(ctx))
		}
	}
}
