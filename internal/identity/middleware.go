package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/triage/pkg/handlers"
)

// Authenticate verifies the request's bearer token and stores the actor in
// the request context. Requests without a valid token stop here.
func Authenticate(sys System, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "authenticate")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}

			actor, err := sys.Verify(r.Context(), raw)
			if err != nil {
				status := MapHTTPStatus(err)
				if errors.Is(err, ErrUnauthenticated) {
					err = ErrUnauthenticated
				}
				handlers.RespondError(w, logger, status, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects actors whose role is not role.
func RequireRole(role Role, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "require_role", "role", role)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := Require(r.Context())
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}
			if actor.Role != role {
				handlers.RespondError(w, logger, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
