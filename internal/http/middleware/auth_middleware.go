package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/delcom/healthtrack/internal/http/response"
	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/service"
)

// Authenticate guards API routes with bearer-token authentication. The
// token is resolved through the gate; the resulting user is stored in the
// request context for handlers to read via the identity package.
func Authenticate(gate *service.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordTokenValidation(r.Context(), "missing", "bearer")
				response.Fail(w, http.StatusUnauthorized, "authentication token not found")
				return
			}
			raw := strings.TrimSpace(auth[7:])
			if raw == "" {
				observability.RecordTokenValidation(r.Context(), "missing", "bearer")
				response.Fail(w, http.StatusUnauthorized, "authentication token not found")
				return
			}

			user, err := gate.Resolve(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrCredentialMalformed):
					observability.RecordTokenValidation(r.Context(), "malformed", "bearer")
					response.Fail(w, http.StatusUnauthorized, "authentication token format invalid")
				case errors.Is(err, service.ErrCredentialRevoked):
					// A token absent from the store reads as an expired
					// session to the caller, whatever its exp claim says.
					observability.RecordTokenValidation(r.Context(), "revoked", "bearer")
					response.Fail(w, http.StatusUnauthorized, "authentication token expired")
				case errors.Is(err, service.ErrGateUserNotFound):
					observability.RecordTokenValidation(r.Context(), "unknown_user", "bearer")
					response.Fail(w, http.StatusNotFound, "user not found")
				case errors.Is(err, service.ErrCredentialInvalid), errors.Is(err, service.ErrCredentialExpired):
					observability.RecordTokenValidation(r.Context(), "invalid", "bearer")
					response.Fail(w, http.StatusUnauthorized, "authentication token invalid")
				default:
					response.Error(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			observability.RecordTokenValidation(r.Context(), "valid", "bearer")
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
		})
	}
}
