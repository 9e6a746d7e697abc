package web

import (
	"net/http"

	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/service"
)

// SessionAuth guards the form routes. The credential comes from the
// cookie session and runs through the same gate as the bearer API; any
// failure clears the session and redirects the browser to the login page.
func SessionAuth(gate *service.Gate, sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessions.Token(r)
			if token == "" {
				observability.RecordTokenValidation(r.Context(), "missing", "session")
				http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
				return
			}
			user, err := gate.Resolve(r.Context(), token)
			if err != nil {
				observability.RecordTokenValidation(r.Context(), "invalid", "session")
				_ = sessions.Clear(w, r)
				http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
				return
			}
			observability.RecordTokenValidation(r.Context(), "valid", "session")
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
		})
	}
}
