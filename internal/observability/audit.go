package observability

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/delcom/healthtrack/internal/identity"
)

// Audit emits a structured log line for security-relevant request events
// (logins, logouts, token rejections, photo swaps). The acting user is
// taken from the request context when a gate has already resolved one;
// pre-auth events pass the identity they know via attrs.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"remote", auditRemote(r),
		"request_id", r.Header.Get("X-Request-Id"),
	}
	if user, ok := identity.UserFromContext(r.Context()); ok {
		base = append(base, "actor_id", user.ID.String())
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

func auditRemote(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
