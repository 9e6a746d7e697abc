// Package identity carries the resolved acting user through a single
// request. The holder lives in the request context only; it is never
// process-wide state, so concurrent requests cannot observe each other.
package identity

import (
	"context"

	"github.com/delcom/healthtrack/internal/domain"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// WithUser returns a child context carrying the authenticated user.
// The authentication gate calls this at most once per request.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the acting user, or (nil, false) for an
// anonymous request.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok && u != nil
}

// IsAuthenticated reports whether a user has been resolved for this request.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}
