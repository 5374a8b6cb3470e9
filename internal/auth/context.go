package auth

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

type organizationIDKey struct{}

func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, c.UserID)
	return context.WithValue(ctx, organizationIDKey{}, c.OrganizationID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}

// OrganizationIDFromContext returns the organization every query of the
// request is scoped to.
func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(organizationIDKey{}).(uuid.UUID)
	return id, ok
}
