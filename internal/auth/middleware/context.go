package auth

import (
	"context"

	"github.com/mind-engage/mindengage-practice/internal/rbac"
)

// Identity is the caller as asserted by a verified token. The learner id is
// opaque; it is only ever compared against record ownership.
type Identity struct {
	LearnerID string
	Role      string
}

type ctxKey struct{}

// WithIdentity stores id and exposes its role to rbac checks.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, id)
	return rbac.WithRole(ctx, id.Role)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// LearnerID returns the caller's learner id, or "" outside an authenticated
// request.
func LearnerID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.LearnerID
}
