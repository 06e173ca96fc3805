// Package rbac maps roles to permissions. A permission ending in "*" grants
// every permission sharing its prefix.
package rbac

import (
	"context"
	"slices"
	"strings"
)

// Policy lists the permissions of each role.
type Policy map[string][]string

type Checker struct {
	policy Policy
}

func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	return &Checker{policy: p}
}

func (c *Checker) Has(role, perm string) bool {
	return slices.ContainsFunc(c.policy[role], func(p string) bool { return matchPerm(p, perm) })
}

func (c *Checker) Any(role string, perms ...string) bool {
	return slices.ContainsFunc(perms, func(p string) bool { return c.Has(role, p) })
}

func matchPerm(pattern, perm string) bool {
	if pattern == perm {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	return ok && strings.HasPrefix(perm, prefix)
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// Can reports whether the caller's role grants perm.
func (c *Checker) Can(ctx context.Context, perm string) bool {
	return c.Has(RoleFromContext(ctx), perm)
}
