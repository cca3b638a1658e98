package rbac

import (
	"context"
	"path"
)

// Policy maps a role to the permission patterns it grants. Patterns use
// path.Match syntax, so "admin:*" covers every admin permission.
type Policy map[string][]string

type Checker struct {
	policy Policy
}

// NewChecker returns a checker for p, or for DefaultPolicy when p is nil.
func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	return &Checker{policy: p}
}

// Allowed reports whether role is granted at least one of perms.
func (c *Checker) Allowed(role string, perms ...string) bool {
	for _, pattern := range c.policy[role] {
		for _, perm := range perms {
			if ok, _ := path.Match(pattern, perm); ok {
				return true
			}
		}
	}
	return false
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(roleKey{}).(string)
	return s
}
