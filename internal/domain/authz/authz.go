// Package authz models the capability a caller must hold for mutating operations.
// Every mutating use case receives a Principal explicitly and checks it before touching the store.
package authz

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// Role is the coarse authority level of a principal.
type Role string

// Known roles.
const (
	RoleReader     Role = "reader"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Principal identifies the caller of an operation.
type Principal struct {
	Subject string
	Role    Role
	Cities  []string // cities an admin may write; ignored for superadmin
}

// Anonymous is the principal of unauthenticated read-only callers.
func Anonymous() Principal { return Principal{Subject: "anonymous", Role: RoleReader} }

// System is the principal used by local operator tooling.
func System() Principal { return Principal{Subject: "system", Role: RoleSuperadmin} }

// CanWriteCity returns nil when p may ingest into or delete from the city.
func (p Principal) CanWriteCity(citySlug string) error {
	switch p.Role {
	case RoleSuperadmin:
		return nil
	case RoleAdmin:
		if slices.Contains(p.Cities, citySlug) {
			return nil
		}
		return fmt.Errorf("%s may not write city %q: %w", p.Subject, citySlug, domain.ErrForbidden)
	default:
		return fmt.Errorf("%s has role %q: %w", p.Subject, p.Role, domain.ErrForbidden)
	}
}

// CanPurgeAll returns nil when p may delete the whole document collection.
func (p Principal) CanPurgeAll() error {
	if p.Role == RoleSuperadmin {
		return nil
	}
	return fmt.Errorf("%s may not purge all documents: %w", p.Subject, domain.ErrForbidden)
}

// ParseRole maps a claim value to a Role, defaulting to reader.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleSuperadmin:
		return Role(s)
	default:
		return RoleReader
	}
}

type principalKey struct{}

// WithPrincipal stores the authenticated principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by the auth layer, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}
