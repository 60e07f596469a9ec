// Package authctx supplies the authenticated identity from the request
// context. The transport layer (outside this module) authenticates the caller
// and stashes the identity; the core only ever reads it through
// ports.AuthContext and performs no credential check of its own.
package authctx

import (
	"context"
	"errors"

	"wallet-transfer-service/internal/core/ports"
)

type contextKey struct{}

// ErrNoIdentity is returned when no identity was attached to the context.
var ErrNoIdentity = errors.New("no identity in context")

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, ident ports.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// Supplier implements ports.AuthContext by reading the context value.
type Supplier struct{}

// NewSupplier creates a context-backed identity supplier.
func NewSupplier() *Supplier {
	return &Supplier{}
}

// CurrentUser returns the identity attached to ctx.
func (s *Supplier) CurrentUser(ctx context.Context) (ports.Identity, error) {
	ident, ok := ctx.Value(contextKey{}).(ports.Identity)
	if !ok {
		return ports.Identity{}, ErrNoIdentity
	}
	return ident, nil
}
