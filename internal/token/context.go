package token

import (
	"context"
	"strings"
)

type ctxKey string

const identityKey ctxKey = "token_identity"

// ContextWithIdentity stores the verified token identity in the context.
func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	if !ok || strings.TrimSpace(v.Subject) == "" {
		return Identity{}, false
	}
	return v, true
}
