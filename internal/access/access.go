// Package access resolves request-supplied item ids to records owned by the
// requesting principal.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/store"
)

// ErrNotFound is the single outcome for ids that are malformed, missing, or
// owned by someone else. It wraps store.ErrNotFound.
var ErrNotFound = fmt.Errorf("item %w", store.ErrNotFound)

// Principal is the authenticated user a request acts for.
type Principal struct {
	UserID int64
	Name   string
	Email  string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	if p == nil || p.UserID <= 0 {
		return nil
	}
	return p
}

// ParseItemID validates the shape of a raw item id.
func ParseItemID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// ResolveItem returns the item identified by rawID if p owns it. Every other
// case returns ErrNotFound; storage failures are returned as-is.
func ResolveItem(ctx context.Context, db *sql.DB, p *Principal, rawID string) (*model.Item, error) {
	if p == nil {
		return nil, ErrNotFound
	}
	id, ok := ParseItemID(rawID)
	if !ok {
		return nil, ErrNotFound
	}

	item, err := store.GetItem(ctx, db, p.UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
