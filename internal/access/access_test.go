package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenderapp/lender/internal/db"
	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/store"
)

func TestResolveItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alec, err := store.CreateUser(ctx, database, "Alec", "alec@example.com", "h")
	require.NoError(t, err)
	eve, err := store.CreateUser(ctx, database, "Eve", "eve@example.com", "h")
	require.NoError(t, err)

	item, err := store.CreateItem(ctx, database, alec.ID, model.NewItem{
		ItemName: "Tent", ContactName: "Sam", ContactEmail: "sam@example.com", ReturnDate: "2026-08-01",
	})
	require.NoError(t, err)

	owner := &Principal{UserID: alec.ID}
	got, err := ResolveItem(ctx, database, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	// Upper-case ids are the same UUID.
	_, err = ResolveItem(ctx, database, owner, uuidUpper(item.ID))
	require.NoError(t, err)

	cases := map[string]struct {
		p  *Principal
		id string
	}{
		"foreign owner":  {&Principal{UserID: eve.ID}, item.ID},
		"missing item":   {owner, uuid.NewString()},
		"malformed id":   {owner, "42"},
		"no principal":   {nil, item.ID},
		"zero principal": {PrincipalFrom(context.Background()), item.ID},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveItem(ctx, database, tc.p, tc.id)
			assert.Equal(t, ErrNotFound, err)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	assert.Nil(t, PrincipalFrom(context.Background()))
	assert.Nil(t, PrincipalFrom(WithPrincipal(context.Background(), &Principal{})))

	p := &Principal{UserID: 3, Name: "Alec"}
	assert.Same(t, p, PrincipalFrom(WithPrincipal(context.Background(), p)))
}

func uuidUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
