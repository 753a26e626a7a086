package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lenderapp/lender/internal/model"
)

func mustUser(t *testing.T, database *sql.DB, name string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, name, fmt.Sprintf("%s@example.com", name), "hash")
	require.NoError(t, err)
	return u
}

func newItemInput(name string) model.NewItem {
	return model.NewItem{
		ItemName:     name,
		ContactName:  "Sam",
		ContactEmail: "sam@example.com",
		ReturnDate:   "2026-12-01",
	}
}

func mustItem(t *testing.T, database *sql.DB, ownerID int64, name string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, ownerID, newItemInput(name))
	require.NoError(t, err)
	return item
}

func ptr[T any](v T) *T { return &v }
