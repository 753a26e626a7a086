package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetItemPhoto stores or replaces the photo of ownerID's item.
func SetItemPhoto(ctx context.Context, db *sql.DB, ownerID int64, itemID string, data []byte, mime string) error {
	// The ownership check and the write share one statement: the SELECT only
	// yields a row for the owner's item.
	result, err := db.ExecContext(ctx,
		`INSERT INTO item_photos (item_id, data, mime, updated_at)
		 SELECT id, ?, ?, ? FROM items WHERE id = ? AND owner_id = ?
		 ON CONFLICT (item_id) DO UPDATE SET data = excluded.data, mime = excluded.mime, updated_at = excluded.updated_at`,
		data, mime, time.Now().UTC(), itemID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking photo rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemPhoto returns the photo bytes and MIME type of ownerID's item.
func GetItemPhoto(ctx context.Context, db *sql.DB, ownerID int64, itemID string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT p.data, p.mime FROM item_photos p
		 JOIN items i ON i.id = p.item_id
		 WHERE p.item_id = ? AND i.owner_id = ?`, itemID, ownerID,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return data, mime, nil
}
