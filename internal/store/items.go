package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/lenderapp/lender/internal/model"
)

// List orderings.
const (
	OrderCreated    = "created"
	OrderReturnDate = "return_date"
)

// MaxListLimit caps a single page of items.
const MaxListLimit = 500

// ListOptions narrows and orders ListItems. The zero value lists everything in
// creation order.
type ListOptions struct {
	Status string // "", model.ItemStatusActive or model.ItemStatusReturned
	Order  string // "", OrderCreated or OrderReturnDate
	Limit  int
	Offset int
}

// Validate checks option values.
func (o ListOptions) Validate() error {
	verr := &model.ValidationError{}
	switch o.Status {
	case "", model.ItemStatusActive, model.ItemStatusReturned:
	default:
		verr.Add("status", "must be active or returned")
	}
	switch o.Order {
	case "", OrderCreated, OrderReturnDate:
	default:
		verr.Add("order", "must be created or return_date")
	}
	if o.Limit < 0 || o.Limit > MaxListLimit {
		verr.Add("limit", fmt.Sprintf("must be between 0 and %d", MaxListLimit))
	}
	if o.Offset < 0 {
		verr.Add("offset", "must be non-negative")
	}
	return verr.OrNil()
}

var itemColumns = []string{
	"id", "owner_id", "transaction_type", "item_name", "item_description",
	"contact_name", "contact_email", "return_date", "is_returned", "returned_at",
	"notes", "created_at", "updated_at",
	"EXISTS(SELECT 1 FROM item_photos p WHERE p.item_id = items.id) AS has_photo",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var txType string
	err := row.Scan(&item.ID, &item.OwnerID, &txType, &item.ItemName, &item.ItemDescription,
		&item.ContactName, &item.ContactEmail, &item.ReturnDate, &item.IsReturned, &item.ReturnedAt,
		&item.Notes, &item.CreatedAt, &item.UpdatedAt, &item.HasPhoto)
	if err != nil {
		return nil, err
	}
	item.TransactionType = model.TransactionType(txType)
	return &item, nil
}

func selectItems(ownerID int64) sq.SelectBuilder {
	return sq.Select(itemColumns...).From("items").Where(sq.Eq{"owner_id": ownerID})
}

// CreateItem validates input and stores a new item owned by ownerID.
func CreateItem(ctx context.Context, db *sql.DB, ownerID int64, in model.NewItem) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	query, args, err := sq.Insert("items").
		Columns("id", "owner_id", "transaction_type", "item_name", "item_description",
			"contact_name", "contact_email", "return_date", "is_returned", "notes",
			"created_at", "updated_at").
		Values(id, ownerID, string(in.TransactionType), in.ItemName, in.ItemDescription,
			in.ContactName, in.ContactEmail, in.ReturnDate, 0, in.Notes, now, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, ownerID, id)
}

// GetItem returns the item with the given id if ownerID owns it.
func GetItem(ctx context.Context, db *sql.DB, ownerID int64, id string) (*model.Item, error) {
	query, args, err := selectItems(ownerID).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	item, err := scanItem(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns ownerID's items, oldest first unless opts say otherwise.
func ListItems(ctx context.Context, db *sql.DB, ownerID int64, opts ListOptions) ([]model.Item, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	b := selectItems(ownerID)
	switch opts.Status {
	case model.ItemStatusActive:
		b = b.Where(sq.Eq{"is_returned": 0})
	case model.ItemStatusReturned:
		b = b.Where(sq.Eq{"is_returned": 1})
	}
	if opts.Order == OrderReturnDate {
		b = b.OrderBy("return_date", "seq")
	} else {
		b = b.OrderBy("seq")
	}
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit)).Offset(uint64(opts.Offset))
	} else if opts.Offset > 0 {
		b = b.Suffix("LIMIT -1 OFFSET ?", opts.Offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies the provided patch fields to ownerID's item and returns the
// stored record. The write is one UPDATE statement that only matches when a
// field actually differs, so repeating a patch leaves the record untouched,
// including returned_at and updated_at.
func UpdateItem(ctx context.Context, db *sql.DB, ownerID int64, id string, patch model.ItemPatch) (*model.Item, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return GetItem(ctx, db, ownerID, id)
	}

	now := time.Now().UTC()
	b := sq.Update("items").Where(sq.Eq{"owner_id": ownerID, "id": id})
	var differs sq.Or

	set := func(col string, v any) {
		b = b.Set(col, v)
		differs = append(differs, sq.NotEq{col: v})
	}
	if patch.TransactionType != nil {
		set("transaction_type", string(*patch.TransactionType))
	}
	if patch.ItemName != nil {
		set("item_name", *patch.ItemName)
	}
	if patch.ItemDescription != nil {
		set("item_description", *patch.ItemDescription)
	}
	if patch.ContactName != nil {
		set("contact_name", *patch.ContactName)
	}
	if patch.ContactEmail != nil {
		set("contact_email", *patch.ContactEmail)
	}
	if patch.ReturnDate != nil {
		set("return_date", *patch.ReturnDate)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.IsReturned != nil {
		returned := boolInt(*patch.IsReturned)
		set("is_returned", returned)
		b = b.Set("returned_at", sq.Expr("CASE WHEN ? = 1 THEN COALESCE(returned_at, ?) ELSE NULL END", returned, now))
	}
	b = b.Set("updated_at", now).Where(differs)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	// Zero affected rows means either no change or no such item; the read
	// tells them apart.
	return GetItem(ctx, db, ownerID, id)
}

// DeleteItem permanently removes ownerID's item.
func DeleteItem(ctx context.Context, db *sql.DB, ownerID int64, id string) error {
	query, args, err := sq.Delete("items").Where(sq.Eq{"owner_id": ownerID, "id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
