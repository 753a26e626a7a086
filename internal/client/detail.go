package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lenderapp/lender/internal/model"
)

// ErrAlreadySending is returned by ItemDetail.Notify while a reminder is in
// flight.
var ErrAlreadySending = errors.New("reminder already sending")

// ErrNotLoaded is returned when the detail view has no item.
var ErrNotLoaded = errors.New("item not loaded")

// DetailService is the part of Client the detail view needs.
type DetailService interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	Notify(ctx context.Context, id string) error
}

// ItemDetail is the single-item view. Every change waits for the server and
// local state only moves after a successful response.
type ItemDetail struct {
	svc DetailService
	id  string
	log *slog.Logger

	mu      sync.Mutex
	item    *model.Item
	sending bool
	deleted bool
}

// NewItemDetail creates a view for item id. A nil logger uses slog.Default().
func NewItemDetail(svc DetailService, id string, log *slog.Logger) *ItemDetail {
	if log == nil {
		log = slog.Default()
	}
	return &ItemDetail{svc: svc, id: id, log: log}
}

// Load fetches the item.
func (d *ItemDetail) Load(ctx context.Context) error {
	item, err := d.svc.GetItem(ctx, d.id)
	if err != nil {
		d.log.ErrorContext(ctx, "loading item", "item_id", d.id, "error", err)
		return err
	}
	d.set(item)
	return nil
}

// Item returns the loaded item.
func (d *ItemDetail) Item() (model.Item, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.item == nil {
		return model.Item{}, false
	}
	return *d.item, true
}

// Sending reports whether a reminder is in flight.
func (d *ItemDetail) Sending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sending
}

// Deleted reports whether the item was deleted through this view.
func (d *ItemDetail) Deleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted
}

func (d *ItemDetail) set(item *model.Item) {
	d.mu.Lock()
	d.item = item
	d.mu.Unlock()
}

func (d *ItemDetail) update(ctx context.Context, patch model.ItemPatch, action string) error {
	if _, ok := d.Item(); !ok {
		return ErrNotLoaded
	}
	item, err := d.svc.UpdateItem(ctx, d.id, patch)
	if err != nil {
		d.log.ErrorContext(ctx, action, "item_id", d.id, "error", err)
		return err
	}
	d.set(item)
	return nil
}

// SaveNotes stores notes on the server.
func (d *ItemDetail) SaveNotes(ctx context.Context, notes string) error {
	return d.update(ctx, model.ItemPatch{Notes: &notes}, "saving notes")
}

// SetReturned sets the returned flag on the server.
func (d *ItemDetail) SetReturned(ctx context.Context, returned bool) error {
	return d.update(ctx, model.ItemPatch{IsReturned: &returned}, "changing status")
}

// Delete removes the item.
func (d *ItemDetail) Delete(ctx context.Context) error {
	if err := d.svc.DeleteItem(ctx, d.id); err != nil {
		d.log.ErrorContext(ctx, "deleting item", "item_id", d.id, "error", err)
		return err
	}
	d.mu.Lock()
	d.item = nil
	d.deleted = true
	d.mu.Unlock()
	return nil
}

// Notify sends a reminder to the item's contact. Only one reminder can be in
// flight at a time.
func (d *ItemDetail) Notify(ctx context.Context) error {
	d.mu.Lock()
	if d.sending {
		d.mu.Unlock()
		return ErrAlreadySending
	}
	d.sending = true
	d.mu.Unlock()

	err := d.svc.Notify(ctx, d.id)

	d.mu.Lock()
	d.sending = false
	d.mu.Unlock()

	if err != nil {
		d.log.ErrorContext(ctx, "sending reminder", "item_id", d.id, "error", err)
		return err
	}
	return nil
}
