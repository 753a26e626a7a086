package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lenderapp/lender/internal/model"
)

// RowState is the display state of one list row.
type RowState int

// Row states.
const (
	RowActive RowState = iota
	RowReturned
	RowPending
)

func (s RowState) String() string {
	switch s {
	case RowActive:
		return "active"
	case RowReturned:
		return "returned"
	case RowPending:
		return "pending"
	}
	return fmt.Sprintf("RowState(%d)", int(s))
}

var (
	// ErrTogglePending is returned when a toggle is requested for a row whose
	// previous toggle has not settled.
	ErrTogglePending = errors.New("toggle already in progress")
	// ErrUnknownItem is returned for ids that are not in the list.
	ErrUnknownItem = errors.New("item not in list")
)

// DefaultToggleTimeout bounds the PATCH issued by Toggle.
const DefaultToggleTimeout = 10 * time.Second

// ItemService is the part of Client the item list needs.
type ItemService interface {
	ListItems(ctx context.Context, q ListQuery) ([]model.Item, error)
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error)
}

// Row is one rendered list entry.
type Row struct {
	Item  model.Item
	State RowState
}

// ItemList holds the signed-in user's items and toggles their returned flag
// optimistically: the flip is shown at once and either confirmed by the
// server record or undone by restoring the whole list as it was before.
type ItemList struct {
	svc     ItemService
	timeout time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	items    []model.Item
	inflight map[string]bool
	observer func([]Row)
}

// ListOption configures an ItemList.
type ListOption func(*ItemList)

// WithToggleTimeout sets how long a toggle may wait for the server.
func WithToggleTimeout(d time.Duration) ListOption {
	return func(l *ItemList) { l.timeout = d }
}

// WithObserver registers fn to receive the rows after every change. It is
// called without the list lock held.
func WithObserver(fn func([]Row)) ListOption {
	return func(l *ItemList) { l.observer = fn }
}

// WithListLogger sets the logger for failed toggles.
func WithListLogger(log *slog.Logger) ListOption {
	return func(l *ItemList) { l.log = log }
}

// NewItemList creates an empty list backed by svc.
func NewItemList(svc ItemService, opts ...ListOption) *ItemList {
	l := &ItemList{
		svc:      svc,
		timeout:  DefaultToggleTimeout,
		log:      slog.Default(),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the list with the server's items.
func (l *ItemList) Load(ctx context.Context) error {
	items, err := l.svc.ListItems(ctx, ListQuery{})
	if err != nil {
		l.log.ErrorContext(ctx, "loading items", "error", err)
		return err
	}

	l.mu.Lock()
	l.items = append([]model.Item(nil), items...)
	rows := l.rowsLocked()
	l.mu.Unlock()

	l.emit(rows)
	return nil
}

// Add appends a newly created item.
func (l *ItemList) Add(item model.Item) {
	l.mu.Lock()
	l.items = append(l.items, item)
	rows := l.rowsLocked()
	l.mu.Unlock()

	l.emit(rows)
}

// Remove drops an item from the list and reports whether it was present.
func (l *ItemList) Remove(id string) bool {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	rows := l.rowsLocked()
	l.mu.Unlock()

	l.emit(rows)
	return true
}

// Items returns a copy of the current items.
func (l *ItemList) Items() []model.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Item(nil), l.items...)
}

// Rows returns the current rows with their display state.
func (l *ItemList) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rowsLocked()
}

// State returns the display state of one row.
func (l *ItemList) State(id string) (RowState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return 0, false
	}
	return l.stateLocked(l.items[i]), true
}

// Toggle flips the returned flag of item id. The change is visible
// immediately with the row Pending. On success the row is replaced with the
// server record. On any failure, including the toggle timeout, the entire
// list is restored to the snapshot taken before the flip and the error is
// returned. The restore is literal: a toggle on another row that settled in
// the meantime reverts too, an item added with Add disappears and an item
// dropped with Remove comes back, until the next Load. Failed toggles are not
// retried.
func (l *ItemList) Toggle(ctx context.Context, id string) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrUnknownItem
	}
	if l.inflight[id] {
		l.mu.Unlock()
		return ErrTogglePending
	}

	snapshot := append([]model.Item(nil), l.items...)
	returned := !l.items[i].IsReturned
	l.items[i].IsReturned = returned
	l.inflight[id] = true
	rows := l.rowsLocked()
	l.mu.Unlock()
	l.emit(rows)

	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	updated, err := l.svc.UpdateItem(reqCtx, id, model.ItemPatch{IsReturned: &returned})
	cancel()
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTransport) {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
	}

	l.mu.Lock()
	delete(l.inflight, id)
	if err != nil {
		l.items = snapshot
	} else if j := l.indexLocked(id); j >= 0 {
		l.items[j] = *updated
	}
	rows = l.rowsLocked()
	l.mu.Unlock()
	l.emit(rows)

	if err != nil {
		l.log.ErrorContext(ctx, "toggling returned status", "item_id", id, "error", err)
		return err
	}
	return nil
}

func (l *ItemList) indexLocked(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *ItemList) stateLocked(item model.Item) RowState {
	switch {
	case l.inflight[item.ID]:
		return RowPending
	case item.IsReturned:
		return RowReturned
	default:
		return RowActive
	}
}

func (l *ItemList) rowsLocked() []Row {
	rows := make([]Row, len(l.items))
	for i, item := range l.items {
		rows[i] = Row{Item: item, State: l.stateLocked(item)}
	}
	return rows
}

func (l *ItemList) emit(rows []Row) {
	if l.observer != nil {
		l.observer(rows)
	}
}
