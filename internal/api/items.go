package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lenderapp/lender/internal/access"
	"github.com/lenderapp/lender/internal/metrics"
	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/notify"
	"github.com/lenderapp/lender/internal/photo"
	"github.com/lenderapp/lender/internal/store"
)

// Notifier sends a reminder about item on behalf of from.
type Notifier interface {
	Notify(ctx context.Context, item *model.Item, from model.User) error
}

// ItemsHandler handles item endpoints. Every handler that takes an {id}
// resolves it through access.ResolveItem.
type ItemsHandler struct {
	DB        *sql.DB
	Notifier  Notifier
	Reminders *ReminderLimiter
}

// List handles GET /api/items. Callers without a session get an empty list.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	if p == nil {
		jsonResponse(w, http.StatusOK, []model.Item{})
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err, "parsing list options")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, p.UserID, opts)
	if err != nil {
		writeError(w, r, err, "listing items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

func listOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Status: q.Get("status"),
		Order:  q.Get("order"),
	}

	verr := &model.ValidationError{}
	parse := func(name string, dst *int) {
		raw := q.Get(name)
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add(name, "must be an integer")
			return
		}
		*dst = n
	}
	parse("limit", &opts.Limit)
	parse("offset", &opts.Offset)
	return opts, verr.OrNil()
}

// Create handles POST /api/items. The owner is always the caller.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())

	var in model.NewItem
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, p.UserID, in)
	if err != nil {
		writeError(w, r, err, "creating item")
		return
	}

	requestLogger(r.Context()).Info("item created", "item_id", item.ID, "owner_id", p.UserID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := access.ResolveItem(r.Context(), h.DB, access.PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "getting item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PATCH /api/items/{id}. Only the supplied fields change;
// returned_at follows is_returned.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	item, err := access.ResolveItem(r.Context(), h.DB, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "resolving item")
		return
	}

	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.UpdateItem(r.Context(), h.DB, p.UserID, item.ID, patch)
	if err != nil {
		writeError(w, r, err, "updating item")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	item, err := access.ResolveItem(r.Context(), h.DB, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "resolving item")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, p.UserID, item.ID); err != nil {
		writeError(w, r, err, "deleting item")
		return
	}

	requestLogger(r.Context()).Info("item deleted", "item_id", item.ID, "owner_id", p.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// Notify handles POST /api/items/{id}/notify. It sends one reminder and
// never modifies the item.
func (h *ItemsHandler) Notify(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	item, err := access.ResolveItem(r.Context(), h.DB, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "resolving item")
		return
	}

	if h.Reminders != nil {
		if ok, wait := h.Reminders.Allow(p.UserID); !ok {
			metrics.RecordReminder(metrics.ReminderLimited)
			if wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
			}
			jsonError(w, http.StatusTooManyRequests, "too many reminders, try again later")
			return
		}
	}

	from := model.User{ID: p.UserID, Name: p.Name, Email: p.Email}
	if err := h.Notifier.Notify(r.Context(), item, from); err != nil {
		metrics.RecordReminder(metrics.ReminderFailed)
		var derr *notify.DispatchError
		if errors.As(err, &derr) {
			jsonError(w, http.StatusBadGateway, "reminder could not be sent")
			return
		}
		writeError(w, r, err, "sending reminder")
		return
	}

	metrics.RecordReminder(metrics.ReminderSent)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "reminder sent"})
}

// UploadPhoto handles PUT /api/items/{id}/photo with a multipart "photo" field.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	item, err := access.ResolveItem(r.Context(), h.DB, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "resolving item")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes+1<<20)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, model.NewValidationError("photo", photo.ErrTooLarge.Error()), "reading photo")
			return
		}
		writeError(w, r, model.NewValidationError("photo", "required"), "reading photo")
		return
	}
	defer file.Close()

	data, err := photo.Normalize(file)
	if errors.Is(err, photo.ErrUnsupported) || errors.Is(err, photo.ErrTooLarge) {
		writeError(w, r, model.NewValidationError("photo", err.Error()), "processing photo")
		return
	}
	if err != nil {
		writeError(w, r, err, "processing photo")
		return
	}

	if err := store.SetItemPhoto(r.Context(), h.DB, p.UserID, item.ID, data, photo.StoredMIME); err != nil {
		writeError(w, r, err, "storing photo")
		return
	}

	updated, err := store.GetItem(r.Context(), h.DB, p.UserID, item.ID)
	if err != nil {
		writeError(w, r, err, "getting item")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// GetPhoto handles GET /api/items/{id}/photo.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFrom(r.Context())
	item, err := access.ResolveItem(r.Context(), h.DB, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "resolving item")
		return
	}

	data, mime, err := store.GetItemPhoto(r.Context(), h.DB, p.UserID, item.ID)
	if err != nil {
		writeError(w, r, err, "getting photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
