package model

import (
	"regexp"
	"strings"
	"time"
)

// TransactionType says which way an item moved.
type TransactionType string

// Transaction types.
const (
	TransactionLending   TransactionType = "lending"
	TransactionBorrowing TransactionType = "borrowing"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionLending || t == TransactionBorrowing
}

// Field limits.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxEmailLength       = 254
	MaxNotesLength       = 10000
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)

// Item is a single lending or borrowing record. It belongs to exactly one user.
type Item struct {
	ID              string          `json:"id"`
	OwnerID         int64           `json:"owner_id"`
	TransactionType TransactionType `json:"transaction_type"`
	ItemName        string          `json:"item_name"`
	ItemDescription string          `json:"item_description"`
	ContactName     string          `json:"contact_name"`
	ContactEmail    string          `json:"contact_email"`
	ReturnDate      string          `json:"return_date"`
	IsReturned      bool            `json:"is_returned"`
	ReturnedAt      *time.Time      `json:"returned_at"`
	Notes           string          `json:"notes"`
	HasPhoto        bool            `json:"has_photo"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item statuses used for list filtering.
const (
	ItemStatusActive   = "active"
	ItemStatusReturned = "returned"
)

// Status returns ItemStatusReturned or ItemStatusActive.
func (i *Item) Status() string {
	if i.IsReturned {
		return ItemStatusReturned
	}
	return ItemStatusActive
}

// NewItem is the input for creating an item.
type NewItem struct {
	TransactionType TransactionType `json:"transaction_type"`
	ItemName        string          `json:"item_name"`
	ItemDescription string          `json:"item_description"`
	ContactName     string          `json:"contact_name"`
	ContactEmail    string          `json:"contact_email"`
	ReturnDate      string          `json:"return_date"`
	Notes           string          `json:"notes"`
}

// Normalize trims text fields, defaults the transaction type and rewrites the
// return date in DateLayout when it parses.
func (n *NewItem) Normalize() {
	n.ItemName = strings.TrimSpace(n.ItemName)
	n.ItemDescription = strings.TrimSpace(n.ItemDescription)
	n.ContactName = strings.TrimSpace(n.ContactName)
	n.ContactEmail = strings.TrimSpace(n.ContactEmail)
	n.ReturnDate = strings.TrimSpace(n.ReturnDate)
	if n.TransactionType == "" {
		n.TransactionType = TransactionLending
	}
	if t, ok := ParseDate(n.ReturnDate); ok {
		n.ReturnDate = t.Format(DateLayout)
	}
}

// Validate normalizes n and checks every field, collecting all errors.
func (n *NewItem) Validate() error {
	n.Normalize()

	verr := &ValidationError{}
	if !n.TransactionType.Valid() {
		verr.Add("transaction_type", "must be lending or borrowing")
	}
	checkText(verr, "item_name", n.ItemName, true, MaxNameLength)
	checkText(verr, "item_description", n.ItemDescription, false, MaxDescriptionLength)
	checkText(verr, "contact_name", n.ContactName, true, MaxNameLength)
	checkEmail(verr, "contact_email", n.ContactEmail)
	checkDate(verr, "return_date", n.ReturnDate)
	if len(n.Notes) > MaxNotesLength {
		verr.Add("notes", "too long")
	}
	return verr.OrNil()
}

// ItemPatch is a partial update. Nil fields are left untouched.
type ItemPatch struct {
	TransactionType *TransactionType `json:"transaction_type,omitempty"`
	ItemName        *string          `json:"item_name,omitempty"`
	ItemDescription *string          `json:"item_description,omitempty"`
	ContactName     *string          `json:"contact_name,omitempty"`
	ContactEmail    *string          `json:"contact_email,omitempty"`
	ReturnDate      *string          `json:"return_date,omitempty"`
	IsReturned      *bool            `json:"is_returned,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p *ItemPatch) IsEmpty() bool {
	return p.TransactionType == nil && p.ItemName == nil && p.ItemDescription == nil &&
		p.ContactName == nil && p.ContactEmail == nil && p.ReturnDate == nil &&
		p.IsReturned == nil && p.Notes == nil
}

// Validate normalizes the provided fields and checks them.
func (p *ItemPatch) Validate() error {
	verr := &ValidationError{}
	if p.TransactionType != nil && !p.TransactionType.Valid() {
		verr.Add("transaction_type", "must be lending or borrowing")
	}
	if p.ItemName != nil {
		*p.ItemName = strings.TrimSpace(*p.ItemName)
		checkText(verr, "item_name", *p.ItemName, true, MaxNameLength)
	}
	if p.ItemDescription != nil {
		*p.ItemDescription = strings.TrimSpace(*p.ItemDescription)
		checkText(verr, "item_description", *p.ItemDescription, false, MaxDescriptionLength)
	}
	if p.ContactName != nil {
		*p.ContactName = strings.TrimSpace(*p.ContactName)
		checkText(verr, "contact_name", *p.ContactName, true, MaxNameLength)
	}
	if p.ContactEmail != nil {
		*p.ContactEmail = strings.TrimSpace(*p.ContactEmail)
		checkEmail(verr, "contact_email", *p.ContactEmail)
	}
	if p.ReturnDate != nil {
		if t, ok := ParseDate(*p.ReturnDate); ok {
			*p.ReturnDate = t.Format(DateLayout)
		}
		checkDate(verr, "return_date", *p.ReturnDate)
	}
	if p.Notes != nil && len(*p.Notes) > MaxNotesLength {
		verr.Add("notes", "too long")
	}
	return verr.OrNil()
}

// Apply copies the patch onto item and reports whether anything changed.
// Derived fields are left to the caller.
func (p *ItemPatch) Apply(item *Item) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	if p.TransactionType != nil && item.TransactionType != *p.TransactionType {
		item.TransactionType = *p.TransactionType
		changed = true
	}
	set(&item.ItemName, p.ItemName)
	set(&item.ItemDescription, p.ItemDescription)
	set(&item.ContactName, p.ContactName)
	set(&item.ContactEmail, p.ContactEmail)
	set(&item.ReturnDate, p.ReturnDate)
	set(&item.Notes, p.Notes)
	if p.IsReturned != nil && item.IsReturned != *p.IsReturned {
		item.IsReturned = *p.IsReturned
		changed = true
	}
	return changed
}

func checkText(verr *ValidationError, field, value string, required bool, max int) {
	if required && value == "" {
		verr.Add(field, "required")
		return
	}
	if len(value) > max {
		verr.Add(field, "too long")
	}
}

func checkEmail(verr *ValidationError, field, value string) {
	switch {
	case value == "":
		verr.Add(field, "required")
	case len(value) > MaxEmailLength:
		verr.Add(field, "too long")
	case !emailPattern.MatchString(value):
		verr.Add(field, "invalid email format")
	}
}

func checkDate(verr *ValidationError, field, value string) {
	if value == "" {
		verr.Add(field, "required")
		return
	}
	if _, ok := ParseDate(value); !ok {
		verr.Add(field, "must be a date (YYYY-MM-DD)")
	}
}
