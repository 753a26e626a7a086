package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lenderapp/lender/internal/model"
)

// Paths a signed-out user is sent to from the lend form.
const (
	LoginPath    = "/login"
	RegisterPath = "/register"
)

// ErrLoginRequired is matched by errors.Is for LoginRequiredError.
var ErrLoginRequired = errors.New("login required")

// LoginRequiredError tells a signed-out user where to sign in or register.
type LoginRequiredError struct {
	LoginPath    string
	RegisterPath string
}

func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("login required: sign in at %s or register at %s", e.LoginPath, e.RegisterPath)
}

func (e *LoginRequiredError) Unwrap() error { return ErrLoginRequired }

// Rough return periods offered by the lend form.
const (
	Period1Week   = "1week"
	Period1Month  = "1month"
	Period3Months = "3months"
	Period6Months = "6months"
	Period1Year   = "1year"
)

// ReturnDateFor returns the date period after now, as YYYY-MM-DD.
func ReturnDateFor(period string, now time.Time) (string, error) {
	var due time.Time
	switch period {
	case Period1Week:
		due = now.AddDate(0, 0, 7)
	case Period1Month:
		due = now.AddDate(0, 1, 0)
	case Period3Months:
		due = now.AddDate(0, 3, 0)
	case Period6Months:
		due = now.AddDate(0, 6, 0)
	case Period1Year:
		due = now.AddDate(1, 0, 0)
	default:
		return "", fmt.Errorf("unknown return period %q", period)
	}
	return due.Format(model.DateLayout), nil
}

// ItemCreator is the part of Client the lend form needs.
type ItemCreator interface {
	Authenticated() bool
	FetchCSRF(ctx context.Context) error
	CreateItem(ctx context.Context, in model.NewItem) (*model.Item, error)
}

// LendForm records a new lending or borrowing.
type LendForm struct {
	svc  ItemCreator
	list *ItemList
	log  *slog.Logger
}

// NewLendForm creates a form that appends saved items to list, which may be nil.
func NewLendForm(svc ItemCreator, list *ItemList, log *slog.Logger) *LendForm {
	if log == nil {
		log = slog.Default()
	}
	return &LendForm{svc: svc, list: list, log: log}
}

// Submit validates in with the server's rules and saves it. Signed-out users
// get a *LoginRequiredError and nothing is sent.
func (f *LendForm) Submit(ctx context.Context, in model.NewItem) (*model.Item, error) {
	if !f.svc.Authenticated() {
		return nil, &LoginRequiredError{LoginPath: LoginPath, RegisterPath: RegisterPath}
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := f.svc.FetchCSRF(ctx); err != nil {
		f.log.ErrorContext(ctx, "fetching csrf cookie", "error", err)
		return nil, err
	}

	item, err := f.svc.CreateItem(ctx, in)
	if err != nil {
		f.log.ErrorContext(ctx, "submitting item", "error", err)
		return nil, err
	}

	if f.list != nil {
		f.list.Add(*item)
	}
	return item, nil
}
