// Package notify sends return reminders to an item's counterparty.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/lenderapp/lender/internal/model"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	ToName  string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DispatchError reports a reminder that could not be delivered. The item it
// refers to is never modified.
type DispatchError struct {
	ItemID string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("sending reminder for item %s: %v", e.ItemID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ErrNoRecipient is wrapped in a DispatchError when the item has no contact email.
var ErrNoRecipient = errors.New("item has no contact email")

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`Reminder: {{.Item.ItemName}}`))

	bodyTmpl = template.Must(template.New("body").Parse(`Hi {{.Item.ContactName}},

{{if .Lending -}}
This is a friendly reminder from {{.From}} about the {{.Item.ItemName}} they lent you.
{{- else -}}
This is a friendly note from {{.From}} about the {{.Item.ItemName}} they borrowed from you.
{{- end}}
{{if .HasDate}}It is due back on {{.Due}}.{{else}}No return date was set.{{end}}
{{if .Lending}}
When you get a chance, please arrange to return it.
{{- else}}
They have not forgotten about it and will be in touch about returning it.
{{- end}}

Thanks,
{{.From}} (sent with Lender)
`))
)

type reminderData struct {
	Item    *model.Item
	From    string
	Lending bool
	HasDate bool
	Due     string
}

// Dispatcher renders reminders and hands them to a Sender.
type Dispatcher struct {
	sender Sender
	log    *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(sender Sender, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{sender: sender, log: log}
}

// Compose renders the reminder for item sent on behalf of from.
func Compose(item *model.Item, from model.User) (Message, error) {
	name := strings.TrimSpace(from.Name)
	if name == "" {
		name = from.Email
	}
	_, hasDate := model.UsableDate(item.ReturnDate)
	data := reminderData{
		Item:    item,
		From:    name,
		Lending: item.TransactionType != model.TransactionBorrowing,
		HasDate: hasDate,
		Due:     model.FormatReturnDate(item.ReturnDate),
	}

	var subject, body bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("rendering subject: %w", err)
	}
	if err := bodyTmpl.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("rendering body: %w", err)
	}

	return Message{
		To:      item.ContactEmail,
		ToName:  item.ContactName,
		ReplyTo: from.Email,
		Subject: subject.String(),
		Body:    body.String(),
	}, nil
}

// Notify sends a reminder for item to its contact email. Failures are
// returned as *DispatchError and are not retried.
func (d *Dispatcher) Notify(ctx context.Context, item *model.Item, from model.User) error {
	if strings.TrimSpace(item.ContactEmail) == "" {
		return &DispatchError{ItemID: item.ID, Err: ErrNoRecipient}
	}

	msg, err := Compose(item, from)
	if err != nil {
		return &DispatchError{ItemID: item.ID, Err: err}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		d.log.ErrorContext(ctx, "reminder not sent", "item_id", item.ID, "error", err)
		return &DispatchError{ItemID: item.ID, Err: err}
	}

	d.log.InfoContext(ctx, "reminder sent", "item_id", item.ID, "owner_id", item.OwnerID)
	return nil
}
