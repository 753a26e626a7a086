package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/lenderapp/lender/internal/model"
)

// DueLabel describes how an item stands against its return date, counted in
// calendar days in now's location.
func DueLabel(item model.Item, now time.Time) string {
	if item.IsReturned {
		return "Returned"
	}
	due, ok := model.UsableDate(item.ReturnDate)
	if !ok {
		return "No due date"
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dy, dm, dd := due.Date()
	days := int(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Sub(today).Hours() / 24)

	switch {
	case days > 0:
		return fmt.Sprintf("%d %s remaining", days, plural(days, "day"))
	case days < 0:
		return fmt.Sprintf("%d %s overdue", -days, plural(-days, "day"))
	default:
		return "Due today!"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Greeting returns a time-of-day greeting for name.
func Greeting(name string, now time.Time) string {
	var g string
	switch h := now.Hour(); {
	case h < 12:
		g = "Good morning"
	case h < 18:
		g = "Good afternoon"
	default:
		g = "Good evening"
	}
	if name = strings.TrimSpace(name); name == "" {
		return g
	}
	return g + ", " + name
}
