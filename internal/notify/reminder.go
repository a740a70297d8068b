// Package notify holds the outbound notification surface of the engine.
// This file renders the staged reminder emails. Rendering is plain text:
// HTML templating belongs to the delivery provider, not this engine.
package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ReminderLine is one displayable cart line, rebuilt from the stored
// product reference joined against the catalog.
type ReminderLine struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
	ImageURL string
}

// Discount is the stage-3 incentive. Distinct from the general coupon
// system: the code is a fixed, configured value, not minted per cart.
type Discount struct {
	Code    string
	Percent int
}

// ReminderInput carries everything needed to render one reminder.
type ReminderInput struct {
	Stage        int
	CustomerName string
	Email        string
	Total        decimal.Decimal
	Lines        []ReminderLine
	Discount     *Discount // nil except at stage 3
}

var stageSubjects = map[int]string{
	1: "You left something in your cart",
	2: "Still thinking it over?",
	3: "Last chance: your cart is about to expire",
}

// currency renders monetary values with en-locale digit grouping.
var currency = message.NewPrinter(language.English)

// BuildReminder renders the reminder email for the given stage. The caller
// guarantees at least one displayable line; the scheduler skips records
// whose items cannot be reconstructed.
func BuildReminder(in ReminderInput) Email {
	subject, ok := stageSubjects[in.Stage]
	if !ok {
		subject = stageSubjects[1]
	}

	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("You still have items waiting in your cart:\n\n")
	for _, ln := range in.Lines {
		b.WriteString("  - ")
		b.WriteString(ln.Name)
		fmt.Fprintf(&b, " x%d at %s\n", ln.Quantity, money(ln.Price))
	}
	fmt.Fprintf(&b, "\nCart total: %s\n", money(in.Total))

	if in.Discount != nil && in.Discount.Code != "" {
		fmt.Fprintf(&b, "\nComplete your order now and take %d%% off with code %s.\n",
			in.Discount.Percent, in.Discount.Code)
	}

	b.WriteString("\nYour cart is saved, so you can pick up right where you left off.\n")

	return Email{
		To:      in.Email,
		Subject: subject,
		Body:    b.String(),
	}
}

func money(d decimal.Decimal) string {
	f, _ := d.Float64()
	return currency.Sprintf("$%.2f", f)
}
