package notionsync

import (
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the mirror database.
const (
	PropSource        = "Source"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCategory      = "Category"
	PropCurrency      = "Currency"
	PropNotes         = "Notes"
	PropRecordedAt    = "Recorded At"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

func dateValue(t time.Time) *notionapi.DateObject {
	d := notionapi.Date(t)
	return &notionapi.DateObject{Start: &d}
}

// TransactionToNotionProperties maps a ledger transaction onto the mirror
// database columns. Expenses are written as negative amounts so Notion sums
// give the balance.
func TransactionToNotionProperties(t domain.Transaction, currency string) notionapi.Properties {
	amount := t.Amount.InexactFloat64()
	if t.Kind == domain.KindExpense {
		amount = -amount
	}

	props := notionapi.Properties{
		PropSource:        notionapi.TitleProperty{Title: richText(t.Source)},
		PropTransactionID: notionapi.RichTextProperty{RichText: richText(t.ID)},
		PropAmount:        notionapi.NumberProperty{Number: amount},
		PropType:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(t.Kind)}},
		PropCategory:      notionapi.SelectProperty{Select: notionapi.Option{Name: t.Category}},
		PropCurrency:      notionapi.SelectProperty{Select: notionapi.Option{Name: currency}},
	}

	if d, ok := t.Day(); ok {
		props[PropDate] = notionapi.DateProperty{Date: dateValue(d)}
	}
	if t.Notes != "" {
		props[PropNotes] = notionapi.RichTextProperty{RichText: richText(t.Notes)}
	}
	if !t.CreatedAt.IsZero() {
		props[PropRecordedAt] = notionapi.DateProperty{Date: dateValue(t.CreatedAt.UTC())}
	}
	return props
}

// extractTransactionID reads the Transaction ID column of a mirrored page.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	case notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	}
	return ""
}
