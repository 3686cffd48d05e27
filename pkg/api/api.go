// Package api defines the core interfaces and data structures for mailtxn.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RawMessage is a mail message as returned by the provider's message API.
// Only the fields the extraction pipeline reads are kept.
type RawMessage struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	// InternalDate is milliseconds since the epoch, as a decimal string.
	InternalDate string `json:"internalDate,omitempty"`
}

// TransactionType labels which extractor recognised a transaction.
type TransactionType string

// Transaction types, in the order the pipeline can produce them.
const (
	TypeUPIDebit  TransactionType = "UPI Debit"
	TypeUPICredit TransactionType = "UPI Credit"
	TypeCardDebit TransactionType = "Card Debit"
	TypeDebit     TransactionType = "Debit"
	TypeCredit    TransactionType = "Credit"
	TypeUnknown   TransactionType = "Unknown Transaction"
)

// UnknownDate is the date of an unparsed message without a usable internalDate.
const UnknownDate = "Unknown"

const (
	amountPrefix  = "Rs. "
	unparsedLabel = "Raw Message"
)

// TransactionRecord holds the fields extracted from a transaction alert.
// Optional fields are empty when the extractor could not find them.
type TransactionRecord struct {
	ID   string          `json:"id"`
	Type TransactionType `json:"type"`
	// Amount is always formatted as "Rs. <digits>".
	Amount        string `json:"amount,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Date          string `json:"date,omitempty"`
	Reference     string `json:"reference,omitempty"`
	Merchant      string `json:"merchant,omitempty"`
	VPAID         string `json:"vpaId,omitempty"`
}

// UnparsedRecord is emitted for a message no extractor could handle.
type UnparsedRecord struct {
	ID      string      `json:"id"`
	Snippet string      `json:"snippet"`
	Date    string      `json:"date"`
	Raw     *RawMessage `json:"raw"`
}

// Item is one pipeline output: a *TransactionRecord or an *UnparsedRecord.
type Item interface {
	MessageID() string
	item()
}

// MessageID returns the id of the source message.
func (t *TransactionRecord) MessageID() string { return t.ID }

func (*TransactionRecord) item() {}

// MessageID returns the id of the source message.
func (u *UnparsedRecord) MessageID() string { return u.ID }

func (*UnparsedRecord) item() {}

// FormatAmount renders a captured amount in the canonical "Rs. <digits>" form.
func FormatAmount(digits string) string {
	return amountPrefix + digits
}

// AmountValue parses Amount into a decimal. It reports false when the amount
// is absent or not numeric.
func (t *TransactionRecord) AmountValue() (decimal.Decimal, bool) {
	if t.Amount == "" {
		return decimal.Zero, false
	}
	digits := strings.TrimPrefix(t.Amount, amountPrefix)
	digits = strings.ReplaceAll(digits, ",", "")
	digits = strings.TrimSuffix(digits, ".")
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Row is the display form of an item, with "-" for absent fields.
// Unparsed items show the snippet prefix where the merchant would be.
type Row struct {
	ID        string
	Date      string
	Amount    string
	Value     string
	Type      string
	Account   string
	Merchant  string
	VPAID     string
	Reference string
}

// RowHeaders are the column titles matching Row.Values.
var RowHeaders = []string{"ID", "Date", "Amount", "Value", "Type", "Account", "Merchant/Recipient", "VPA ID", "Reference"}

// Values returns the row in RowHeaders order.
func (r Row) Values() []string {
	return []string{r.ID, r.Date, r.Amount, r.Value, r.Type, r.Account, r.Merchant, r.VPAID, r.Reference}
}

// snippetPreviewLen is the number of runes of an unparsed snippet shown in a row.
const snippetPreviewLen = 50

// ToRow converts an item into its display row.
func ToRow(it Item) Row {
	switch v := it.(type) {
	case *TransactionRecord:
		row := Row{
			ID:        v.ID,
			Date:      orPlaceholder(v.Date),
			Amount:    orPlaceholder(v.Amount),
			Type:      string(v.Type),
			Account:   orPlaceholder(v.AccountNumber),
			Merchant:  orPlaceholder(v.Merchant),
			VPAID:     orPlaceholder(v.VPAID),
			Reference: orPlaceholder(v.Reference),
		}
		if d, ok := v.AmountValue(); ok {
			row.Value = d.StringFixed(2)
		}
		return row
	case *UnparsedRecord:
		merchant := "-"
		if v.Snippet != "" {
			merchant = preview(v.Snippet) + "..."
		}
		return Row{
			ID:        v.ID,
			Date:      v.Date,
			Amount:    "-",
			Type:      unparsedLabel,
			Account:   "-",
			Merchant:  merchant,
			VPAID:     "-",
			Reference: "-",
		}
	default:
		panic(fmt.Sprintf("api: unexpected item type %T", it))
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) > snippetPreviewLen {
		runes = runes[:snippetPreviewLen]
	}
	return string(runes)
}

// Reader fetches a fully materialized batch of messages from a source.
type Reader interface {
	Read(ctx context.Context) ([]*RawMessage, error)
}

// Writer consumes items from a channel and writes them to a destination.
// It returns once the channel is closed and everything has been flushed.
type Writer interface {
	Write(ctx context.Context, in <-chan Item) error
}
