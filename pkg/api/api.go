// Package api defines the core interfaces and data structures for lucra.
package api

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransactionRecord is the normalized result of parsing one debit-alert email.
type TransactionRecord struct {
	// BankName is the display name of the bank the email was classified as.
	BankName string `json:"bank_name"`

	// Fields maps a bank template's field labels (e.g. "Account Number",
	// "Available Balance") to the extracted values. Labels the template did
	// not yield are absent from the map, never empty-valued.
	Fields map[string]string `json:"fields"`

	// Amount is the value extracted by the bank's own amount patterns.
	// It is nil when none of those patterns matched, even for an otherwise
	// successful parse; downstream filtering relies on that distinction.
	Amount *float64 `json:"amount"`

	// CurrencyCode is the detected ISO-style code (e.g. "NGN").
	CurrencyCode string `json:"currency_code"`

	// CurrencyID is the catalog identifier resolved from CurrencyCode.
	CurrencyID uuid.UUID `json:"currency_id"`
}

// DebitAlert is a parsed debit-alert email ready for persistence.
type DebitAlert struct {
	// MessageID is the mail provider's message ID (used for deduplication
	// and for marking the email as read after a successful write).
	MessageID string `json:"-"`

	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	EmailDate time.Time `json:"email_date"`

	Record TransactionRecord `json:"record"`
}

// Reader reads debit alerts from a mail source and sends them to the provided
// channel. Implementations should close the channel when done or on error.
// The ackChan carries message IDs of alerts that were successfully persisted.
type Reader interface {
	Read(ctx context.Context, out chan<- *DebitAlert, ackChan <-chan string) error
}

// Writer consumes debit alerts from a channel and persists them.
// Successfully written message IDs are sent to the ackChan.
type Writer interface {
	Write(ctx context.Context, in <-chan *DebitAlert, ackChan chan<- string) error
}

// CurrencyCatalog resolves currency codes against persistent storage.
// The catalog is authoritative: a detected code it does not know about makes
// the email unparseable, it is never auto-inserted.
type CurrencyCatalog interface {
	// LookupCurrency returns the identifier for code, or found=false when the
	// catalog has no active entry for it.
	LookupCurrency(ctx context.Context, code string) (id uuid.UUID, found bool, err error)
}

// Deduper reports which of the given message IDs have already been ingested.
type Deduper interface {
	ExistingMessageIDs(ctx context.Context, messageIDs []string) (map[string]bool, error)
}
