package parser

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

// fakeCatalog is an in-memory CurrencyCatalog for tests.
type fakeCatalog struct {
	codes map[string]uuid.UUID
	err   error
}

func (c *fakeCatalog) LookupCurrency(_ context.Context, code string) (uuid.UUID, bool, error) {
	if c.err != nil {
		return uuid.Nil, false, c.err
	}
	id, ok := c.codes[code]
	return id, ok, nil
}

func newFakeCatalog(codes ...string) *fakeCatalog {
	c := &fakeCatalog{codes: make(map[string]uuid.UUID)}
	for _, code := range codes {
		c.codes[code] = uuid.New()
	}
	return c
}

func TestParse_ProvidusDebitAlert(t *testing.T) {
	catalog := newFakeCatalog("NGN")
	p := New(catalog, nil)

	body := "Dear Customer,\n" +
		"Amount: NGN 12,500.00\n" +
		"Account Number: 0123456789\n" +
		"Narrative: POS Purchase\n"

	rec, status := p.Parse(context.Background(), "alert@providusbank.com", "Debit Alert", body)
	if status != StatusParsed {
		t.Fatalf("status: got %v, want parsed", status)
	}

	if rec.BankName != "ProvidusBank" {
		t.Errorf("bank: got %q, want ProvidusBank", rec.BankName)
	}
	if rec.CurrencyCode != "NGN" {
		t.Errorf("currency: got %q, want NGN", rec.CurrencyCode)
	}
	if rec.CurrencyID != catalog.codes["NGN"] {
		t.Errorf("currency id: got %v, want %v", rec.CurrencyID, catalog.codes["NGN"])
	}
	if rec.Amount == nil || *rec.Amount != 12500.00 {
		t.Errorf("amount: got %v, want 12500", rec.Amount)
	}
	if got := rec.Fields["Account Number"]; got != "0123456789" {
		t.Errorf("Account Number: got %q, want 0123456789", got)
	}
	if got := rec.Fields["Narrative"]; got != "POS Purchase" {
		t.Errorf("Narrative: got %q, want POS Purchase", got)
	}
}

func TestParse_UnknownBank(t *testing.T) {
	p := New(newFakeCatalog("NGN"), nil)

	rec, status := p.Parse(context.Background(), "news@shopping.example", "Weekly deals", "NGN 100.00")
	if status != StatusUnknownBank {
		t.Errorf("status: got %v, want unknown_bank", status)
	}
	if rec != nil {
		t.Errorf("record: got %+v, want nil", rec)
	}
}

func TestParse_NoCurrencyInBody(t *testing.T) {
	p := New(newFakeCatalog("NGN"), nil)

	rec, status := p.Parse(context.Background(), "alert@providusbank.com", "Debit Alert",
		"Your e-statement is ready for download.")
	if status != StatusNoCurrency {
		t.Errorf("status: got %v, want no_currency", status)
	}
	if rec != nil {
		t.Errorf("record: got %+v, want nil", rec)
	}
}

// A detected code the catalog does not know fails the parse; nothing is
// emitted for the storage layer to auto-insert.
func TestParse_CurrencyNotInCatalog(t *testing.T) {
	p := New(newFakeCatalog("NGN"), nil)

	rec, status := p.Parse(context.Background(), "alert@providusbank.com", "Debit Alert",
		"You were charged USD 20.00")
	if status != StatusUnknownCurrency {
		t.Errorf("status: got %v, want unknown_currency", status)
	}
	if rec != nil {
		t.Errorf("record: got %+v, want nil", rec)
	}
}

func TestParse_CatalogErrorIsNotParseable(t *testing.T) {
	p := New(&fakeCatalog{err: errors.New("connection reset")}, nil)

	rec, status := p.Parse(context.Background(), "alert@providusbank.com", "Debit Alert",
		"Amount: NGN 1,000.00")
	if status != StatusUnknownCurrency {
		t.Errorf("status: got %v, want unknown_currency", status)
	}
	if rec != nil {
		t.Errorf("record: got %+v, want nil", rec)
	}
}

// A parse can succeed with a nil amount: currency detection found a value the
// bank's own patterns did not. Downstream filtering depends on nil staying
// distinct from zero.
func TestParse_NilAmountWhenBankPatternsMiss(t *testing.T) {
	p := New(newFakeCatalog("NGN", "GBP"), nil)

	rec, status := p.Parse(context.Background(), "alert@providusbank.com", "Debit Alert",
		"You spent £3.50 today")
	if status != StatusParsed {
		t.Fatalf("status: got %v, want parsed", status)
	}
	if rec.Amount != nil {
		t.Errorf("amount: got %v, want nil", *rec.Amount)
	}
	if rec.CurrencyCode != "GBP" {
		t.Errorf("currency: got %q, want GBP", rec.CurrencyCode)
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := New(newFakeCatalog("NGN"), nil)

	from, subject := "alert@providusbank.com", "Debit Alert"
	body := "Amount: NGN 12,500.00\nAccount Number: 0123456789\n"

	first, firstStatus := p.Parse(context.Background(), from, subject, body)
	second, secondStatus := p.Parse(context.Background(), from, subject, body)

	if firstStatus != secondStatus {
		t.Fatalf("status changed between parses: %v then %v", firstStatus, secondStatus)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("records differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusParsed, "parsed"},
		{StatusUnknownBank, "unknown_bank"},
		{StatusNoCurrency, "no_currency"},
		{StatusUnknownCurrency, "unknown_currency"},
		{Status(99), "invalid"},
	}
	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("Status(%d).String() = %q, want %q", tc.status, got, tc.want)
		}
	}
}
