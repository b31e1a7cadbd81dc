// Package parser classifies bank debit-alert emails and extracts normalized
// transaction records from their HTML bodies.
//
// The engine is pattern based and best effort: each supported bank has a
// static profile describing its sender domain, subject keywords, amount
// patterns and field labels, and a static currency table describes how
// amounts appear in free text. Both tables are immutable for the process
// lifetime and safe to share across goroutines. Emails that match no profile
// or carry no recognizable currency are reported as unparseable, never as
// errors, so one bad email cannot abort a batch.
package parser

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blazzjosh/lucra.ai/pkg/api"
)

// Status reports why a parse did or did not produce a record. Modeling the
// failure reasons explicitly keeps a missing result from being mistaken for a
// zero-amount transaction.
type Status int

const (
	// StatusParsed means a complete record was produced.
	StatusParsed Status = iota
	// StatusUnknownBank means no bank profile matched sender or subject.
	StatusUnknownBank
	// StatusNoCurrency means no currency pattern matched the body.
	StatusNoCurrency
	// StatusUnknownCurrency means the detected code is absent from the
	// catalog, or the catalog lookup itself failed.
	StatusUnknownCurrency
)

// String returns a short name for logging.
func (s Status) String() string {
	switch s {
	case StatusParsed:
		return "parsed"
	case StatusUnknownBank:
		return "unknown_bank"
	case StatusNoCurrency:
		return "no_currency"
	case StatusUnknownCurrency:
		return "unknown_currency"
	default:
		return "invalid"
	}
}

// Parsed reports whether the status carries a record.
func (s Status) Parsed() bool { return s == StatusParsed }

// Parser holds the immutable pattern tables and the currency catalog handle.
type Parser struct {
	currencies []CurrencyPattern
	banks      []BankProfile
	catalog    api.CurrencyCatalog
	logger     *slog.Logger
}

// New creates a parser with the built-in bank and currency tables.
func New(catalog api.CurrencyCatalog, logger *slog.Logger) *Parser {
	return NewWithTables(DefaultCurrencies(), DefaultBanks(), catalog, logger)
}

// NewWithTables creates a parser with custom tables. Intended for tests that
// need synthetic profiles; production code uses New.
func NewWithTables(currencies []CurrencyPattern, banks []BankProfile, catalog api.CurrencyCatalog, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		currencies: currencies,
		banks:      banks,
		catalog:    catalog,
		logger:     logger,
	}
}

// Banks returns the registered bank profiles in registration order.
func (p *Parser) Banks() []BankProfile {
	return p.banks
}

// Parse classifies one email and extracts its transaction record.
//
// The pipeline runs four steps: resolve the bank profile from sender and
// subject, extract the profile's declared fields from the body, try the
// bank's own amount patterns, and detect plus resolve the currency. Field
// extraction never fails and the bank amount is allowed to stay nil, but a
// bank match and a catalog-resolved currency are both mandatory. Any failure
// returns a nil record and a status naming the reason.
func (p *Parser) Parse(ctx context.Context, from, subject, body string) (*api.TransactionRecord, Status) {
	bank, ok := p.IdentifyBank(from, subject)
	if !ok {
		return nil, StatusUnknownBank
	}

	fields := p.ExtractFields(bank, body)

	var amount *float64
	for _, pat := range bank.AmountPatterns {
		m := pat.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		amount = &v
		break
	}

	// Currency detection runs against the full body regardless of whether a
	// bank-specific amount was found; it is the gate for the whole parse.
	detected, ok := p.DetectCurrency(body)
	if !ok {
		return nil, StatusNoCurrency
	}

	id, found, err := p.catalog.LookupCurrency(ctx, detected.Code)
	if err != nil {
		p.logger.Warn("currency catalog lookup failed",
			"code", detected.Code,
			"bank", bank.Name,
			"error", err,
		)
		return nil, StatusUnknownCurrency
	}
	if !found {
		p.logger.Debug("currency not in catalog", "code", detected.Code, "bank", bank.Name)
		return nil, StatusUnknownCurrency
	}

	return &api.TransactionRecord{
		BankName:     bank.Name,
		Fields:       fields,
		Amount:       amount,
		CurrencyCode: detected.Code,
		CurrencyID:   id,
	}, StatusParsed
}
