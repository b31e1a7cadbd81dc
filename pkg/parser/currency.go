package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// CurrencyPattern describes how one currency appears in alert bodies.
// Patterns are tried in order; the first one that matches wins for that
// currency.
type CurrencyPattern struct {
	Code     string
	Symbol   string
	Patterns []*regexp.Regexp
}

// CurrencyMatch is a successful currency detection.
type CurrencyMatch struct {
	Code   string
	Amount float64
}

// numericRun matches the amount shape embedded in a pattern match: digits
// with optional comma thousands separators and an optional fraction.
var numericRun = regexp.MustCompile(`[\d,]+\.?\d*`)

// DefaultCurrencies returns the built-in currency pattern table.
// Table order is significant: when a body could match more than one currency,
// the first currency in this order wins. That tie-break is arbitrary but
// deterministic, and existing data depends on it.
func DefaultCurrencies() []CurrencyPattern {
	return []CurrencyPattern{
		{
			Code:   "NGN",
			Symbol: "₦",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)₦\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount[:\s]+NGN\s*([\d,]+\.?\d*)`),
			},
		},
		{
			Code:   "USD",
			Symbol: "$",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)USD\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)\$\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount[:\s]+USD\s*([\d,]+\.?\d*)`),
			},
		},
		{
			Code:   "EUR",
			Symbol: "€",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)EUR\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)€\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount[:\s]+EUR\s*([\d,]+\.?\d*)`),
			},
		},
		{
			Code:   "GBP",
			Symbol: "£",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)GBP\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)£\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount[:\s]+GBP\s*([\d,]+\.?\d*)`),
			},
		},
	}
}

// DetectCurrency scans text for the first recognizable monetary amount and
// returns its currency code and normalized value. The boolean is false when
// no currency pattern matches anywhere in the text; that is a routine outcome
// for non-alert emails, not an error.
func (p *Parser) DetectCurrency(text string) (CurrencyMatch, bool) {
	for _, cur := range p.currencies {
		for _, pat := range cur.Patterns {
			loc := pat.FindString(text)
			if loc == "" {
				continue
			}
			// Re-extract the numeric run from the matched substring rather
			// than trusting the capture group: some templates put markup
			// between code and amount. If no digits are present, fall
			// through to this currency's next pattern.
			num := numericRun.FindString(loc)
			if num == "" {
				continue
			}
			amount, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
			if err != nil {
				continue
			}
			return CurrencyMatch{Code: cur.Code, Amount: amount}, true
		}
	}
	return CurrencyMatch{}, false
}
