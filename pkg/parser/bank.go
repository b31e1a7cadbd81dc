package parser

import (
	"regexp"
	"strings"
)

// Markup identifies the structured layout a bank template uses for a field,
// if any. Structured patterns bind a label cell to the adjacent value cell
// and are tried before the generic label pattern.
type Markup int

const (
	// MarkupNone means only the generic label pattern applies.
	MarkupNone Markup = iota
	// MarkupTableCell matches paired <td>label</td><td>value</td> cells.
	MarkupTableCell
	// MarkupDiv matches paired <div>label</div><div>value</div> containers.
	MarkupDiv
)

// FieldSpec declares one field to probe for in an alert body. The label is
// the literal string the bank template uses; it becomes the key in the
// extracted field map.
type FieldSpec struct {
	Label   string
	Markup  Markup
	generic *regexp.Regexp
	markup  *regexp.Regexp
}

// Field builds a FieldSpec with its patterns compiled up front. Profiles are
// static process-wide configuration, so compilation happens once at startup.
func Field(label string, markup Markup) FieldSpec {
	quoted := regexp.QuoteMeta(label)
	spec := FieldSpec{
		Label:   label,
		Markup:  markup,
		generic: regexp.MustCompile(`(?i)` + quoted + `[:\s]*(.*?)(?:<|\n|$)`),
	}
	switch markup {
	case MarkupTableCell:
		spec.markup = regexp.MustCompile(`(?i)<td[^>]*>` + quoted + `:?</td>\s*<td[^>]*>([^<]+)</td>`)
	case MarkupDiv:
		spec.markup = regexp.MustCompile(`(?i)<div[^>]*>` + quoted + `:?</div>\s*<div[^>]*>([^<]+)</div>`)
	}
	return spec
}

// BankProfile describes one bank's alert email conventions. Profiles are
// immutable after construction and shared read-only across goroutines.
type BankProfile struct {
	// Name is the display name carried into persisted records.
	Name string
	// EmailDomain is the sender-address fragment that identifies the bank.
	EmailDomain string
	// SubjectKeywords match the subject line case-insensitively.
	SubjectKeywords []string
	// Currency is the fixed code this bank's alerts are denominated in.
	Currency string
	// AmountPatterns are tried in order against the raw body; the first
	// pattern whose capture parses as a decimal wins.
	AmountPatterns []*regexp.Regexp
	// Fields lists the labels to probe for, in template order.
	Fields []FieldSpec
}

// DefaultBanks returns the built-in bank profile table. Registration order is
// the cross-bank tie-break: when two profiles could both match an email, the
// earlier one wins. Adding a bank is a code change here, not a migration.
func DefaultBanks() []BankProfile {
	return []BankProfile{
		{
			Name:            "ProvidusBank",
			EmailDomain:     "alert@providusbank.com",
			SubjectKeywords: []string{"Debit Alert", "Transaction Alert"},
			Currency:        "NGN",
			AmountPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount[:\s]+NGN\s*([\d,]+\.?\d*)`),
			},
			Fields: []FieldSpec{
				Field("Account Number", MarkupNone),
				Field("Amount", MarkupNone),
				Field("Narrative", MarkupNone),
				Field("Time", MarkupNone),
				Field("Reference", MarkupNone),
				Field("Branch", MarkupNone),
				Field("Available Balance", MarkupNone),
				Field("Ledger Balance", MarkupNone),
			},
		},
		{
			Name:            "GTBank",
			EmailDomain:     "gtbank.com",
			SubjectKeywords: []string{"Debit Transaction", "Transaction Notification"},
			Currency:        "NGN",
			AmountPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount:\s*NGN([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)\bNGN\s*([\d,]+\.?\d*)\b`),
			},
			// GTBank alerts lay fields out as table rows.
			Fields: []FieldSpec{
				Field("Account Number", MarkupTableCell),
				Field("Amount", MarkupTableCell),
				Field("Transaction Location", MarkupTableCell),
				Field("Value Date", MarkupTableCell),
				Field("Trans Date", MarkupTableCell),
				Field("Reference Number", MarkupTableCell),
				Field("Available Balance", MarkupTableCell),
			},
		},
		{
			Name:            "AccessBank",
			EmailDomain:     "accessbank.com",
			SubjectKeywords: []string{"Debit Alert", "Transaction Notice"},
			Currency:        "NGN",
			AmountPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount:\s*NGN([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Debit Amount:\s*NGN([\d,]+\.?\d*)`),
			},
			// Access Bank uses a div-based layout.
			Fields: []FieldSpec{
				Field("Account Number", MarkupDiv),
				Field("Account Name", MarkupDiv),
				Field("Description", MarkupDiv),
				Field("Amount", MarkupDiv),
				Field("Value Date", MarkupDiv),
				Field("Time", MarkupDiv),
				Field("Balance", MarkupDiv),
			},
		},
		{
			Name:            "FirstBank",
			EmailDomain:     "firstbank.com",
			SubjectKeywords: []string{"Debit Transaction Alert", "Transaction Notification"},
			Currency:        "NGN",
			AmountPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount:\s*NGN([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Debit Amount:\s*NGN([\d,]+\.?\d*)`),
			},
			Fields: []FieldSpec{
				Field("Account Number", MarkupTableCell),
				Field("Transaction Amount", MarkupTableCell),
				Field("Description", MarkupTableCell),
				Field("Value Date", MarkupTableCell),
				Field("Time of Transaction", MarkupTableCell),
				Field("Available Balance", MarkupTableCell),
			},
		},
		{
			Name:            "UBA",
			EmailDomain:     "ubagroup.com",
			SubjectKeywords: []string{"UBA Debit Alert", "Debit Notification"},
			Currency:        "NGN",
			AmountPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)NGN\s*([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Amount:\s*NGN([\d,]+\.?\d*)`),
				regexp.MustCompile(`(?i)Transaction Amount:\s*NGN([\d,]+\.?\d*)`),
			},
			Fields: []FieldSpec{
				Field("Account Number", MarkupTableCell),
				Field("Transaction Amount", MarkupTableCell),
				Field("Transaction Details", MarkupTableCell),
				Field("Date", MarkupTableCell),
				Field("Time", MarkupTableCell),
				Field("Available Balance", MarkupTableCell),
			},
		},
	}
}

// IdentifyBank resolves the bank profile for an email from its sender address
// and subject line. A profile matches when the sender contains its domain
// fragment, or the subject contains any of its keywords case-insensitively.
// Profiles are checked in registration order and the first match wins, so two
// banks with overlapping keywords resolve deterministically but by position.
// The boolean is false when no profile matches; callers skip such emails.
func (p *Parser) IdentifyBank(from, subject string) (*BankProfile, bool) {
	loweredSubject := strings.ToLower(subject)
	for i := range p.banks {
		bank := &p.banks[i]
		if strings.Contains(from, bank.EmailDomain) {
			return bank, true
		}
		for _, kw := range bank.SubjectKeywords {
			if strings.Contains(loweredSubject, strings.ToLower(kw)) {
				return bank, true
			}
		}
	}
	return nil, false
}
