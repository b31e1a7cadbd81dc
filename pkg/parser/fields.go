package parser

import "strings"

// ExtractFields probes the body for every field the profile declares and
// returns a label-to-value map. Extraction is best effort: a label whose
// patterns all miss is simply omitted, and callers must treat every field as
// optional.
//
// For each label the structured markup pattern is tried first when the
// profile declares one, then the generic "label, optional colon, everything
// up to the next tag or newline" pattern. The first hit wins and the value is
// trimmed before storage.
func (p *Parser) ExtractFields(bank *BankProfile, body string) map[string]string {
	fields := make(map[string]string)
	for _, spec := range bank.Fields {
		if spec.markup != nil {
			if m := spec.markup.FindStringSubmatch(body); m != nil {
				fields[spec.Label] = strings.TrimSpace(m[1])
				continue
			}
		}
		if m := spec.generic.FindStringSubmatch(body); m != nil {
			fields[spec.Label] = strings.TrimSpace(m[1])
		}
	}
	return fields
}
