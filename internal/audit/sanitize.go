package audit

import "regexp"

// redactRule replaces one PII pattern with a fixed token. Rules run in
// order; card numbers must be scrubbed before the phone rule can see their
// digit groups.
type redactRule struct {
	pattern *regexp.Regexp
	token   string
}

// Redactor is the single ordered redaction pipeline. It runs exactly once,
// at the audit log boundary, so no caller can forget it.
type Redactor struct {
	rules []redactRule
}

// NewRedactor builds the default pipeline: email, card number, national-ID
// style number, phone.
func NewRedactor() *Redactor {
	return &Redactor{rules: []redactRule{
		{
			pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
			token:   "[EMAIL]",
		},
		{
			pattern: regexp.MustCompile(`\b(?:\d{4}[ \-]?){3}\d{4}\b`),
			token:   "[CARD_NUMBER]",
		},
		{
			pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			token:   "[SSN]",
		},
		{
			pattern: regexp.MustCompile(`(?:\+?\d{1,2}[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`),
			token:   "[PHONE]",
		},
	}}
}

// Redact applies every rule in order and returns the scrubbed text.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.token)
	}
	return s
}
