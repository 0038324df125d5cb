package report

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from report content.
// Reports come from a remote server and may contain script, event handler
// attributes or javascript: links.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a Sanitizer using the user-generated content policy,
// which keeps headings, paragraphs, lists, tables and safe links.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.UGCPolicy()}
}

// Sanitize returns content with unsafe elements and attributes removed.
func (s *Sanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}
