package model

import (
	"errors"
	"fmt"
	"strings"
)

// Variant selects how the stream renderer decodes and displays chunks.
type Variant string

const (
	// VariantSentinel decodes every chunk on its own and honours the
	// <REPORT_STREAM> marker: chunks before it replace the report, chunks
	// after it are appended.
	VariantSentinel Variant = "sentinel"

	// VariantReplace decodes the body as one stream and lets every chunk
	// replace the report content.
	VariantReplace Variant = "replace"
)

// ErrUnknownVariant is returned by ParseVariant for unsupported names.
var ErrUnknownVariant = errors.New("unknown variant: must be 'sentinel' or 'replace'")

// ParseVariant parses a variant name case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantSentinel, VariantReplace:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// String implements fmt.Stringer.
func (v Variant) String() string {
	return string(v)
}
