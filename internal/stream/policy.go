package stream

import (
	"fmt"
	"strings"

	"github.com/nao1215/researchstream/internal/model"
)

// Sentinel is the control chunk that starts the final report stream.
const Sentinel = "<REPORT_STREAM>"

// Policy folds decoded chunks into the report output.
// A Policy holds per-run state and must not be shared between runs.
type Policy interface {
	// Apply processes one chunk and returns the output to display.
	Apply(chunk string) string

	// Output returns the current output.
	Output() string

	// Streaming reports whether the policy is appending chunks.
	Streaming() bool
}

// SentinelPolicy replaces the output with each chunk until a chunk equal to
// Sentinel arrives. The sentinel clears the output and every later chunk is
// appended. A repeated sentinel clears the output again.
type SentinelPolicy struct {
	out       strings.Builder
	streaming bool
}

// NewSentinelPolicy creates a SentinelPolicy in replace mode.
func NewSentinelPolicy() *SentinelPolicy {
	return &SentinelPolicy{}
}

// Apply implements Policy.
func (p *SentinelPolicy) Apply(chunk string) string {
	switch {
	case chunk == Sentinel:
		p.out.Reset()
		p.streaming = true
	case p.streaming:
		p.out.WriteString(chunk)
	default:
		p.out.Reset()
		p.out.WriteString(chunk)
	}
	return p.out.String()
}

// Output implements Policy.
func (p *SentinelPolicy) Output() string {
	return p.out.String()
}

// Streaming implements Policy.
func (p *SentinelPolicy) Streaming() bool {
	return p.streaming
}

// ReplacePolicy shows only the most recent chunk.
type ReplacePolicy struct {
	out string
}

// NewReplacePolicy creates a ReplacePolicy.
func NewReplacePolicy() *ReplacePolicy {
	return &ReplacePolicy{}
}

// Apply implements Policy.
func (p *ReplacePolicy) Apply(chunk string) string {
	p.out = chunk
	return p.out
}

// Output implements Policy.
func (p *ReplacePolicy) Output() string {
	return p.out
}

// Streaming always returns false.
func (p *ReplacePolicy) Streaming() bool {
	return false
}

// NewPolicy returns a fresh policy for the variant.
func NewPolicy(v model.Variant) (Policy, error) {
	switch v {
	case model.VariantSentinel:
		return NewSentinelPolicy(), nil
	case model.VariantReplace:
		return NewReplacePolicy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownVariant, v)
	}
}

// NewVariantDecoder returns the decoder a variant uses for a body of
// contentType. The sentinel variant decodes chunk by chunk, the replace
// variant decodes the body as one stream.
func NewVariantDecoder(v model.Variant, contentType string) Decoder {
	enc := EncodingFor(contentType)
	if v == model.VariantSentinel {
		return NewChunkDecoder(enc)
	}
	return NewStreamDecoder(enc)
}
