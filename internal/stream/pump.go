package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Sink receives the report output after every chunk.
type Sink interface {
	SetContent(content string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(content string)

// SetContent implements Sink.
func (f SinkFunc) SetContent(content string) { f(content) }

// Stats summarizes a pumped body.
type Stats struct {
	// Chunks is the number of chunks read.
	Chunks int

	// Bytes is the number of raw bytes read.
	Bytes int64

	// SentinelSeen is true if any decoded chunk equalled Sentinel.
	SentinelSeen bool

	// Output is the final output of the policy.
	Output string
}

// Pump reads r until EOF, decoding every chunk with dec, folding it with pol
// and writing the resulting output to sink.
//
// The end of the body is not a chunk: it leaves the output untouched unless
// the decoder still holds bytes. Their text completes the last chunk: it is
// appended while the policy is streaming, otherwise the last chunk is
// applied again with the text attached so it is not replaced.
// Pump stops with ctx.Err() when ctx is cancelled between chunks. Stats are
// valid even when an error is returned.
func Pump(ctx context.Context, r *Reader, dec Decoder, pol Policy, sink Sink) (Stats, error) {
	var (
		stats Stats
		last  string
	)

	for {
		if err := ctx.Err(); err != nil {
			stats.Output = pol.Output()
			return stats, err
		}

		chunk, err := r.Next()
		if len(chunk) > 0 {
			stats.Chunks++
			stats.Bytes += int64(len(chunk))

			text, decErr := dec.Decode(chunk)
			if decErr != nil {
				stats.Output = pol.Output()
				return stats, fmt.Errorf("failed to decode chunk %d: %w", stats.Chunks, decErr)
			}
			if text == Sentinel {
				stats.SentinelSeen = true
			}
			last = text
			sink.SetContent(pol.Apply(text))
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.Output = pol.Output()
			return stats, fmt.Errorf("failed to read response body: %w", err)
		}
	}

	rest, err := dec.Flush()
	if err != nil {
		stats.Output = pol.Output()
		return stats, fmt.Errorf("failed to decode end of body: %w", err)
	}
	if rest != "" {
		if !pol.Streaming() {
			rest = last + rest
		}
		sink.SetContent(pol.Apply(rest))
	}

	stats.Output = pol.Output()
	return stats, nil
}
