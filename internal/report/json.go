package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/researchstream/internal/model"
)

// JSONWriter outputs runs in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into every document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating tool version in every document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// WithJSONSanitizer sanitizes the content field before it is written.
func WithJSONSanitizer(s *Sanitizer) JSONWriterOption {
	return func(w *JSONWriter) {
		w.sanitizer = s
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run with output metadata.
type JSONReport struct {
	// Version is the researchstream version that generated this report.
	Version string `json:"version,omitempty"`

	// Run is the research run. Its content may be sanitized.
	Run *model.Run `json:"run"`

	// Status describes how the run ended.
	Status string `json:"status"`

	// Hash is the SHA3-256 digest of the unsanitized content.
	Hash string `json:"hash"`
}

// Write outputs one run wrapped in a JSONReport.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(w.wrap(run))
}

// WriteSummary outputs an array of JSONReports.
func (w *JSONWriter) WriteSummary(runs []*model.Run) (int, error) {
	wrapped := make([]*JSONReport, len(runs))
	for i, run := range runs {
		wrapped[i] = w.wrap(run)
	}
	return w.writeJSON(wrapped)
}

func (w *JSONWriter) wrap(run *model.Run) *JSONReport {
	out := run
	if w.sanitizer != nil {
		clone := *run
		clone.Content = w.content(run)
		out = &clone
	}
	return &JSONReport{
		Version: w.version,
		Run:     out,
		Status:  status(run),
		Hash:    run.Hash(),
	}
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
