package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/researchstream/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report of a single run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteSummary outputs an overview of several runs, such as a batch or
	// the stored history.
	WriteSummary(runs []*model.Run) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(runs []*model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output    io.Writer
	sanitizer *Sanitizer

	// verbose adds transfer statistics where a format supports them.
	verbose bool
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Option configures the HTML, text and Markdown writers.
type Option func(*baseWriter)

// WithSanitizer sanitizes report content before it is written.
func WithSanitizer(s *Sanitizer) Option {
	return func(b *baseWriter) { b.sanitizer = s }
}

// WithVerbose adds transfer statistics to text output.
func WithVerbose(verbose bool) Option {
	return func(b *baseWriter) { b.verbose = verbose }
}

// content returns the run content, sanitized when a sanitizer is set.
func (b baseWriter) content(run *model.Run) string {
	if b.sanitizer == nil {
		return run.Content
	}
	return b.sanitizer.Sanitize(run.Content)
}

// status describes how a run ended.
func status(run *model.Run) string {
	switch {
	case run.Failed():
		return "Error - " + run.Error
	case run.StatusCode != 0 && (run.StatusCode < 200 || run.StatusCode > 299):
		return "HTTP " + strconv.Itoa(run.StatusCode)
	case run.FinishedAt.IsZero():
		return "Running"
	default:
		return "Complete"
	}
}

// criteriaNames returns the display names of the run's criteria.
func criteriaNames(run *model.Run) string {
	names := run.Query.Criteria.Names()
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
