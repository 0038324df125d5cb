package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/researchstream/internal/model"
)

// HTMLWriter outputs the report markup exactly as the report element held
// it, optionally sanitized.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer, opts ...Option) *HTMLWriter {
	w := &HTMLWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(&w.baseWriter)
	}
	return w
}

// Write outputs the run content followed by a newline.
func (w *HTMLWriter) Write(run *model.Run) (int, error) {
	content := w.content(run)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return io.WriteString(w.output, content)
}

// WriteSummary outputs every run's content, each preceded by an HTML comment
// naming the company.
func (w *HTMLWriter) WriteSummary(runs []*model.Run) (int, error) {
	var sb strings.Builder
	for _, run := range runs {
		fmt.Fprintf(&sb, "<!-- %s -->\n", strings.ReplaceAll(run.Query.Company, "--", "- -"))
		sb.WriteString(w.content(run))
		sb.WriteString("\n")
	}
	return io.WriteString(w.output, sb.String())
}
