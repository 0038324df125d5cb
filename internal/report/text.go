package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/researchstream/internal/model"
)

const textWidth = 70

// TextWriter outputs human-readable text reports.
// Headings are underlined, list items bulleted and paragraphs separated by
// blank lines. Markup is dropped.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...Option) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(&w.baseWriter)
	}
	return w
}

// Write outputs the run in human-readable format.
func (w *TextWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	if err := w.writeBody(&sb, run); err != nil {
		return 0, err
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs one line per run.
func (w *TextWriter) WriteSummary(runs []*model.Run) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n")
	sb.WriteString("                         RESEARCH RUNS\n")
	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n\n")

	if len(runs) == 0 {
		sb.WriteString("  No runs\n\n")
		return io.WriteString(w.output, sb.String())
	}

	failed := 0
	for _, run := range runs {
		id := "-"
		if run.ID != 0 {
			id = fmt.Sprintf("%d", run.ID)
		}
		fmt.Fprintf(&sb, "  [%s] %-24s %-10s %s\n",
			id,
			truncateString(run.Query.Company, 24),
			run.StartedAt.Format("2006-01-02"),
			status(run),
		)
		if run.Failed() {
			failed++
		}
	}
	fmt.Fprintf(&sb, "\n  TOTAL: %d runs, %d failed\n\n", len(runs), failed)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *TextWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n")
	sb.WriteString("                         RESEARCH REPORT\n")
	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Company:   %s\n", run.Query.Company)
	fmt.Fprintf(sb, "Criteria:  %s\n", criteriaNames(run))
	fmt.Fprintf(sb, "Date:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:    %s\n", status(run))

	if w.verbose {
		fmt.Fprintf(sb, "Server:    %s\n", run.Server)
		fmt.Fprintf(sb, "Variant:   %s\n", run.Variant)
		fmt.Fprintf(sb, "Chunks:    %d (%d bytes)\n", run.Chunks, run.Bytes)
		fmt.Fprintf(sb, "Duration:  %s\n", run.Duration())
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", textWidth))
	sb.WriteString("\n\n")
}

// writeBody writes the report content block by block.
func (w *TextWriter) writeBody(sb *strings.Builder, run *model.Run) error {
	blocks, err := parseBlocks(w.content(run))
	if err != nil {
		return fmt.Errorf("failed to parse report content: %w", err)
	}

	if len(blocks) == 0 {
		sb.WriteString("  (empty report)\n\n")
		return nil
	}

	for i, b := range blocks {
		switch b.kind {
		case blockHeading:
			if i > 0 {
				sb.WriteString("\n")
			}
			text := b.text
			underline := "-"
			if b.level <= 2 {
				text = strings.ToUpper(text)
				underline = "="
			}
			sb.WriteString(text)
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat(underline, len([]rune(text))))
			sb.WriteString("\n\n")
		case blockListItem:
			fmt.Fprintf(sb, "  * %s\n", b.text)
			if i+1 == len(blocks) || blocks[i+1].kind != blockListItem {
				sb.WriteString("\n")
			}
		case blockPreformatted:
			for _, line := range strings.Split(b.text, "\n") {
				fmt.Fprintf(sb, "    %s\n", line)
			}
			sb.WriteString("\n")
		default:
			sb.WriteString(b.text)
			sb.WriteString("\n\n")
		}
	}
	return nil
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by researchstream\n")
	sb.WriteString(strings.Repeat("=", textWidth))
	sb.WriteString("\n")
}
