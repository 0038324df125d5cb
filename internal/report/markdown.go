package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/researchstream/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(&w.baseWriter)
	}
	return w
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	blocks, err := parseBlocks(w.content(run))
	if err != nil {
		return 0, err
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeCriteria(md, run)
	w.writeAlert(md, run)
	w.writeBody(md, blocks)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs a table of runs with an outcome chart.
func (w *MarkdownWriter) WriteSummary(runs []*model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Research Runs")
	md.PlainText("")

	if len(runs) == 0 {
		md.Note("No research runs recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		id := "-"
		if run.ID != 0 {
			id = strconv.FormatInt(run.ID, 10)
		}
		hash := run.Hash()
		rows[i] = []string{
			id,
			run.Query.Company,
			truncateString(criteriaNames(run), 40),
			run.Variant.String(),
			truncateString(status(run), 40),
			strconv.Itoa(run.Chunks),
			run.StartedAt.Format("2006-01-02 15:04"),
			"`" + hash[:12] + "`",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Company", "Criteria", "Variant", "Status", "Chunks", "Started", "Hash"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, runs)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Research Report: " + run.Query.Company)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Company", run.Query.Company},
			{"Date", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Server", "`" + run.Server + "`"},
			{"Variant", run.Variant.String()},
			{"Chunks", strconv.Itoa(run.Chunks) + " (" + strconv.FormatInt(run.Bytes, 10) + " bytes)"},
			{"Status", statusText(run)},
		},
	})
	md.PlainText("")
}

// statusText decorates the run status for Markdown output.
func statusText(run *model.Run) string {
	switch s := status(run); {
	case run.Failed():
		return "❌ " + s
	case s == "Complete":
		return "✅ " + s
	default:
		return "⚠️ " + s
	}
}

// writeCriteria writes the selected criteria as a list.
func (w *MarkdownWriter) writeCriteria(md *markdown.Markdown, run *model.Run) {
	md.H2("Criteria")
	md.PlainText("")

	names := run.Query.Criteria.Names()
	if len(names) == 0 {
		md.PlainText("No criteria selected.")
		md.PlainText("")
		return
	}
	md.BulletList(names...)
	md.PlainText("")
}

// writeAlert writes an alert when the run did not complete cleanly.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	switch {
	case run.Failed():
		md.Cautionf("Research failed after %d chunk(s): %s", run.Chunks, run.Error)
	case run.StatusCode != 0 && (run.StatusCode < 200 || run.StatusCode > 299):
		md.Warningf("The research endpoint answered with HTTP status %d.", run.StatusCode)
	case run.Variant == model.VariantSentinel && !run.SentinelSeen:
		md.Important("No report stream marker was received; only the last progress message is shown.")
	default:
		return
	}
	md.PlainText("")
}

// writeBody writes the report content converted to Markdown.
func (w *MarkdownWriter) writeBody(md *markdown.Markdown, blocks []block) {
	md.H2("Report")
	md.PlainText("")

	if len(blocks) == 0 {
		md.Note("The report is empty.")
		md.PlainText("")
		return
	}

	var items []string
	flushList := func() {
		if len(items) > 0 {
			md.BulletList(items...)
			md.PlainText("")
			items = nil
		}
	}

	for _, b := range blocks {
		if b.kind != blockListItem {
			flushList()
		}
		switch b.kind {
		case blockHeading:
			// The report sits below the H2 "Report" heading.
			if b.level <= 2 {
				md.H3(b.text)
			} else {
				md.H4(b.text)
			}
			md.PlainText("")
		case blockListItem:
			items = append(items, b.text)
		case blockPreformatted:
			md.CodeBlocks(markdown.SyntaxHighlightText, b.text)
			md.PlainText("")
		default:
			md.PlainText(b.text)
			md.PlainText("")
		}
	}
	flushList()
}

// writePieChart writes a mermaid pie chart of run outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, runs []*model.Run) {
	counts := map[string]uint64{}
	var order []string
	for _, run := range runs {
		key := "Complete"
		switch {
		case run.Failed():
			key = "Failed"
		case run.StatusCode != 0 && (run.StatusCode < 200 || run.StatusCode > 299):
			key = "HTTP error"
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Run Outcomes"),
		piechart.WithShowData(true),
	)
	for _, key := range order {
		chart.LabelAndIntValue(key, counts[key])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by researchstream*")
}
