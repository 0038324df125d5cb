// Package report renders finished research runs.
//
// This package contains writers for different output formats:
//   - HTMLWriter: the report markup as streamed, optionally sanitized
//   - TextWriter: human-readable text for terminal display
//   - MarkdownWriter: Markdown for documentation and sharing
//   - JSONWriter: structured JSON for tool integration
//
// The streamed report is HTML. Text and Markdown output is derived from its
// block structure (headings, paragraphs, list items and preformatted text).
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
