package page

import (
	"io"
	"strings"
	"sync"
)

// TerminalSink renders report content to a writer such as a terminal.
//
// Content that extends what was shown before is written as the new suffix
// only, so an appended report streams naturally. Content that replaces what
// was shown starts on a new line.
type TerminalSink struct {
	mu    sync.Mutex
	w     io.Writer
	shown string
	wrote bool
	last  byte
	err   error
}

// NewTerminalSink creates a TerminalSink writing to w.
func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

// SetContent implements ReportSink.
func (s *TerminalSink) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || content == s.shown {
		return
	}

	var out string
	switch {
	case strings.HasPrefix(content, s.shown):
		out = content[len(s.shown):]
	case s.wrote && s.last != '\n':
		out = "\n" + content
	default:
		out = content
	}
	s.shown = content
	s.write(out)
}

// Finish terminates the output with a newline if needed and returns the
// first write error.
func (s *TerminalSink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil && s.wrote && s.last != '\n' {
		s.write("\n")
	}
	return s.err
}

func (s *TerminalSink) write(out string) {
	if out == "" {
		return
	}
	if _, err := io.WriteString(s.w, out); err != nil {
		s.err = err
		return
	}
	s.wrote = true
	s.last = out[len(out)-1]
}
