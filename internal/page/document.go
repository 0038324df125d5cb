package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Element IDs the renderer requires.
const (
	IDStartResearch = "startResearch"
	IDHeader        = "fadeInHeader"
	IDUserInput     = "userInput"
	IDReport        = "report"
)

// DisplayNone is the display style of a hidden element.
const DisplayNone = "none"

var (
	// ErrMissingElement is returned when page markup lacks a required element.
	ErrMissingElement = errors.New("missing required element")

	// ErrUnknownCheckbox is returned when no checkbox has the requested ID.
	ErrUnknownCheckbox = errors.New("unknown checkbox")

	// ErrDuplicateCheckbox is returned when two checkboxes share an ID.
	ErrDuplicateCheckbox = errors.New("duplicate checkbox")
)

// RequiredIDs returns the IDs every research page must provide.
func RequiredIDs() []string {
	return []string{IDStartResearch, IDHeader, IDUserInput, IDReport}
}

// Document is an in-memory research page.
type Document struct {
	button *Button
	header *Header
	input  *Input
	report *Report

	mu         sync.RWMutex
	checkboxes []*checkbox
}

type checkbox struct {
	id      string
	checked bool
}

// NewDocument creates a page with one unchecked checkbox per criteria ID,
// in the given order. Duplicate IDs are ignored after the first.
func NewDocument(criteriaIDs ...string) *Document {
	d := &Document{
		button: newButton(IDStartResearch),
		header: &Header{},
		input:  &Input{},
		report: &Report{},
	}
	for _, id := range criteriaIDs {
		_ = d.AddCheckbox(id, false) //nolint:errcheck // duplicates are skipped
	}
	return d
}

// Button returns the startResearch control.
func (d *Document) Button() *Button { return d.button }

// Header returns the fadeInHeader element.
func (d *Document) Header() *Header { return d.header }

// Input returns the userInput field.
func (d *Document) Input() *Input { return d.input }

// Report returns the report element.
func (d *Document) Report() *Report { return d.report }

// AddCheckbox appends a checkbox to the page.
func (d *Document) AddCheckbox(id string, checked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cb := range d.checkboxes {
		if cb.id == id {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckbox, id)
		}
	}
	d.checkboxes = append(d.checkboxes, &checkbox{id: id, checked: checked})
	return nil
}

// Check sets the checked state of the checkbox with the given ID.
func (d *Document) Check(id string, checked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cb := range d.checkboxes {
		if cb.id == id {
			cb.checked = checked
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCheckbox, id)
}

// CheckboxIDs returns the IDs of all checkboxes in page order.
func (d *Document) CheckboxIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.checkboxes))
	for _, cb := range d.checkboxes {
		ids = append(ids, cb.id)
	}
	return ids
}

// CheckedIDs returns the IDs of checked checkboxes in page order.
func (d *Document) CheckedIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.checkboxes))
	for _, cb := range d.checkboxes {
		if cb.checked {
			ids = append(ids, cb.id)
		}
	}
	return ids
}

// Header is a hideable page header.
type Header struct {
	mu      sync.Mutex
	display string
	hides   int
}

// Hide sets the display style to none.
func (h *Header) Hide() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.display = DisplayNone
	h.hides++
}

// Display returns the current display style ("" means default).
func (h *Header) Display() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.display
}

// Hidden reports whether the header is hidden.
func (h *Header) Hidden() bool {
	return h.Display() == DisplayNone
}

// HideCount returns how many times Hide was called.
func (h *Header) HideCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hides
}

// Input is a single-line text field.
type Input struct {
	mu    sync.Mutex
	value string
}

// SetValue replaces the field value.
func (i *Input) SetValue(v string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.value = v
}

// Value returns the field value verbatim.
func (i *Input) Value() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// ReportSink mirrors report content somewhere else, such as a terminal.
type ReportSink interface {
	SetContent(content string)
}

// Report is the element that displays the streamed report.
type Report struct {
	mu      sync.Mutex
	content string
	writes  int
	mirrors []ReportSink
}

// SetContent replaces the element content and forwards it to every mirror.
// Mirrors are called with the element locked, so they see writes in order
// and must not call back into the Report.
func (r *Report) SetContent(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.content = content
	r.writes++
	for _, m := range r.mirrors {
		m.SetContent(content)
	}
}

// Content returns the current content.
func (r *Report) Content() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content
}

// Writes returns how many times the content was set.
func (r *Report) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Mirror attaches a sink that receives every later content write.
func (r *Report) Mirror(sink ReportSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrors = append(r.mirrors, sink)
}

// Handler runs when a Button is clicked.
type Handler func(ctx context.Context) error

// Button is a clickable control.
// Every click runs every handler in its own goroutine; clicks are not
// serialized and nothing cancels a previous click.
type Button struct {
	id string

	mu       sync.Mutex
	handlers []Handler
	onError  func(error)

	wg sync.WaitGroup
}

func newButton(id string) *Button {
	return &Button{id: id}
}

// OnClick registers a click handler.
func (b *Button) OnClick(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// OnError sets the function that receives handler errors.
// By default errors are logged with slog.Default at error level.
func (b *Button) OnError(f func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = f
}

// Click starts every registered handler and returns immediately.
func (b *Button) Click(ctx context.Context) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	onError := b.onError
	b.mu.Unlock()

	for _, h := range handlers {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := h(ctx); err != nil {
				if onError != nil {
					onError(err)
					return
				}
				slog.Default().Error("unhandled error in click handler",
					"element", b.id,
					"error", err,
				)
			}
		}()
	}
}

// Wait blocks until every handler started by Click has returned.
func (b *Button) Wait() {
	b.wg.Wait()
}
