package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/page"
	"github.com/nao1215/researchstream/internal/stream"
)

// Fetcher sends a research request and returns the response with an unread
// body. transport.Client implements it.
type Fetcher interface {
	Research(ctx context.Context, q model.Query) (*http.Response, error)
}

// Renderer streams research reports into a page.
//
// One activation reads the company field, sends the query and feeds every
// decoded chunk of the response into the report area through a stream.Policy.
// The variant fixes the decoder and policy pair: the sentinel variant decodes
// each chunk on its own and waits for the report marker, the replace variant
// keeps one decoder for the whole body and lets every chunk replace the area.
//
// Design decision: the renderer owns no goroutines. Activate blocks until the
// body ends. Bind registers it as the button's click handler, and each click
// already runs its handlers on a goroutine of its own. Overlapping activations are allowed and
// write to the same area; WithCancelPrevious makes a new activation cancel the
// one still in flight instead.
type Renderer struct {
	doc     *page.Document
	fetcher Fetcher
	variant model.Variant

	server     string
	logger     *slog.Logger
	bufferSize int
	newDecoder func(contentType string) stream.Decoder
	newPolicy  func() stream.Policy
	onRun      func(*model.Run)
	onError    func(error)

	cancelPrevious bool
	mu             sync.Mutex
	generation     uint64
	cancel         context.CancelFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithVariant selects the rendering variant. The default is the sentinel
// variant.
func WithVariant(v model.Variant) Option {
	return func(r *Renderer) { r.variant = v }
}

// WithDecoder overrides the decoder the variant would use.
func WithDecoder(f func(contentType string) stream.Decoder) Option {
	return func(r *Renderer) { r.newDecoder = f }
}

// WithPolicy overrides the rendering policy the variant would use.
// f must return a fresh policy on every call.
func WithPolicy(f func() stream.Policy) Option {
	return func(r *Renderer) { r.newPolicy = f }
}

// WithCancelPrevious makes every activation cancel the one still in flight.
// By default activations run side by side and the last write wins.
func WithCancelPrevious(enabled bool) Option {
	return func(r *Renderer) { r.cancelPrevious = enabled }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// WithBufferSize sets the largest chunk read from the body.
func WithBufferSize(size int) Option {
	return func(r *Renderer) { r.bufferSize = size }
}

// WithServer records the endpoint base URL on every run.
func WithServer(server string) Option {
	return func(r *Renderer) { r.server = server }
}

// WithRunCallback sets a function called with every finished run,
// successful or not.
func WithRunCallback(f func(*model.Run)) Option {
	return func(r *Renderer) { r.onRun = f }
}

// WithErrorHandler sets a function called with the error of every failed
// click, after it has been logged.
func WithErrorHandler(f func(error)) Option {
	return func(r *Renderer) { r.onError = f }
}

// New creates a Renderer for doc that fetches reports with fetcher.
func New(doc *page.Document, fetcher Fetcher, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		doc:     doc,
		fetcher: fetcher,
		variant: model.VariantSentinel,
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := model.ParseVariant(string(r.variant)); err != nil {
		return nil, err
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.newDecoder == nil {
		v := r.variant
		r.newDecoder = func(contentType string) stream.Decoder {
			return stream.NewVariantDecoder(v, contentType)
		}
	}
	if r.newPolicy == nil {
		v := r.variant
		r.newPolicy = func() stream.Policy {
			pol, _ := stream.NewPolicy(v) //nolint:errcheck // variant validated above
			return pol
		}
	}
	return r, nil
}

// Variant returns the rendering variant.
func (r *Renderer) Variant() model.Variant {
	return r.variant
}

// Bind registers the renderer as the click handler of the page's
// startResearch button. Failed clicks are logged at error level and never
// touch the report element.
func (r *Renderer) Bind() {
	btn := r.doc.Button()
	btn.OnClick(func(ctx context.Context) error {
		_, err := r.Activate(ctx)
		return err
	})
	btn.OnError(func(err error) {
		r.logger.Error("research activation failed", "error", err)
		if r.onError != nil {
			r.onError(err)
		}
	})
}

// Activate runs one research request against the current page state and
// streams the response into the report element. The returned run is never
// nil; it carries the partial statistics when an error is returned.
func (r *Renderer) Activate(ctx context.Context) (*model.Run, error) {
	ctx, release := r.begin(ctx)
	defer release()

	r.doc.Header().Hide()

	query := model.Query{
		Company:  r.doc.Input().Value(),
		Criteria: model.Criteria(r.doc.CheckedIDs()),
	}
	run := model.NewRun(query, r.variant)
	run.Server = r.server

	r.logger.Debug("research activation started",
		"company", query.Company,
		"criteria", query.Criteria.String(),
		"variant", r.variant,
	)

	err := r.render(ctx, run)
	run.Finish(err)

	if err != nil {
		r.logger.Debug("research activation failed",
			"company", query.Company,
			"chunks", run.Chunks,
			"error", err,
		)
	} else {
		r.logger.Debug("research activation finished",
			"company", query.Company,
			"chunks", run.Chunks,
			"bytes", run.Bytes,
			"sentinel", run.SentinelSeen,
			"duration", run.Duration(),
		)
	}

	if r.onRun != nil {
		r.onRun(run)
	}
	return run, err
}

func (r *Renderer) render(ctx context.Context, run *model.Run) error {
	resp, err := r.fetcher.Research(ctx, run.Query)
	if err != nil {
		return fmt.Errorf("failed to fetch research report: %w", err)
	}
	defer resp.Body.Close()

	run.StatusCode = resp.StatusCode

	stats, err := stream.Pump(ctx,
		stream.NewReader(resp.Body, r.bufferSize),
		r.newDecoder(resp.Header.Get("Content-Type")),
		r.newPolicy(),
		r.doc.Report(),
	)
	run.Chunks = stats.Chunks
	run.Bytes = stats.Bytes
	run.SentinelSeen = stats.SentinelSeen
	run.Content = stats.Output
	return err
}

// begin derives the context of one activation. With cancel-previous
// enabled it cancels the activation still in flight.
func (r *Renderer) begin(ctx context.Context) (context.Context, func()) {
	if !r.cancelPrevious {
		return ctx, func() {}
	}

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	r.cancel = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if r.generation == gen {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel()
	}
}
