package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/page"
	"github.com/nao1215/researchstream/internal/report"
	"github.com/nao1215/researchstream/internal/research"
)

var (
	// ErrNoDocument is returned by steps that need a prepared page.
	ErrNoDocument = errors.New("job has no page document")

	// ErrNoRun is returned by steps that need a finished run.
	ErrNoRun = errors.New("job has no research run")
)

// PreparePageStep builds the job's page: it creates a fresh document,
// enters the company into the input field and checks the criteria.
type PreparePageStep struct {
	// NewDocument returns a fresh page. Every job needs its own.
	NewDocument func() (*page.Document, error)

	// Criteria are the checkbox IDs to check, in any order.
	Criteria model.Criteria
}

// Name implements Step.
func (s *PreparePageStep) Name() string { return "prepare-page" }

// Do implements Step.
func (s *PreparePageStep) Do(_ context.Context, job *Job) error {
	doc, err := s.NewDocument()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	doc.Input().SetValue(job.Company)
	for _, id := range s.Criteria {
		if err := doc.Check(id, true); err != nil {
			return fmt.Errorf("failed to select criterion: %w", err)
		}
	}

	job.Document = doc
	return nil
}

// RenderStep activates a stream renderer bound to the job's page.
type RenderStep struct {
	// NewRenderer creates the renderer for a page.
	NewRenderer func(doc *page.Document) (*research.Renderer, error)
}

// Name implements Step.
func (s *RenderStep) Name() string { return "render" }

// Do implements Step. The run is stored in the job even when the
// activation fails.
func (s *RenderStep) Do(ctx context.Context, job *Job) error {
	if job.Document == nil {
		return ErrNoDocument
	}

	r, err := s.NewRenderer(job.Document)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	run, err := r.Activate(ctx)
	job.Run = run
	return err
}

// RunSaver stores finished runs. database.HistoryDB implements it.
type RunSaver interface {
	SaveRun(ctx context.Context, run *model.Run) (int64, error)
}

// SaveHistoryStep stores the job's run.
type SaveHistoryStep struct {
	DB RunSaver
}

// Name implements Step.
func (s *SaveHistoryStep) Name() string { return "save-history" }

// Do implements Step.
func (s *SaveHistoryStep) Do(ctx context.Context, job *Job) error {
	if job.Run == nil {
		return ErrNoRun
	}
	if _, err := s.DB.SaveRun(ctx, job.Run); err != nil {
		return err
	}
	return nil
}

// WriteReportStep writes the job's run with a report writer. Steps of
// concurrent jobs sharing a writer are serialized so reports do not
// interleave.
type WriteReportStep struct {
	Writer report.Writer

	mu sync.Mutex
}

// Name implements Step.
func (s *WriteReportStep) Name() string { return "write-report" }

// Do implements Step.
func (s *WriteReportStep) Do(_ context.Context, job *Job) error {
	if job.Run == nil {
		return ErrNoRun
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Writer.Write(job.Run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
