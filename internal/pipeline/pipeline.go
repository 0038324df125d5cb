package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/page"
)

// Job is the state of one company's research as it moves through a
// pipeline.
type Job struct {
	// Company is the text entered into the page's input field.
	Company string

	// Document is the page the renderer is bound to. Set by PreparePageStep.
	Document *page.Document

	// Run is the result of the activation. Set by RenderStep, also on failure.
	Run *model.Run

	// Errors collects step failures in execution order.
	Errors []error

	// Performed lists the names of the steps that ran.
	Performed []string
}

// NewJob creates a job for company.
func NewJob(company string) *Job {
	return &Job{Company: company}
}

// Err returns the first step failure, or nil.
func (j *Job) Err() error {
	if len(j.Errors) == 0 {
		return nil
	}
	return j.Errors[0]
}

// Step defines the interface that all pipeline steps must implement.
// Steps run in sequence, each one seeing the job as left by the previous
// steps.
//
// Design decision: Step is an interface rather than a function type so that
// a step can carry its own configuration (a renderer, a database handle, a
// report writer) and report a Name for logging. RenderStep is the only step
// that talks to the server; the others read or annotate the job.
type Step interface {
	// Do executes the pipeline step.
	// Non-critical problems should be recorded in the job and return nil.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Design decision: a Pipeline processes exactly one Job, and a batch runs one
// pipeline per company. Keeping the job the only shared state lets the batch
// processor run pipelines concurrently without locking, while the page and
// renderer inside a job are never touched by two goroutines.
//
// By default the first failing step stops the pipeline. A failed render
// usually means the server is unreachable, so later steps would only record
// an empty report.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. A failed render is still saved and reported
// this way.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// Cancellation is checked before each step; steps handle their own
// timeouts.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps ran (errors are recorded in the job).
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			job.Errors = append(job.Errors, ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"company", job.Company,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"company", job.Company,
				"error", err,
			)

			job.Errors = append(job.Errors, err)

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"company", job.Company,
			)
		}

		job.Performed = append(job.Performed, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
