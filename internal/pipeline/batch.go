package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of companies researched at once.
const DefaultConcurrency = 4

// BatchProcessor researches several companies concurrently, each job in
// its own pipeline. It uses errgroup to bound the number of goroutines.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each job.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per job so pipeline state does not leak
// between companies.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch researches every company and returns the jobs in input
// order. A failed job does not stop the others; its errors are recorded in
// the job. The error return is non-nil only when ctx ends the batch early,
// in which case jobs that never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, companies []string) ([]*Job, error) {
	jobs := make([]*Job, len(companies))
	err := bp.ProcessBatchWithCallback(ctx, companies, func(job *Job, index int) {
		jobs[index] = job
	})
	return jobs, err
}

// ProcessBatchWithCallback researches every company and calls callback
// for each finished job with its index in companies. The callback is called
// from the goroutine that ran the job, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	companies []string,
	callback func(job *Job, index int),
) error {
	bp.logger.Info("starting batch research",
		"total_companies", len(companies),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, company := range companies {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("researching company",
				"company", company,
				"index", i+1,
				"total", len(companies),
			)

			job := NewJob(company)
			if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
				bp.logger.Warn("research failed",
					"company", company,
					"error", err,
				)
			} else if err := job.Err(); err != nil {
				bp.logger.Warn("research finished with errors",
					"company", company,
					"error", err,
				)
			}

			callback(job, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch research complete",
		"total_companies", len(companies),
		"elapsed", time.Since(startTime),
	)

	return err
}
