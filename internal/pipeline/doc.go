// Package pipeline runs research jobs as a sequence of steps.
//
// A job researches one company: a step prepares the page (input value and
// checked criteria), a step activates the stream renderer, and further steps
// store the run in the history database or write the report. Each step
// receives the job and may fill in its fields.
//
// Several companies are researched concurrently by BatchProcessor, which
// bounds concurrency with errgroup.
package pipeline
