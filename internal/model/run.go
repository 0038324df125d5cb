package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// Run records one activation of the stream renderer.
// A run is created when the control is activated and completed when the
// response stream ends or fails.
type Run struct {
	// ID is assigned by the history database. Zero means not stored.
	ID int64 `json:"id,omitempty"`

	// Query is what was sent to the research endpoint.
	Query Query `json:"query"`

	// Variant is the rendering variant used for this run.
	Variant Variant `json:"variant"`

	// Server is the base URL of the research endpoint.
	Server string `json:"server,omitempty"`

	// StatusCode is the HTTP status of the response, 0 if no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Chunks is the number of chunks read from the body.
	Chunks int `json:"chunks"`

	// Bytes is the number of raw body bytes read.
	Bytes int64 `json:"bytes"`

	// SentinelSeen is true once a chunk equal to the stream marker arrived.
	SentinelSeen bool `json:"sentinel_seen"`

	// Content is the final content of the report element.
	Content string `json:"content"`

	// Error holds the failure message if the run did not complete.
	Error string `json:"error,omitempty"`

	// StartedAt and FinishedAt bracket the activation.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRun creates a run for the given query, stamped with the current time.
func NewRun(query Query, variant Variant) *Run {
	return &Run{
		Query:     query,
		Variant:   variant,
		StartedAt: time.Now(),
	}
}

// Finish marks the run as finished, recording err if non-nil.
func (r *Run) Finish(err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

// Failed reports whether the run ended with an error.
func (r *Run) Failed() bool {
	return r.Error != ""
}

// Duration returns how long the run took. Unfinished runs report zero.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Hash returns the hex SHA3-256 digest of the final content.
// Two runs with the same hash rendered the same report.
func (r *Run) Hash() string {
	sum := sha3.Sum256([]byte(r.Content))
	return hex.EncodeToString(sum[:])
}
