// Package model defines the data structures shared by the research client.
//
// This package contains the following main types:
//   - Topic: one entry of the research criteria vocabulary
//   - Criteria: the ordered set of selected criteria IDs
//   - Query: the company and criteria sent to the research endpoint
//   - Run: the outcome of one activation of the stream renderer
//
// The types carry JSON tags so runs can be written as reports and stored in
// the history database.
package model
