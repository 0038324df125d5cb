// Package database provides SQLite-based storage for research history.
//
// Every finished research run is stored with its query, transfer statistics,
// final report content and content hash, so earlier reports can be listed,
// shown again and compared without contacting the research server.
//
// The database is a single file (via modernc.org/sqlite, CGO-free) under
// the XDG data directory.
package database
