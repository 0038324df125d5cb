package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/researchstream/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "history.db"

// ErrRunNotFound is returned when no stored run matches a lookup.
var ErrRunNotFound = errors.New("research run not found")

// HistoryDB stores finished research runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL,
		criteria TEXT NOT NULL,
		variant TEXT NOT NULL,
		server TEXT,
		status_code INTEGER,
		chunks INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		sentinel_seen INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_company ON runs(company);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(content_hash);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores run and sets its ID.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	query := `
	INSERT INTO runs (company, criteria, variant, server, status_code, chunks, bytes,
		sentinel_seen, content, content_hash, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		run.Query.Company,
		run.Query.Criteria.String(),
		run.Variant.String(),
		run.Server,
		run.StatusCode,
		run.Chunks,
		run.Bytes,
		run.SentinelSeen,
		run.Content,
		run.Hash(),
		run.Error,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save research run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	run.ID = id
	return id, nil
}

const selectRun = `
	SELECT id, company, criteria, variant, server, status_code, chunks, bytes,
		sentinel_seen, content, error, started_at, finished_at
	FROM runs
	`

// GetRun retrieves a stored run by its ID.
func (hdb *HistoryDB) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	row := hdb.db.QueryRowContext(ctx, selectRun+"WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get research run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recent run for company.
func (hdb *HistoryDB) LatestRun(ctx context.Context, company string) (*model.Run, error) {
	row := hdb.db.QueryRowContext(ctx, selectRun+"WHERE company = ? ORDER BY started_at DESC, id DESC LIMIT 1", company)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: company %q", ErrRunNotFound, company)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest research run: %w", err)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first. An empty company lists runs
// for every company; a non-positive limit returns all matching runs.
func (hdb *HistoryDB) ListRuns(ctx context.Context, company string, limit int) ([]*model.Run, error) {
	query := selectRun
	var args []any
	if company != "" {
		query += "WHERE company = ? "
		args = append(args, company)
	}
	query += "ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list research runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan research run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ListCompanies returns every company with at least one stored run.
func (hdb *HistoryDB) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT company FROM runs ORDER BY company`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var company string
		if err := rows.Scan(&company); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}

	return companies, rows.Err()
}

// DeleteRun removes a stored run.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id int64) error {
	result, err := hdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete research run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete research run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var (
		run        model.Run
		criteria   string
		variant    string
		server     sql.NullString
		status     sql.NullInt64
		errText    sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)

	if err := row.Scan(
		&run.ID,
		&run.Query.Company,
		&criteria,
		&variant,
		&server,
		&status,
		&run.Chunks,
		&run.Bytes,
		&run.SentinelSeen,
		&run.Content,
		&errText,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	run.Query.Criteria = model.ParseCriteria(criteria)
	run.Variant = model.Variant(variant)
	run.Server = server.String
	run.StatusCode = int(status.Int64)
	run.Error = errText.String
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)

	return &run, nil
}

// formatTimestamp stores t in UTC with nanoseconds so runs sort by start
// time as text. The zero time is stored as the empty string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampLayout is fixed-width so lexical order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
