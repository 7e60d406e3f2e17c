package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/fetcher"
)

// DBFileName is the name of the SQLite file inside the data directory.
const DBFileName = "webcrawler.db"

// ErrDigestMismatch is returned by LoadDocument when a stored body no longer
// matches the digest recorded with it.
var ErrDigestMismatch = errors.New("stored document digest mismatch")

// CrawlDB provides SQLite-based storage for cached documents and the
// history of finished crawls.
//
// Design decision: We keep both in one database file because:
//  1. A single file is easy to locate under the XDG data directory
//  2. SQLite serialises writers anyway, so separate files buy no throughput
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

var _ fetcher.DocumentStore = (*CrawlDB)(nil)

// Options configures CrawlDB behavior.
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

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer, and crawl workers write concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Documents cache downloaded pages keyed by URL
	CREATE TABLE IF NOT EXISTS documents (
		url TEXT PRIMARY KEY,
		final_url TEXT,
		status_code INTEGER NOT NULL,
		content_type TEXT,
		body BLOB,
		digest TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_fetched ON documents(fetched_at);

	-- Crawl runs store the result of each finished crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		downloaded_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		downloaded_json TEXT NOT NULL,
		errors_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Digest returns the hex-encoded SHA3-256 digest of body.
func Digest(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// SaveDocument inserts or replaces the cached copy of a page.
func (cdb *CrawlDB) SaveDocument(ctx context.Context, page *fetcher.Page) error {
	query := `
	INSERT INTO documents (url, final_url, status_code, content_type, body, digest, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		final_url = excluded.final_url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		body = excluded.body,
		digest = excluded.digest,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		page.URL,
		page.FinalURL,
		page.StatusCode,
		page.ContentType,
		page.Body,
		Digest(page.Body),
		formatTimestamp(page.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// LoadDocument returns the cached copy of a page, or nil if none is stored.
func (cdb *CrawlDB) LoadDocument(ctx context.Context, address string) (*fetcher.Page, error) {
	query := `
	SELECT url, final_url, status_code, content_type, body, digest, fetched_at
	FROM documents
	WHERE url = ?
	`

	var page fetcher.Page
	var finalURL, contentType sql.NullString
	var digest, fetchedAt string

	err := cdb.db.QueryRowContext(ctx, query, address).Scan(
		&page.URL,
		&finalURL,
		&page.StatusCode,
		&contentType,
		&page.Body,
		&digest,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if Digest(page.Body) != digest {
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, address)
	}

	page.FinalURL = finalURL.String
	page.ContentType = contentType.String
	page.FetchedAt = parseTimestamp(fetchedAt)
	return &page, nil
}

// PruneDocuments deletes cached documents fetched before cutoff and returns
// how many were removed.
func (cdb *CrawlDB) PruneDocuments(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := cdb.db.ExecContext(ctx,
		`DELETE FROM documents WHERE fetched_at < ?`,
		formatTimestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune documents: %w", err)
	}
	return result.RowsAffected()
}

// Run is a finished crawl as stored in the history.
type Run struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Seed is the normalised address the crawl started from.
	Seed string

	// Depth is the depth the crawl was started with.
	Depth int

	// StartedAt and FinishedAt bracket the Download call.
	StartedAt  time.Time
	FinishedAt time.Time

	// Downloaded lists the addresses fetched successfully.
	Downloaded []string

	// Errors maps failed addresses to their error message.
	Errors map[string]string
}

// NewRun builds a Run from a crawl result.
func NewRun(seed string, depth int, startedAt, finishedAt time.Time, result crawler.Result) *Run {
	errs := make(map[string]string, len(result.Errors))
	for address, err := range result.Errors {
		errs[address] = err.Error()
	}
	return &Run{
		Seed:       seed,
		Depth:      depth,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Downloaded: result.Downloaded,
		Errors:     errs,
	}
}

// RunSummary contains summary information about a stored run.
// This is used for listing history without loading the address lists.
type RunSummary struct {
	ID              int64
	Seed            string
	Depth           int
	StartedAt       time.Time
	FinishedAt      time.Time
	DownloadedCount int
	ErrorCount      int
}

// SaveRun stores a finished crawl and returns its ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *Run) (int64, error) {
	downloaded := run.Downloaded
	if downloaded == nil {
		downloaded = []string{}
	}
	downloadedJSON, err := json.Marshal(downloaded)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize downloaded list: %w", err)
	}
	errs := run.Errors
	if errs == nil {
		errs = map[string]string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize errors: %w", err)
	}

	query := `
	INSERT INTO crawl_runs (seed, depth, started_at, finished_at, downloaded_count, error_count, downloaded_json, errors_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query,
		run.Seed,
		run.Depth,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		len(downloaded),
		len(errs),
		string(downloadedJSON),
		string(errorsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl run id: %w", err)
	}
	run.ID = id
	return id, nil
}

// GetRun retrieves a run by its database ID, or nil if it does not exist.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `
	SELECT id, seed, depth, started_at, finished_at, downloaded_json, errors_json
	FROM crawl_runs
	WHERE id = ?
	`

	var run Run
	var startedAt, finishedAt, downloadedJSON, errorsJSON string
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Seed,
		&run.Depth,
		&startedAt,
		&finishedAt,
		&downloadedJSON,
		&errorsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	if err := json.Unmarshal([]byte(downloadedJSON), &run.Downloaded); err != nil {
		return nil, fmt.Errorf("failed to parse downloaded list: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to parse errors: %w", err)
	}

	return &run, nil
}

// ListRuns returns summaries of stored runs, newest first. An empty seed
// lists runs for every seed.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string) ([]RunSummary, error) {
	query := `
	SELECT id, seed, depth, started_at, finished_at, downloaded_count, error_count
	FROM crawl_runs
	`
	args := make([]any, 0, 1)
	if seed != "" {
		query += " WHERE seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var startedAt, finishedAt string
		if err := rows.Scan(
			&s.ID,
			&s.Seed,
			&s.Depth,
			&startedAt,
			&finishedAt,
			&s.DownloadedCount,
			&s.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.FinishedAt = parseTimestamp(finishedAt)
		results = append(results, s)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed with at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// timestampLayout is how timestamps are written. A fixed-width UTC layout
// keeps lexical order equal to chronological order in SQL comparisons.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats we may read back.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
