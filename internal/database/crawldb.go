package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkcrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "linkcrawl.db"

// CrawlDB provides SQLite-based storage for finished crawl runs.
//
// Each run is stored twice: as the full report JSON, and as one page_visits
// row per fetch attempt.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
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

	// mode=rw refuses to create a missing file; mode=rwc creates it.
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
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
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
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		seeds TEXT NOT NULL,
		start_depth INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- One row per fetch attempt of a run
	CREATE TABLE IF NOT EXISTS page_visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		link_count INTEGER NOT NULL,
		body_size INTEGER NOT NULL,
		body_hash TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON page_visits(run_id);
	CREATE INDEX IF NOT EXISTS idx_visits_url ON page_visits(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a finished crawl and its visits in one transaction.
// On success report.ID is set to the new run ID, which is also returned.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (id int64, err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	seedsJSON, err := json.Marshal(report.Seeds)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize seeds: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (started_at, finished_at, seeds, start_depth, max_depth, outcome, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(seedsJSON),
		report.StartDepth,
		report.MaxDepth,
		report.Outcome(),
		nullString(report.ErrorMessage),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO page_visits (run_id, url, depth, link_count, body_size, body_hash, error, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range report.Visits {
		if _, err = stmt.ExecContext(ctx,
			id, v.URL, v.Depth, len(v.Links), v.BodySize,
			nullString(v.BodyHash), nullString(v.Error), v.Duration.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("failed to insert visit of %s: %w", v.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	report.ID = id
	return id, nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Seeds      []string  `json:"seeds"`
	StartDepth int       `json:"start_depth"`
	MaxDepth   int       `json:"max_depth"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	VisitCount int       `json:"visit_count"`
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `
	SELECT r.id, r.started_at, r.finished_at, r.seeds, r.start_depth, r.max_depth, r.outcome, r.error,
		(SELECT COUNT(*) FROM page_visits v WHERE v.run_id = r.id)
	FROM crawl_runs r
	ORDER BY r.id DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			run                   RunSummary
			startedAt, finishedAt string
			seedsJSON             string
			errMsg                sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &seedsJSON,
			&run.StartDepth, &run.MaxDepth, &run.Outcome, &errMsg, &run.VisitCount); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		run.StartedAt = parseTimestamp(startedAt)
		run.FinishedAt = parseTimestamp(finishedAt)
		run.Error = errMsg.String
		if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
			return nil, fmt.Errorf("failed to parse seeds of run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetReport returns the stored report of run id, or nil if there is none.
func (cdb *CrawlDB) GetReport(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run %d: %w", id, err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report of run %d: %w", id, err)
	}
	report.ID = id
	return &report, nil
}

// VisitRecord is a stored fetch attempt.
type VisitRecord struct {
	RunID     int64         `json:"run_id"`
	URL       string        `json:"url"`
	Depth     int           `json:"depth"`
	LinkCount int           `json:"link_count"`
	BodySize  int           `json:"body_size"`
	BodyHash  string        `json:"body_hash,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// VisitsForRun returns the visits of run id in the order they were saved.
func (cdb *CrawlDB) VisitsForRun(ctx context.Context, id int64) ([]VisitRecord, error) {
	query := `
	SELECT run_id, url, depth, link_count, body_size, body_hash, error, duration_ms
	FROM page_visits
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get visits of run %d: %w", id, err)
	}
	defer rows.Close()

	visits := make([]VisitRecord, 0)
	for rows.Next() {
		var (
			v          VisitRecord
			hash, msg  sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&v.RunID, &v.URL, &v.Depth, &v.LinkCount, &v.BodySize, &hash, &msg, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.BodyHash = hash.String
		v.Error = msg.String
		v.Duration = time.Duration(durationMS) * time.Millisecond
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries each known format and returns the zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
