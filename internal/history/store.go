// Package history persists build requests and their publishing results.
//
// Round 2 of a task needs the round-1 record to construct a combined
// revision brief and to locate the repository that was published, so the
// store keeps one row per (task, round) for requests and one for results.
// Task matching is case-insensitive.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/appbuilder/internal/attach"
)

// RequestRecord is a stored build request.
type RequestRecord struct {
	ID            int64
	Email         string
	Task          string
	Round         int
	Nonce         string
	Brief         string
	Checks        []string
	EvaluationURL string
	Attachments   []attach.Attachment
	CreatedAt     time.Time
}

// ResultRecord is the publishing outcome of a completed build.
type ResultRecord struct {
	ID        int64
	Task      string
	Round     int
	RepoURL   string
	CommitSHA string
	PagesURL  string
	CreatedAt time.Time
}

// Store implements build history persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens the history database at dbPath and ensures the schema
// exists. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS build_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL,
		task TEXT NOT NULL COLLATE NOCASE,
		round INTEGER NOT NULL,
		nonce TEXT NOT NULL,
		brief TEXT NOT NULL,
		checks TEXT,
		evaluation_url TEXT NOT NULL,
		attachments TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(task, round)
	);
	CREATE TABLE IF NOT EXISTS build_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task TEXT NOT NULL COLLATE NOCASE,
		round INTEGER NOT NULL,
		repo_url TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		pages_url TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(task, round)
	);
	CREATE INDEX IF NOT EXISTS idx_requests_task ON build_requests(task);
	CREATE INDEX IF NOT EXISTS idx_results_task ON build_results(task);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRequest inserts a build request row.
func (s *Store) SaveRequest(ctx context.Context, rec *RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	checksJSON, err := json.Marshal(rec.Checks)
	if err != nil {
		return fmt.Errorf("marshal checks: %w", err)
	}
	attachmentsJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO build_requests (email, task, round, nonce, brief, checks, evaluation_url, attachments, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.Email, rec.Task, rec.Round, rec.Nonce, rec.Brief, checksJSON, rec.EvaluationURL, attachmentsJSON, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build request: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// FindRequest returns the stored request for a task and round, or nil
// when no matching row exists. The task lookup ignores case.
func (s *Store) FindRequest(ctx context.Context, task string, round int) (*RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, task, round, nonce, brief, checks, evaluation_url, attachments, created_at FROM build_requests WHERE task = ? AND round = ?",
		task, round,
	)

	var rec RequestRecord
	var checksJSON, attachmentsJSON []byte
	var createdUnix int64
	err := row.Scan(&rec.ID, &rec.Email, &rec.Task, &rec.Round, &rec.Nonce, &rec.Brief, &checksJSON, &rec.EvaluationURL, &attachmentsJSON, &createdUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query build request: %w", err)
	}

	rec.CreatedAt = time.Unix(createdUnix, 0)
	if len(checksJSON) > 0 {
		if err := json.Unmarshal(checksJSON, &rec.Checks); err != nil {
			return nil, fmt.Errorf("unmarshal checks: %w", err)
		}
	}
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &rec.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return &rec, nil
}

// DeleteRound removes the request and result rows for a task and round.
// A first-round resubmission starts from a clean slate.
func (s *Store) DeleteRound(ctx context.Context, task string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM build_requests WHERE task = ? AND round = ?", task, round); err != nil {
		return fmt.Errorf("delete build request: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM build_results WHERE task = ? AND round = ?", task, round); err != nil {
		return fmt.Errorf("delete build result: %w", err)
	}
	return nil
}

// SaveResult inserts a publishing result row.
func (s *Store) SaveResult(ctx context.Context, rec *ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO build_results (task, round, repo_url, commit_sha, pages_url, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.Task, rec.Round, rec.RepoURL, rec.CommitSHA, rec.PagesURL, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build result: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// FindResult returns the stored result for a task and round, or nil when
// no matching row exists.
func (s *Store) FindResult(ctx context.Context, task string, round int) (*ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, task, round, repo_url, commit_sha, pages_url, created_at FROM build_results WHERE task = ? AND round = ?",
		task, round,
	)

	var rec ResultRecord
	var createdUnix int64
	err := row.Scan(&rec.ID, &rec.Task, &rec.Round, &rec.RepoURL, &rec.CommitSHA, &rec.PagesURL, &createdUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query build result: %w", err)
	}
	rec.CreatedAt = time.Unix(createdUnix, 0)
	return &rec, nil
}

// Counts reports row totals, used by the maintenance job for logging.
func (s *Store) Counts(ctx context.Context) (requests, results int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM build_requests").Scan(&requests); err != nil {
		return 0, 0, fmt.Errorf("count build requests: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM build_results").Scan(&results); err != nil {
		return 0, 0, fmt.Errorf("count build results: %w", err)
	}
	return requests, results, nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
