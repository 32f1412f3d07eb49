package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toolfleet/toolfleet/internal/job"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the jobs table exists.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id         TEXT PRIMARY KEY,
  doc        JSON NOT NULL,
  updated_at TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite: %w", err)
	}
	return db, nil
}

// SQLiteStore keeps job documents in a single sqlite table keyed by id.
// Suited to single-host deployments where the server and worker share a
// filesystem; the redis backend covers a distributed fleet.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, req CreateRequest) (*job.Job, error) {
	j, err := newJob(req)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *SQLiteStore) Save(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" {
		return fmt.Errorf("job id is empty")
	}
	j.UpdatedAt = time.Now().UTC()
	return s.write(ctx, j)
}

func (s *SQLiteStore) write(ctx context.Context, j *job.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs(id, doc, updated_at) VALUES(?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  doc = excluded.doc,
  updated_at = excluded.updated_at;
`, j.ID, string(doc), j.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write job %s: %w", j.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*job.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id is empty")
	}

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM jobs WHERE id = ?;", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}

	var j job.Job
	if err := json.Unmarshal([]byte(doc), &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter, limit, offset int) ([]*job.Job, int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc FROM jobs;")
	if err != nil {
		return nil, 0, fmt.Errorf("enumerate jobs: %w", err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("scan job document: %w", err)
		}
		docs = append(docs, []byte(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("enumerate jobs: %w", err)
	}

	return selectJobs(docs, f, limit, offset)
}
