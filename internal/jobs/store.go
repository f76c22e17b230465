// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobs runs research jobs as managed background tasks and persists
// their findings and reports.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshintel/deepresearch/pkg/types"
)

const dbFile = "research.db"

// Store persists jobs, findings, and reports in a SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the job database at dir/research.db, creating
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			requester_id TEXT,
			stage TEXT NOT NULL,
			iteration INTEGER NOT NULL DEFAULT 1,
			degraded INTEGER NOT NULL DEFAULT 0,
			failure_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES jobs(id),
			sub_topic_id TEXT,
			provider TEXT,
			title TEXT,
			url TEXT NOT NULL,
			snippet TEXT,
			source_type TEXT,
			retrieved_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_job_id ON findings(job_id)`,
		`CREATE TABLE IF NOT EXISTS reports (
			job_id TEXT PRIMARY KEY REFERENCES jobs(id),
			body TEXT NOT NULL,
			citations TEXT,
			fallback INTEGER NOT NULL DEFAULT 0,
			written_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// JobRecord is a job row as stored.
type JobRecord struct {
	ID            string    `json:"id" yaml:"id"`
	Question      string    `json:"question" yaml:"question"`
	RequesterID   string    `json:"requester_id" yaml:"requester_id"`
	Stage         string    `json:"stage" yaml:"stage"`
	Iteration     int       `json:"iteration" yaml:"iteration"`
	Degraded      bool      `json:"degraded" yaml:"degraded"`
	FailureReason string    `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// CreateJob inserts a new job row in its initial stage.
func (s *Store) CreateJob(ctx context.Context, id string, q types.ResearchQuestion, stage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, question, requester_id, stage, iteration, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id, q.Text, q.RequesterID, stage, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// UpdateJob records the job's current stage, iteration, and degradation.
func (s *Store) UpdateJob(ctx context.Context, id, stage string, iteration int, degraded bool, failureReason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET stage = ?, iteration = ?, degraded = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ?`,
		stage, iteration, boolInt(degraded), failureReason, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return nil
}

// GetJob loads one job row.
func (s *Store) GetJob(ctx context.Context, id string) (JobRecord, error) {
	var (
		rec                  JobRecord
		degraded             int
		failure              sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, requester_id, stage, iteration, degraded, failure_reason, created_at, updated_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Question, &rec.RequesterID, &rec.Stage, &rec.Iteration,
		&degraded, &failure, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return JobRecord{}, fmt.Errorf("job %s not found", id)
		}
		return JobRecord{}, fmt.Errorf("looking up job: %w", err)
	}
	rec.Degraded = degraded != 0
	rec.FailureReason = failure.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

// SaveFindings inserts a batch of findings for a job. Re-inserting an
// already stored finding is a no-op.
func (s *Store) SaveFindings(ctx context.Context, jobID string, findings []types.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO findings (id, job_id, sub_topic_id, provider, title, url, snippet, source_type, retrieved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		_, err := stmt.ExecContext(ctx,
			f.ID, jobID, f.SubTopicID, f.Provider, f.Title, f.URL, f.Snippet,
			string(f.SourceType), f.RetrievedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting finding %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// Findings loads all findings for a job in insertion order.
func (s *Store) Findings(ctx context.Context, jobID string) ([]types.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sub_topic_id, provider, title, url, snippet, source_type, retrieved_at
		 FROM findings WHERE job_id = ? ORDER BY rowid`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var out []types.Finding
	for rows.Next() {
		var (
			f           types.Finding
			sourceType  string
			retrievedAt string
		)
		if err := rows.Scan(&f.ID, &f.SubTopicID, &f.Provider, &f.Title, &f.URL,
			&f.Snippet, &sourceType, &retrievedAt); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.SourceType = types.SourceType(sourceType)
		f.RetrievedAt, _ = time.Parse(time.RFC3339Nano, retrievedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveReport upserts the report for a job.
func (s *Store) SaveReport(ctx context.Context, jobID string, rep types.ResearchReport) error {
	citationsJSON, err := json.Marshal(rep.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (job_id, body, citations, fallback, written_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			body=excluded.body, citations=excluded.citations,
			fallback=excluded.fallback, written_at=excluded.written_at`,
		jobID, rep.MarkdownBody, string(citationsJSON), boolInt(rep.Fallback), now,
	)
	if err != nil {
		return fmt.Errorf("upserting report: %w", err)
	}
	return nil
}

// Report loads the report for a job.
func (s *Store) Report(ctx context.Context, jobID string) (types.ResearchReport, error) {
	var (
		rep           types.ResearchReport
		citationsJSON sql.NullString
		fallback      int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, citations, fallback FROM reports WHERE job_id = ?`, jobID,
	).Scan(&rep.MarkdownBody, &citationsJSON, &fallback)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.ResearchReport{}, fmt.Errorf("no report for job %s", jobID)
		}
		return types.ResearchReport{}, fmt.Errorf("looking up report: %w", err)
	}
	if citationsJSON.Valid {
		json.Unmarshal([]byte(citationsJSON.String), &rep.Citations)
	}
	rep.Fallback = fallback != 0
	return rep, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
