package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists transcripts in Postgres. Segments are stored as
// JSONB alongside the denormalized full text, which is all the query
// surface needs: transcripts are loaded whole, never per-segment.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and ensures the schema exists
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript store: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript store: ping: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		job_id VARCHAR(64) PRIMARY KEY,
		title TEXT,
		duration_seconds DOUBLE PRECISION NOT NULL,
		language VARCHAR(16),
		full_text TEXT NOT NULL,
		segments_json JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("transcript store: migrate: %w", err)
	}
	return nil
}

// Save upserts the transcript; a resubmitted job overwrites its prior record
func (s *PostgresStore) Save(ctx context.Context, t *Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("transcript store: marshal segments: %w", err)
	}

	query := `
		INSERT INTO transcripts (job_id, title, duration_seconds, language, full_text, segments_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			title = EXCLUDED.title,
			duration_seconds = EXCLUDED.duration_seconds,
			language = EXCLUDED.language,
			full_text = EXCLUDED.full_text,
			segments_json = EXCLUDED.segments_json,
			created_at = EXCLUDED.created_at
	`

	if _, err := s.db.ExecContext(ctx, query,
		t.JobID, t.Title, t.DurationSeconds, t.Language, t.FullText, segments, t.CreatedAt,
	); err != nil {
		return fmt.Errorf("transcript store: save: %w", err)
	}

	return nil
}

// Load reads the transcript for a job, or ErrNotFound
func (s *PostgresStore) Load(ctx context.Context, jobID string) (*Transcript, error) {
	query := `
		SELECT job_id, title, duration_seconds, language, full_text, segments_json, created_at
		FROM transcripts
		WHERE job_id = $1
	`

	var t Transcript
	var segments []byte
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&t.JobID, &t.Title, &t.DurationSeconds, &t.Language, &t.FullText, &segments, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transcript store: load: %w", err)
	}

	if err := json.Unmarshal(segments, &t.Segments); err != nil {
		return nil, fmt.Errorf("transcript store: unmarshal segments: %w", err)
	}

	return &t, nil
}

// Delete removes a stored transcript
func (s *PostgresStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("transcript store: delete: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for health checks.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close releases the underlying connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
