package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"shortforge/internal/store"

	"github.com/lib/pq"
)

const selectJob = `SELECT id, topic, duration, status, progress, created_at, completed_at, video_path, error, metadata FROM jobs`

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Create inserts the job and its initial log entries in one transaction.
func (s *Store) Create(ctx context.Context, job *store.Job) error {
	md, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, topic, duration, status, progress, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.ID, job.Topic, job.Duration, string(job.Status), job.Progress, job.CreatedAt, md)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicateID
		}
		return err
	}

	for _, entry := range job.Logs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO job_logs (job_id, content) VALUES ($1, $2)`, job.ID, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id string) (*store.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJob+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	logs, err := s.logsFor(ctx, s.db, []string{id})
	if err != nil {
		return nil, err
	}
	job.Logs = logs[id]

	return job, nil
}

func (s *Store) GetAll(ctx context.Context) ([]*store.Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		jobs []*store.Job
		ids  []string
	)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
		ids = append(ids, job.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return jobs, nil
	}

	logs, err := s.logsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		job.Logs = logs[job.ID]
	}

	return jobs, nil
}

// Update locks the row, applies the merge rules in Go and writes the
// result back. A missing row is a no-op.
func (s *Store) Update(ctx context.Context, id string, u store.JobUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx, selectJob+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	job.Apply(u)

	md, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, progress = $3, completed_at = $4, video_path = $5, error = $6, metadata = $7
		WHERE id = $1
	`, job.ID, string(job.Status), job.Progress, job.CompletedAt, job.VideoPath, job.Error, md)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// AddLog inserts an entry only if the job still exists.
func (s *Store) AddLog(ctx context.Context, id, text string) error {
	query := `
		INSERT INTO job_logs (job_id, content)
		SELECT $1::text, $2::text
		WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $1)
	`
	_, err := s.db.ExecContext(ctx, query, id, store.FormatLogEntry(s.now(), text))
	return err
}

// Delete removes the job; its logs are removed by cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	return err
}

func (s *Store) Count(ctx context.Context) (map[store.JobStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[store.JobStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[store.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) logsFor(ctx context.Context, q querier, ids []string) (map[string][]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT job_id, content FROM job_logs
		WHERE job_id = ANY($1)
		ORDER BY id ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make(map[string][]string, len(ids))
	for rows.Next() {
		var jobID, content string
		if err := rows.Scan(&jobID, &content); err != nil {
			return nil, err
		}
		logs[jobID] = append(logs[jobID], content)
	}
	return logs, rows.Err()
}

func scanJob(row rowScanner) (*store.Job, error) {
	var (
		job         store.Job
		status      string
		completedAt sql.NullTime
		metadata    []byte
	)

	err := row.Scan(
		&job.ID,
		&job.Topic,
		&job.Duration,
		&status,
		&job.Progress,
		&job.CreatedAt,
		&completedAt,
		&job.VideoPath,
		&job.Error,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	job.Status = store.JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for job %s: %w", job.ID, err)
		}
	}

	return &job, nil
}
