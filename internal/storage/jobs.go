package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job states. A job moves pending -> running -> completed, or back to
// pending after a failed attempt until it runs out of attempts.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

const defaultMaxAttempts = 3

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		j                             Job
		runAfter, createdAt, updateAt string
		lastError                     sql.NullString
	)
	err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updateAt, &lastError)
	if err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String

	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"run_after", runAfter, &j.RunAfter},
		{"created_at", createdAt, &j.CreatedAt},
		{"updated_at", updateAt, &j.UpdatedAt},
	} {
		if *f.dst, err = time.Parse(time.RFC3339, f.raw); err != nil {
			return Job{}, fmt.Errorf("job %s: parsing %s: %w", j.ID, f.name, err)
		}
	}
	return j, nil
}

// EnqueueJob inserts a pending job. A zero RunAfter means now; a zero
// MaxAttempts means 3.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending, job.MaxAttempts,
		timestamp(job.RunAfter), timestamp(now), timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimNextJob marks the oldest due pending job of one of types as running
// and returns it. It returns nil when nothing is due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := timestamp(time.Now())
	args := []any{now}
	for _, t := range types {
		args = append(args, t)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
		ORDER BY run_after, created_at
		LIMIT 1`

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	ok, err := execOne(tx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobRunning, now, j.ID, JobPending)
	if err != nil || !ok {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = JobRunning
	j.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return &j, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// execOne runs an update and reports whether exactly one row changed.
func execOne(db execer, query string, args ...any) (bool, error) {
	res, err := db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) CompleteJob(id string) error {
	ok, err := execOne(s.db, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		JobCompleted, timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CancelJob marks a pending job cancelled. It reports false when the job is
// unknown or already claimed.
func (s *Store) CancelJob(id string) (bool, error) {
	ok, err := execOne(s.db, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobCancelled, timestamp(time.Now()), id, JobPending)
	if err != nil {
		return false, fmt.Errorf("cancelling job %s: %w", id, err)
	}
	return ok, nil
}

func (s *Store) GetJob(id string) (Job, error) {
	j, err := scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("getting job %s: %w", id, err)
	}
	return j, nil
}

// FailJob records a failed attempt. The job goes back to pending with a
// backoff of 2^attempts seconds until max_attempts is reached.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading job %s: %w", id, err)
	}

	now := time.Now()
	attempts++
	status, runAfter := JobPending, now.Add(time.Duration(1<<attempts)*time.Second)
	if attempts >= maxAttempts {
		status, runAfter = JobFailed, now
	}
	if _, err := tx.Exec(`UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
		status, attempts, errMsg, timestamp(runAfter), timestamp(now), id); err != nil {
		return fmt.Errorf("failing job %s: %w", id, err)
	}
	return tx.Commit()
}
