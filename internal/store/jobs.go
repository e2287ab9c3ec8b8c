package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tarwick/vget/internal/domain"
)

// SaveJob upserts a job record. Jobs are saved at every status transition,
// so the row always reflects the latest known state.
func (s *PersistentStore) SaveJob(job *domain.FetchJob) error {
	seq := 0
	if job.Sequential {
		seq = 1
	}

	var startedAt int64
	if !job.StartedAt.IsZero() {
		startedAt = job.StartedAt.Unix()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO fetch_jobs
			(id, name, url, sequential, status, total_bytes, bytes_written, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.URL, seq, string(job.Status),
		job.TotalBytes, job.BytesWritten.Load(), startedAt, job.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the stored record for id, or nil when no row exists.
func (s *PersistentStore) GetJob(id string) (*domain.FetchJob, error) {
	row := s.db.QueryRow(`
		SELECT id, name, url, sequential, status, total_bytes, bytes_written, started_at, error
		FROM fetch_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// GetJobs returns all stored jobs, newest submission first. ksuid IDs sort
// chronologically so ordering by id is ordering by creation time.
func (s *PersistentStore) GetJobs() ([]*domain.FetchJob, error) {
	rows, err := s.db.Query(`
		SELECT id, name, url, sequential, status, total_bytes, bytes_written, started_at, error
		FROM fetch_jobs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.FetchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*domain.FetchJob, error) {
	var (
		job       domain.FetchJob
		seq       int
		status    string
		written   uint64
		startedAt int64
	)

	err := r.Scan(&job.ID, &job.Name, &job.URL, &seq, &status,
		&job.TotalBytes, &written, &startedAt, &job.Error)
	if err != nil {
		return nil, err
	}

	job.Sequential = seq != 0
	job.Status = domain.JobStatus(status)
	job.BytesWritten.Store(written)
	if startedAt != 0 {
		job.StartedAt = time.Unix(startedAt, 0)
	}
	return &job, nil
}
