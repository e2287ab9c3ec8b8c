package domain

import (
	"context"
	"sync/atomic"
	"time"
)

type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// FetchJob represents one media download from submission to completion.
type FetchJob struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	URL    string    `json:"url"`
	Status JobStatus `json:"status"`

	// Sequential selects the segmented (sq=0..N) retrieval path instead of
	// a single ranged stream.
	Sequential bool `json:"sequential"`

	BytesWritten atomic.Uint64 `json:"-"`
	TotalBytes   uint64        `json:"total_bytes"`

	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`

	CancelFunc context.CancelFunc `json:"-"`
}
