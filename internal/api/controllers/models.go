package controllers

import "time"

type CreateJobRequest struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Sequential bool   `json:"sequential"`
}

type JobResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Status       string    `json:"status"`
	Sequential   bool      `json:"sequential"`
	TotalBytes   uint64    `json:"total_bytes"`
	BytesWritten uint64    `json:"bytes_written"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	Error        string    `json:"error,omitempty"`
}

type SizeResponse struct {
	URL        string `json:"url"`
	Sequential bool   `json:"sequential"`
	Size       int64  `json:"size"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
