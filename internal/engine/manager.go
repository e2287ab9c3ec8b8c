package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync"

	"github.com/segmentio/ksuid"
	"github.com/tarwick/vget/internal/app"
	"github.com/tarwick/vget/internal/domain"
)

// QueueManager owns the job queue: one download runs at a time, the rest
// wait in submission order (ksuid IDs sort chronologically).
type QueueManager struct {
	mu         sync.RWMutex
	appCtx     *app.Context
	downloader app.Downloader
	queue      []*domain.FetchJob
	activeItem *domain.FetchJob

	newJobChan chan struct{}
}

func NewQueueManager(appCtx *app.Context, dl app.Downloader) *QueueManager {
	return &QueueManager{
		appCtx:     appCtx,
		downloader: dl,
		newJobChan: make(chan struct{}, 1),
	}
}

// Add validates the URL, creates a new FetchJob and notifies the run loop.
func (m *QueueManager) Add(rawurl, name string, sequential bool) (*domain.FetchJob, error) {
	u, err := url.Parse(rawurl)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid download URL: %s", rawurl)
	}

	if name == "" {
		name = path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "download"
		}
	}

	job := &domain.FetchJob{
		ID:         ksuid.New().String(),
		Name:       name,
		URL:        rawurl,
		Sequential: sequential,
		Status:     domain.StatusPending,
	}

	if err := m.appCtx.Store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}

	return job, nil
}

// Start runs the queue until ctx is cancelled. Call it from a goroutine.
func (m *QueueManager) Start(ctx context.Context) {
	for {
		var next *domain.FetchJob

		m.mu.RLock()
		for _, job := range m.queue {
			if job.Status == domain.StatusPending {
				next = job
				break
			}
		}
		m.mu.RUnlock()

		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}

		m.mu.Lock()
		m.activeItem = next
		jobCtx, cancel := context.WithCancel(ctx)
		next.CancelFunc = cancel
		m.mu.Unlock()

		m.updateStatus(next, domain.StatusDownloading)
		jobErr := m.downloader.Download(jobCtx, next)

		m.finalizeJob(next, jobErr)
		cancel()

		if ctx.Err() != nil {
			return
		}
	}
}

// GetActiveItem lets the API see what's currently running.
func (m *QueueManager) GetActiveItem() *domain.FetchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeItem
}

// GetItem searches the live queue first, then the store.
func (m *QueueManager) GetItem(id string) (*domain.FetchJob, bool) {
	m.mu.RLock()
	for _, job := range m.queue {
		if job.ID == id {
			m.mu.RUnlock()
			return job, true
		}
	}
	m.mu.RUnlock()

	job, err := m.appCtx.Store.GetJob(id)
	if err == nil && job != nil {
		return job, true
	}
	return nil, false
}

// GetAllItems returns a copy of the current queue slice.
func (m *QueueManager) GetAllItems() []*domain.FetchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]*domain.FetchJob, len(m.queue))
	copy(items, m.queue)
	return items
}

// Cancel stops a pending or running job. Finished jobs are left alone.
func (m *QueueManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.queue {
		if job.ID != id {
			continue
		}
		if job.Status == domain.StatusCompleted || job.Status == domain.StatusFailed {
			return false
		}
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
		if job.Status == domain.StatusPending {
			job.Status = domain.StatusFailed
			job.Error = "Cancelled by user"
			_ = m.appCtx.Store.SaveJob(job)
			m.removeFromLiveQueue(job.ID)
		}
		return true
	}
	return false
}

// updateStatus changes the status and saves to the store immediately.
func (m *QueueManager) updateStatus(job *domain.FetchJob, status domain.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
	_ = m.appCtx.Store.SaveJob(job)
}

func (m *QueueManager) finalizeJob(job *domain.FetchJob, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		job.Status = domain.StatusFailed
		if errors.Is(err, context.Canceled) {
			job.Error = "Cancelled by user"
		} else {
			job.Error = err.Error()
		}
	} else {
		job.Status = domain.StatusCompleted
	}

	// Persist the final outcome
	_ = m.appCtx.Store.SaveJob(job)

	m.activeItem = nil
	m.removeFromLiveQueue(job.ID)
}

// removeFromLiveQueue keeps the active slice small by removing finished
// items; history stays in the store.
func (m *QueueManager) removeFromLiveQueue(id string) {
	for i, job := range m.queue {
		if job.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
