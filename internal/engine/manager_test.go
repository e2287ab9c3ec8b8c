package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarwick/vget/internal/domain"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.FetchJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*domain.FetchJob)}
}

func (m *memStore) SaveJob(job *domain.FetchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memStore) GetJob(id string) (*domain.FetchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *memStore) GetJobs() ([]*domain.FetchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.FetchJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

type stubDownloader struct {
	mu      sync.Mutex
	results map[string]error // URL -> outcome
	started chan string
	release chan struct{}
}

func newStubDownloader() *stubDownloader {
	return &stubDownloader{
		results: make(map[string]error),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (d *stubDownloader) Download(ctx context.Context, job *domain.FetchJob) error {
	d.started <- job.URL
	select {
	case <-d.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results[job.URL]
}

func newTestManager(t *testing.T) (*QueueManager, *memStore, *stubDownloader) {
	t.Helper()
	appCtx := testAppContext(t, t.TempDir())
	st := newMemStore()
	appCtx.Store = st
	dl := newStubDownloader()
	return NewQueueManager(appCtx, dl), st, dl
}

func waitStatus(t *testing.T, m *QueueManager, id string, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := m.GetItem(id); ok && job.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := m.GetItem(id)
	t.Fatalf("job %s never reached %s (last: %+v)", id, want, job)
}

func Test_Manager_AddValidation(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Add("ftp://bad.example/file", "", false)
	assert.Error(t, err)

	job, err := m.Add("https://media.example/path/clip.mp4", "", false)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", job.Name, "name derives from the URL path")
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.NotEmpty(t, job.ID)

	named, err := m.Add("https://media.example/", "custom.bin", true)
	require.NoError(t, err)
	assert.Equal(t, "custom.bin", named.Name)
	assert.True(t, named.Sequential)
}

func Test_Manager_RunsJobsInOrder(t *testing.T) {
	m, st, dl := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	j1, err := m.Add("https://media.example/a.mp4", "", false)
	require.NoError(t, err)
	j2, err := m.Add("https://media.example/b.mp4", "", false)
	require.NoError(t, err)

	// One at a time: the second must not start while the first holds the slot
	first := <-dl.started
	assert.Equal(t, j1.URL, first)
	select {
	case url := <-dl.started:
		t.Fatalf("second job %s started before the first finished", url)
	case <-time.After(50 * time.Millisecond):
	}

	close(dl.release)

	second := <-dl.started
	assert.Equal(t, j2.URL, second)

	waitStatus(t, m, j1.ID, domain.StatusCompleted)
	waitStatus(t, m, j2.ID, domain.StatusCompleted)

	// Finished jobs leave the live queue but stay in the store
	assert.Empty(t, m.GetAllItems())
	stored, err := st.GetJob(j1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func Test_Manager_FailedJob(t *testing.T) {
	m, _, dl := newTestManager(t)
	dl.results["https://media.example/broken.mp4"] = errors.New("stream died")
	close(dl.release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	job, err := m.Add("https://media.example/broken.mp4", "", false)
	require.NoError(t, err)

	waitStatus(t, m, job.ID, domain.StatusFailed)
	got, _ := m.GetItem(job.ID)
	assert.Equal(t, "stream died", got.Error)
}

func Test_Manager_CancelRunning(t *testing.T) {
	m, _, dl := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	job, err := m.Add("https://media.example/long.mp4", "", false)
	require.NoError(t, err)

	<-dl.started
	require.True(t, m.Cancel(job.ID))

	waitStatus(t, m, job.ID, domain.StatusFailed)
	got, _ := m.GetItem(job.ID)
	assert.Equal(t, "Cancelled by user", got.Error)
}

func Test_Manager_CancelPending(t *testing.T) {
	m, _, _ := newTestManager(t)

	// No Start loop running: the job stays pending
	job, err := m.Add("https://media.example/queued.mp4", "", false)
	require.NoError(t, err)

	require.True(t, m.Cancel(job.ID))
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Empty(t, m.GetAllItems(), "cancelled pending jobs leave the live queue")

	// Unknown IDs are not cancellable
	assert.False(t, m.Cancel("missing"))
}
