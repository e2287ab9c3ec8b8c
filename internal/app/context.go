package app

import (
	"context"

	"github.com/tarwick/vget/internal/config"
	"github.com/tarwick/vget/internal/domain"
	"github.com/tarwick/vget/internal/logger"
	"github.com/tarwick/vget/internal/transport"
)

// Store is the persistence contract the queue and API need. Keeping it
// here lets them avoid importing the store package directly.
type Store interface {
	SaveJob(job *domain.FetchJob) error
	GetJob(id string) (*domain.FetchJob, error)
	GetJobs() ([]*domain.FetchJob, error)
}

// Queue is what the API layer needs from the download queue.
type Queue interface {
	Add(rawurl, name string, sequential bool) (*domain.FetchJob, error)
	GetItem(id string) (*domain.FetchJob, bool)
	GetAllItems() []*domain.FetchJob
	Cancel(id string) bool
}

// Downloader runs one job to completion.
type Downloader interface {
	Download(ctx context.Context, job *domain.FetchJob) error
}

// Context holds the core environment and shared resources.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Client *transport.Client

	Store Store
	Queue Queue
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger, client *transport.Client) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
		Client: client,
	}
}
