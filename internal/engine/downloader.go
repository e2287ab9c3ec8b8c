package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/tarwick/vget/internal/app"
	"github.com/tarwick/vget/internal/domain"
	"github.com/tarwick/vget/internal/transport"
)

// chunkCursor is satisfied by both transport.Stream and transport.SeqStream.
type chunkCursor interface {
	Next() ([]byte, error)
	Close() error
}

// Downloader pulls a transport stream and lands it on disk as a file.
type Downloader struct {
	ctx    *app.Context
	writer *FileWriter
}

func NewDownloader(ctx *app.Context) *Downloader {
	return &Downloader{
		ctx:    ctx,
		writer: NewFileWriter(),
	}
}

// Download runs a FetchJob from start to finish: probe the size for
// progress reporting, stream the content into a .part file, rename when
// the stream ends cleanly.
func (d *Downloader) Download(ctx context.Context, job *domain.FetchJob) error {
	defer d.writer.CloseAll()

	outDir := d.ctx.Config.Download.OutDir
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create out_dir: %w", err)
	}

	finalPath := filepath.Join(outDir, job.Name)
	partPath := finalPath + ".part"

	// Size probe is best effort: without it the progress numbers are
	// blank, the download itself doesn't care.
	if size, err := d.probeSize(ctx, job); err != nil {
		d.ctx.Logger.Warn("size probe for %s failed: %v", job.URL, err)
	} else {
		job.TotalBytes = uint64(size)
	}

	job.BytesWritten.Store(0)
	job.StartedAt = time.Now()

	d.ctx.Logger.Info("Starting download for: %s (%d MB)", job.Name, job.TotalBytes/1024/1024)

	var cur chunkCursor
	if job.Sequential {
		cur = d.ctx.Client.SeqStream(ctx, job.URL, nil)
	} else {
		cur = d.ctx.Client.Stream(ctx, job.URL, nil)
	}
	defer cur.Close()

	for {
		chunk, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return d.wrapUnavailable(job, err)
		}

		if err := d.writer.Append(partPath, chunk); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
		job.BytesWritten.Add(uint64(len(chunk)))
	}

	// Close the handle so the OS releases it for renaming.
	if err := d.writer.CloseFile(partPath); err != nil {
		return fmt.Errorf("failed to close %s: %w", partPath, err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", job.Name, err)
	}

	d.ctx.Logger.Info("Finished: %s", job.Name)
	return nil
}

func (d *Downloader) probeSize(ctx context.Context, job *domain.FetchJob) (int64, error) {
	if job.Sequential {
		return d.ctx.Client.SeqFilesize(ctx, job.URL)
	}
	return d.ctx.Client.Filesize(ctx, job.URL)
}

// wrapUnavailable translates upstream refusals into the unavailability
// taxonomy so callers can tell a blocked video from a broken network.
// Anything that isn't an HTTP status refusal passes through untouched.
func (d *Downloader) wrapUnavailable(job *domain.FetchJob, err error) error {
	var se *transport.StatusError
	if !errors.As(err, &se) {
		return err
	}

	id := videoID(job.URL)
	switch se.Code {
	case 401:
		return domain.NewUnavailable(id, domain.KindLoginRequired, se.Error())
	case 403:
		return domain.NewUnavailable(id, domain.KindBotDetection, se.Error())
	case 451:
		return domain.NewUnavailable(id, domain.KindRegionBlocked, se.Error())
	}

	if se.Code >= 400 && se.Code < 500 {
		d.ctx.Logger.Error("Unknown video error for %s (status %d)", id, se.Code)
		d.ctx.Logger.Error("Please open an issue and include the log output above.")
		return domain.NewUnavailable(id, domain.KindUnknown, se.Error())
	}
	return err
}

// videoID extracts the video identifier from the URL's query when present,
// falling back to the URL itself for log readability.
func videoID(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	for _, key := range []string{"id", "v"} {
		if v := u.Query().Get(key); v != "" {
			return v
		}
	}
	return rawurl
}
