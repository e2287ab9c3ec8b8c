package engine

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarwick/vget/internal/app"
	"github.com/tarwick/vget/internal/config"
	"github.com/tarwick/vget/internal/domain"
	"github.com/tarwick/vget/internal/logger"
	"github.com/tarwick/vget/internal/transport"
)

func testAppContext(t *testing.T, outDir string) *app.Context {
	t.Helper()

	log, err := logger.New("", logger.LevelError, false)
	require.NoError(t, err)

	client := transport.NewClient(transport.Config{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}, nil, log)

	cfg := &config.Config{
		Download:  config.DownloadConfig{OutDir: outDir},
		Transport: config.TransportConfig{Timeout: 5 * time.Second, MaxRetries: 1},
	}
	return app.NewContext(cfg, log, client)
}

func Test_Downloader_Download(t *testing.T) {
	content := make([]byte, 100_000)
	rand.New(rand.NewSource(7)).Read(content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write(content)
	}))
	defer srv.Close()

	outDir := t.TempDir()
	dl := NewDownloader(testAppContext(t, outDir))

	job := &domain.FetchJob{ID: "j1", Name: "video.mp4", URL: srv.URL + "/video"}
	require.NoError(t, dl.Download(context.Background(), job))

	got, err := os.ReadFile(filepath.Join(outDir, "video.mp4"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))

	// The .part staging file must be gone after the rename
	_, err = os.Stat(filepath.Join(outDir, "video.mp4.part"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, uint64(len(content)), job.BytesWritten.Load())
	assert.Equal(t, uint64(len(content)), job.TotalBytes)
}

func Test_Downloader_Sequential(t *testing.T) {
	header := []byte("Segment-Count: 2\r\n\r\n")
	segments := [][]byte{[]byte("first segment"), []byte("second segment")}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seq, _ := strconv.Atoi(r.URL.Query().Get("sq"))
		body := header
		if seq > 0 {
			body = segments[seq-1]
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	defer srv.Close()

	outDir := t.TempDir()
	dl := NewDownloader(testAppContext(t, outDir))

	job := &domain.FetchJob{ID: "j2", Name: "stream.ts", URL: srv.URL + "/video", Sequential: true}
	require.NoError(t, dl.Download(context.Background(), job))

	want := append(append(append([]byte{}, header...), segments[0]...), segments[1]...)
	got, err := os.ReadFile(filepath.Join(outDir, "stream.ts"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))
}

func Test_Downloader_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dl := NewDownloader(testAppContext(t, t.TempDir()))

	job := &domain.FetchJob{ID: "j3", Name: "x", URL: srv.URL + "/watch?v=abc123"}
	err := dl.Download(context.Background(), job)

	var ue *domain.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindBotDetection, ue.Kind)
	assert.Equal(t, "abc123", ue.VideoID)
}

func Test_Downloader_RegionBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}))
	defer srv.Close()

	dl := NewDownloader(testAppContext(t, t.TempDir()))

	job := &domain.FetchJob{ID: "j4", Name: "x", URL: srv.URL + "/watch?id=vid9"}
	err := dl.Download(context.Background(), job)

	var ue *domain.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.KindRegionBlocked, ue.Kind)
	assert.Equal(t, "vid9", ue.VideoID)
}

func Test_Downloader_ServerErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dl := NewDownloader(testAppContext(t, t.TempDir()))

	job := &domain.FetchJob{ID: "j5", Name: "x", URL: srv.URL + "/video"}
	err := dl.Download(context.Background(), job)

	var se *transport.StatusError
	require.ErrorAs(t, err, &se)
	var ue *domain.UnavailableError
	assert.False(t, errors.As(err, &ue), "5xx is a transport problem, not unavailability")
}
