package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"github.com/tarwick/vget/internal/domain"
	"github.com/tarwick/vget/internal/engine"
)

func newFetchCmd() *cobra.Command {
	var (
		outName    string
		sequential bool
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download a media URL to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(args[0], outName, sequential)
		},
	}
	cmd.Flags().StringVarP(&outName, "output", "o", "", "output file name (default: derived from URL)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "use segmented (sq=0..N) retrieval")
	return cmd
}

func runFetch(rawurl, outName string, sequential bool) error {
	appCtx, err := buildContext(false)
	if err != nil {
		return err
	}

	if outName == "" {
		outName = nameFromURL(rawurl)
	}

	job := &domain.FetchJob{
		ID:         ksuid.New().String(),
		Name:       outName,
		URL:        rawurl,
		Sequential: sequential,
		Status:     domain.StatusDownloading,
	}

	// Cancel the download cleanly on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dl := engine.NewDownloader(appCtx)

	done := make(chan error, 1)
	go func() {
		done <- dl.Download(ctx, job)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				fmt.Println()
				return err
			}
			renderProgress(job, true)
			fmt.Println()
			return nil
		case <-ticker.C:
			renderProgress(job, false)
		}
	}
}

func renderProgress(job *domain.FetchJob, final bool) {
	current := job.BytesWritten.Load()
	total := job.TotalBytes
	if total == 0 {
		return
	}

	elapsed := time.Since(job.StartedAt)
	percent := float64(current) / float64(total) * 100
	etaStr := "calc..."

	if final {
		percent = 100.0
		etaStr = elapsed.Truncate(time.Second).String()
	} else if elapsed > 0 {
		avgBytesPerSec := float64(current) / elapsed.Seconds()
		if avgBytesPerSec > 0 {
			remaining := float64(total-current) / avgBytesPerSec
			etaStr = (time.Duration(remaining) * time.Second).String()
		}
	}

	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	timeLabel := "ETA"
	if final {
		timeLabel = "Time"
	}

	fmt.Printf("\r[%s] %5.1f%% | %s: %-7s | %d/%d MB      ",
		bar, percent, timeLabel, etaStr, current/1024/1024, total/1024/1024)
}

func nameFromURL(rawurl string) string {
	base := path.Base(strings.SplitN(rawurl, "?", 2)[0])
	if base == "" || base == "/" || base == "." {
		return "download"
	}
	return base
}
