package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newSizeCmd() *cobra.Command {
	var sequential bool

	cmd := &cobra.Command{
		Use:   "size URL",
		Short: "Probe the content size of a media URL without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSize(args[0], sequential)
		},
	}
	cmd.Flags().BoolVar(&sequential, "sequential", false, "sum segment sizes (sq=0..N) instead of one ranged probe")
	return cmd
}

func runSize(rawurl string, sequential bool) error {
	appCtx, err := buildContext(false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var size int64
	if sequential {
		size, err = appCtx.Client.SeqFilesize(ctx, rawurl)
	} else {
		size, err = appCtx.Client.Filesize(ctx, rawurl)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d bytes (%.2f MB)\n", size, float64(size)/1024/1024)
	return nil
}
