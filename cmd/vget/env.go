package main

import (
	"fmt"

	"github.com/tarwick/vget/internal/app"
	"github.com/tarwick/vget/internal/config"
	"github.com/tarwick/vget/internal/fronting"
	"github.com/tarwick/vget/internal/logger"
	"github.com/tarwick/vget/internal/transport"
)

// buildContext assembles the shared environment: config, logger and the
// fronted transport client. The store and queue are attached by the
// commands that need them.
func buildContext(logToFile bool) (*app.Context, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logPath := ""
	if logToFile {
		logPath = cfg.Log.Path
	}
	log, err := logger.New(logPath, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Fronting is optional: without it the client dials everything the
	// normal way and only the retry/chunking behavior remains.
	var classifier *fronting.Classifier
	if cfg.Fronting.Enabled {
		resolver := fronting.NewResolver(fronting.ResolverConfig{
			FrontHost:    cfg.Fronting.FrontHost,
			FrontAddr:    cfg.Fronting.FrontAddr,
			ResolverHost: cfg.Fronting.ResolverHost,
			ResolverPath: cfg.Fronting.ResolverPath,
			Timeout:      cfg.Transport.Timeout,
		}, log)
		classifier = fronting.NewClassifier(cfg.Fronting.FrontHost, cfg.Fronting.FrontAddr,
			cfg.Fronting.MediaDomains, resolver)
	}

	client := transport.NewClient(transport.Config{
		Timeout:    cfg.Transport.Timeout,
		MaxRetries: cfg.Transport.MaxRetries,
	}, classifier, log)

	return app.NewContext(cfg, log, client), nil
}
