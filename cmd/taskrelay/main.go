package main

import (
	"log"
	"os"

	"github.com/nkurosawa/taskrelay/internal/api"
	"github.com/nkurosawa/taskrelay/internal/config"
	"github.com/nkurosawa/taskrelay/internal/remote"
	"github.com/nkurosawa/taskrelay/internal/task"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	if cfg.APIKey == "" {
		log.Fatal("TASKRELAY_API_KEY is required")
	}

	logger.Info("taskrelay: starting",
		"listen_addr", cfg.ListenAddr,
		"dominant_backend", cfg.Dominant,
	)

	client := remote.NewClient(remote.Config{
		APIKey:         cfg.APIKey,
		Regions:        cfg.Regions,
		AcceptCodes:    cfg.AcceptCodes,
		Timeout:        cfg.HTTPTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	workflow := remote.NewWorkflowBackend(client)
	app := remote.NewAppBackend(client)

	submitter := task.NewSubmitter(workflow, app, logger)
	resolver := task.NewResolver(workflow, app, cfg.Dominant, logger)
	poller := task.NewPoller(resolver, logger)

	srv := api.NewServer(cfg.ListenAddr, client, submitter, resolver, poller,
		api.PollDefaults{Interval: cfg.PollInterval, MaxAttempts: cfg.MaxAttempts},
		logger,
	)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
