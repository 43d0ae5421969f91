package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"framelift/internal/config"
	"framelift/internal/daemon"
	"framelift/internal/jobs"
	"framelift/internal/logging"
	"framelift/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	registry, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job registry", logging.Error(err))
		os.Exit(1)
	}

	manager, err := workflow.NewManager(cfg, registry, logger)
	if err != nil {
		logger.Error("create workflow manager", logging.Error(err))
		os.Exit(1)
	}

	d, err := daemon.New(cfg, registry, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		d.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("frameliftd shutting down")
}
