package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"gantry/internal/config"
	"gantry/internal/daemon"
	"gantry/internal/hoststore"
	"gantry/internal/logging"
	"gantry/internal/orchestrator"
	"gantry/internal/registry"
	"gantry/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open run registry", slog.String("error", err.Error()))
		return
	}

	orch, err := orchestrator.New(cfg.Orchestrator)
	if err != nil {
		logger.Error("init orchestrator client", slog.String("error", err.Error()))
		return
	}
	host, err := hoststore.New(cfg.HostStore)
	if err != nil {
		logger.Error("init host store client", slog.String("error", err.Error()))
		return
	}

	manager, err := workflow.NewManager(cfg, store, orch, host, logger)
	if err != nil {
		logger.Error("init workflow manager", slog.String("error", err.Error()))
		return
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", slog.String("error", err.Error()))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", slog.String("error", err.Error()))
		return
	}

	<-ctx.Done()
	logger.Info("gantryd shutting down")
}
