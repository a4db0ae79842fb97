package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/preflight"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	d, err := buildDaemon(cfg, st, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		st.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("smootheditd shutting down")
}
