package main

import (
	"log/slog"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/daemon"
	"github.com/jguynes74-create/Smooth-Edit/internal/media/ffmpeg"
	"github.com/jguynes74-create/Smooth-Edit/internal/oracle"
	"github.com/jguynes74-create/Smooth-Edit/internal/pipeline"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
	"github.com/jguynes74-create/Smooth-Edit/internal/streamsession"
)

// buildDaemon wires the processing services around an open store.
func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	engine := ffmpeg.NewRunner(cfg, logger)
	client := oracle.NewClient(cfg, logger)
	processor := pipeline.NewProcessor(cfg, st, engine, client, nil, logger)
	supervisor := pipeline.NewSupervisor(cfg, st, processor, nil, logger)
	sessions := streamsession.NewManager(cfg, logger)

	return daemon.New(cfg, st, supervisor, sessions, logger)
}
