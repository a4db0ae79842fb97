package main

import (
	"context"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/testsupport"
)

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	d, err := buildDaemon(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if d.APIAddr() == "" {
		t.Fatal("expected api listener")
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running daemon")
	}
}
