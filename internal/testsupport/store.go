package testsupport

import (
	"context"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo inserts an uploaded video row for tests.
func NewVideo(t testing.TB, st *store.Store, name, uploadPath string) *store.Video {
	t.Helper()

	video, err := st.NewVideo(context.Background(), name, uploadPath, 1)
	if err != nil {
		t.Fatalf("store.NewVideo: %v", err)
	}
	return video
}
