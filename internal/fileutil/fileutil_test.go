package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestUniqueNameKeepsExtension(t *testing.T) {
	name := UniqueName("My Clip.MOV")
	if !strings.HasSuffix(name, ".mov") {
		t.Fatalf("expected lowercase extension, got %q", name)
	}
	if name == UniqueName("My Clip.MOV") {
		t.Fatal("expected unique names per call")
	}
}

func TestStageArtifactName(t *testing.T) {
	got := StageArtifactName("vid-1", "fixing_cuts", "mp4")
	if got != "vid-1-fixing_cuts.mp4" {
		t.Fatalf("unexpected name %q", got)
	}
	got = StageArtifactName("vid-1", "exporting", ".mp4")
	if got != "vid-1-exporting.mp4" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestIsNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if IsNonEmptyFile(empty) {
		t.Fatal("empty file must not count")
	}
	if !IsNonEmptyFile(full) {
		t.Fatal("expected non-empty file to count")
	}
	if IsNonEmptyFile(filepath.Join(dir, "missing")) {
		t.Fatal("missing file must not count")
	}
}
