package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy-and-remove when the
// rename crosses filesystems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return fmt.Errorf("move via copy: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// UniqueName returns a collision-free file name combining a random token with
// the extension of the original name. Used for staged uploads and stage
// artifacts so concurrent jobs never clash.
func UniqueName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.NewString() + ext
}

// StageArtifactName builds the working file name for a pipeline stage output.
func StageArtifactName(videoID, stage, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return videoID + "-" + stage + ext
}

// FileSize returns the size of a regular file, or an error when the path is
// missing or a directory.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// IsNonEmptyFile reports whether path names a regular file with at least one byte.
func IsNonEmptyFile(path string) bool {
	size, err := FileSize(path)
	return err == nil && size > 0
}
