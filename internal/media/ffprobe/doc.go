// Package ffprobe wraps ffprobe invocations for container inspection.
package ffprobe
