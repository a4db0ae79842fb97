// Package ffmpeg runs the repair and export transforms through the ffmpeg
// binary with per-stage argument profiles.
package ffmpeg
