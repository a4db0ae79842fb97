// Package streamsession tracks playback sessions onto processed artifacts
// with idle expiry.
package streamsession
