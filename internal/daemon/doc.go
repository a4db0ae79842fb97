// Package daemon hosts the long-running smoothedit process: the single
// instance lock, the processing supervisor, stream sessions, and the HTTP
// API used by upload and playback clients.
package daemon
