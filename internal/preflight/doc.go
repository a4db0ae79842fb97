// Package preflight verifies external tools, directories, disk space, and
// the analysis service before the daemon accepts work.
package preflight
