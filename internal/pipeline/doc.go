// Package pipeline orchestrates video repair jobs: staged transforms with
// checkpointed progress, fallback on stage failure, and a supervisor that
// bounds concurrency.
package pipeline
