// Package store persists videos, processing jobs, and drafts in SQLite.
package store
