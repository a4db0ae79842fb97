package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrJobActive is returned when a job is requested for a video whose existing
// job is still pending or processing.
var ErrJobActive = errors.New("job already active for video")

const jobColumns = "id, video_id, status, progress, current_step, error_message, created_at, updated_at"

// CreateJob inserts a pending job for a video, or resets an existing terminal
// job row so the video can be reprocessed. At most one job row exists per
// video; an active row yields ErrJobActive.
func (s *Store) CreateJob(ctx context.Context, videoID string) (*Job, error) {
	existing, err := s.GetJobByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if existing != nil {
		if !existing.Status.IsTerminal() {
			return nil, ErrJobActive
		}
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, progress = 0, current_step = NULL, error_message = NULL, updated_at = ?
             WHERE id = ? AND status IN (?, ?)`,
			JobPending,
			timestamp,
			existing.ID,
			JobCompleted,
			JobFailed,
		)
		if err != nil {
			return nil, fmt.Errorf("reset job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrJobActive
		}
		return s.GetJob(ctx, existing.ID)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (video_id, status, progress, current_step, error_message, created_at, updated_at)
         VALUES (?, ?, 0, NULL, NULL, ?, ?)`,
		videoID,
		JobPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetJobByVideo fetches the job belonging to a video.
func (s *Store) GetJobByVideo(ctx context.Context, videoID string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE video_id = ?`, videoID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by video: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by creation time.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ensureContext(ctx), baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ensureContext(ctx), query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StartJob transitions a pending job to processing.
func (s *Store) StartJob(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobProcessing,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobPending,
	)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobActive
	}
	return nil
}

// UpdateJobCheckpoint records a stage transition in a single statement. The
// guard keeps terminal rows immutable and progress monotonically
// non-decreasing; a stale or late write reports applied=false rather than an
// error.
func (s *Store) UpdateJobCheckpoint(ctx context.Context, id int64, progress int, step Step) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET progress = ?, current_step = ?, updated_at = ?
         WHERE id = ? AND status = ? AND progress <= ?`,
		progress,
		nullableString(string(step)),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobProcessing,
		progress,
	)
	if err != nil {
		return false, fmt.Errorf("update job checkpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteJob marks a processing job completed at full progress.
func (s *Store) CompleteJob(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = 100, current_step = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobCompleted,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job failed with an operator-facing message.
func (s *Store) FailJob(ctx context.Context, id int64, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		JobFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobPending,
		JobProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ReclaimOrphanedJobs fails jobs left pending or processing by a previous
// daemon run, along with their videos. Called once at startup before the
// supervisor begins polling.
func (s *Store) ReclaimOrphanedJobs(ctx context.Context, message string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`UPDATE videos SET status = ?, updated_at = ?
         WHERE id IN (SELECT video_id FROM jobs WHERE status IN (?, ?))`,
		VideoFailed,
		timestamp,
		JobPending,
		JobProcessing,
	); err != nil {
		return 0, fmt.Errorf("reclaim orphaned videos: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		JobFailed,
		message,
		timestamp,
		JobPending,
		JobProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim orphaned jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		videoID      string
		statusStr    string
		progress     int
		currentStep  sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&statusStr,
		&progress,
		&currentStep,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		VideoID:      videoID,
		Status:       JobStatus(statusStr),
		Progress:     progress,
		CurrentStep:  Step(currentStep.String),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
