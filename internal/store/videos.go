package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const videoColumns = "id, original_name, upload_path, processed_file_path, status, size_bytes, issues_json, fixes_json, created_at, updated_at"

// NewVideo inserts a freshly uploaded video and returns the stored row.
func (s *Store) NewVideo(ctx context.Context, originalName, uploadPath string, sizeBytes int64) (*Video, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO videos (
            id, original_name, upload_path, processed_file_path, status,
            size_bytes, issues_json, fixes_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		originalName,
		uploadPath,
		nil,
		VideoUploaded,
		sizeBytes,
		nil,
		nil,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	return s.GetVideo(ctx, id)
}

// GetVideo fetches a video by identifier. A nil video means not found.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos filtered by status set (or all videos when no
// status is provided), ordered by creation time.
func (s *Store) ListVideos(ctx context.Context, statuses ...VideoStatus) ([]*Video, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + videoColumns + ` FROM videos`
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
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// SetVideoStatus transitions a video to the given status.
func (s *Store) SetVideoStatus(ctx context.Context, id string, status VideoStatus) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set video status: %w", err)
	}
	return nil
}

// SetVideoIssues records the analysis verdict for a video.
func (s *Store) SetVideoIssues(ctx context.Context, id string, report DefectReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE videos SET issues_json = ?, updated_at = ? WHERE id = ?`,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set video issues: %w", err)
	}
	return nil
}

// SetVideoCompleted marks a video completed, recording the final artifact
// location and the repair summary.
func (s *Store) SetVideoCompleted(ctx context.Context, id, processedPath string, fixes FixesApplied) error {
	payload, err := json.Marshal(fixes)
	if err != nil {
		return fmt.Errorf("marshal fixes: %w", err)
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE videos SET status = ?, processed_file_path = ?, fixes_json = ?, updated_at = ? WHERE id = ?`,
		VideoCompleted,
		processedPath,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set video completed: %w", err)
	}
	return nil
}

// DeleteVideo removes a video row. The job row cascades; drafts are kept.
func (s *Store) DeleteVideo(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id            string
		originalName  string
		uploadPath    string
		processedPath sql.NullString
		statusStr     string
		sizeBytes     sql.NullInt64
		issuesJSON    sql.NullString
		fixesJSON     sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&originalName,
		&uploadPath,
		&processedPath,
		&statusStr,
		&sizeBytes,
		&issuesJSON,
		&fixesJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:                id,
		OriginalName:      originalName,
		UploadPath:        uploadPath,
		ProcessedFilePath: processedPath.String,
		Status:            VideoStatus(statusStr),
		SizeBytes:         sizeBytes.Int64,
		IssuesJSON:        issuesJSON.String,
		FixesJSON:         fixesJSON.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}
