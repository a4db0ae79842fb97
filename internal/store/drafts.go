package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const draftColumns = "id, video_id, name, file_path, file_size, auto_created, last_modified, created_at"

// CreateDraft saves a named draft pointing at an artifact file. Drafts
// intentionally carry no foreign key so they outlive video deletion, which is
// why the artifact path and size are persisted on the draft itself.
func (s *Store) CreateDraft(ctx context.Context, videoID, name, filePath string, fileSize int64, autoCreated bool) (*Draft, error) {
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO drafts (id, video_id, name, file_path, file_size, auto_created, last_modified, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		videoID,
		name,
		filePath,
		fileSize,
		boolToInt(autoCreated),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return s.GetDraft(ctx, id)
}

// GetDraft fetches a draft by identifier. A nil draft means not found.
func (s *Store) GetDraft(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	draft, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return draft, nil
}

// ListDrafts returns all drafts ordered by creation time, newest first.
func (s *Store) ListDrafts(ctx context.Context) ([]*Draft, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+draftColumns+` FROM drafts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

// TouchDraft updates a draft's artifact reference and last-modified stamp.
func (s *Store) TouchDraft(ctx context.Context, id, filePath string, fileSize int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE drafts SET file_path = ?, file_size = ?, last_modified = ? WHERE id = ?`,
		filePath,
		fileSize,
		timestamp,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("draft %s not found", id)
	}
	return nil
}

// DeleteDraft removes a draft by identifier.
func (s *Store) DeleteDraft(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanDraft(scanner interface{ Scan(dest ...any) error }) (*Draft, error) {
	var (
		id          string
		videoID     string
		name        string
		filePath    sql.NullString
		fileSize    sql.NullInt64
		autoCreated sql.NullInt64
		modifiedRaw sql.NullString
		createdRaw  sql.NullString
	)

	if err := scanner.Scan(&id, &videoID, &name, &filePath, &fileSize, &autoCreated, &modifiedRaw, &createdRaw); err != nil {
		return nil, err
	}

	draft := &Draft{
		ID:          id,
		VideoID:     videoID,
		Name:        name,
		FilePath:    filePath.String,
		FileSize:    fileSize.Int64,
		AutoCreated: autoCreated.Int64 != 0,
	}
	if modified, err := parseTimeString(modifiedRaw.String); err == nil {
		draft.LastModified = modified
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		draft.CreatedAt = created
	}
	return draft, nil
}
