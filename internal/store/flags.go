package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

const flagColumns = `id, entity_type, entity_id, reason, description, status,
	created_by, reviewed_by, created_at, reviewed_at`

func scanFlag(row interface{ Scan(...any) error }) (*model.ModerationFlag, error) {
	f := &model.ModerationFlag{}
	var description sql.NullString
	err := row.Scan(&f.ID, &f.EntityType, &f.EntityID, &f.Reason, &description,
		&f.Status, &f.CreatedBy, &f.ReviewedBy, &f.CreatedAt, &f.ReviewedAt)
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	return f, nil
}

// CreateFlag records a moderation report against a listing or message.
func CreateFlag(ctx context.Context, db *sql.DB, f *model.ModerationFlag) (*model.ModerationFlag, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO moderation_flags (entity_type, entity_id, reason, description, created_by)
		 VALUES (?, ?, ?, NULLIF(?, ''), ?)`,
		f.EntityType, f.EntityID, f.Reason, f.Description, f.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating flag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting flag id: %w", err)
	}

	return GetFlag(ctx, db, id)
}

// GetFlag returns a moderation flag by ID.
func GetFlag(ctx context.Context, db *sql.DB, id int64) (*model.ModerationFlag, error) {
	f, err := scanFlag(db.QueryRowContext(ctx,
		`SELECT `+flagColumns+` FROM moderation_flags WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting flag: %w", err)
	}
	return f, nil
}

// ListFlags returns moderation flags, optionally filtered by status, newest
// first.
func ListFlags(ctx context.Context, db *sql.DB, status string) ([]model.ModerationFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM moderation_flags`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing flags: %w", err)
	}
	defer rows.Close()

	var flags []model.ModerationFlag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning flag: %w", err)
		}
		flags = append(flags, *f)
	}
	return flags, rows.Err()
}

// ReviewFlag records a moderator's decision on a flag.
func ReviewFlag(ctx context.Context, db *sql.DB, id, reviewerID int64, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE moderation_flags SET status = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ?`,
		status, reviewerID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("reviewing flag: %w", err)
	}
	return nil
}
