package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/retrouvtout/backend/internal/model"
)

const threadColumns = `t.id, t.listing_id, t.owner_id, t.finder_id, t.status,
	t.approved_by_owner, t.approved_by_finder, t.last_message_at, t.created_at, t.updated_at,
	l.title AS listing_title, ou.name AS owner_name, fu.name AS finder_name`

const threadJoins = ` FROM threads t
	JOIN listings l ON l.id = t.listing_id
	JOIN users ou ON ou.id = t.owner_id
	JOIN users fu ON fu.id = t.finder_id`

func scanThread(row interface{ Scan(...any) error }) (*model.Thread, error) {
	t := &model.Thread{}
	err := row.Scan(&t.ID, &t.ListingID, &t.OwnerID, &t.FinderID, &t.Status,
		&t.ApprovedByOwner, &t.ApprovedByFinder, &t.LastMessageAt, &t.CreatedAt, &t.UpdatedAt,
		&t.ListingTitle, &t.OwnerName, &t.FinderName)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateThread starts a conversation about a listing. The caller must ensure
// the owner is not the listing's finder; the unique (listing, owner) constraint
// rejects duplicates.
func CreateThread(ctx context.Context, db *sql.DB, listingID, ownerID, finderID int64) (*model.Thread, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO threads (listing_id, owner_id, finder_id) VALUES (?, ?, ?)`,
		listingID, ownerID, finderID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting thread id: %w", err)
	}

	return GetThread(ctx, db, id)
}

// GetThread returns a thread by ID.
func GetThread(ctx context.Context, db *sql.DB, id int64) (*model.Thread, error) {
	t, err := scanThread(db.QueryRowContext(ctx,
		`SELECT `+threadColumns+threadJoins+` WHERE t.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	return t, nil
}

// GetThreadByListingAndOwner returns the thread for a (listing, owner) pair.
func GetThreadByListingAndOwner(ctx context.Context, db *sql.DB, listingID, ownerID int64) (*model.Thread, error) {
	t, err := scanThread(db.QueryRowContext(ctx,
		`SELECT `+threadColumns+threadJoins+` WHERE t.listing_id = ? AND t.owner_id = ?`,
		listingID, ownerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread by listing and owner: %w", err)
	}
	return t, nil
}

// ListUserThreads returns all threads a user participates in, most recently
// active first, optionally filtered by status.
func ListUserThreads(ctx context.Context, db *sql.DB, userID int64, status string) ([]model.Thread, error) {
	query := `SELECT ` + threadColumns + threadJoins +
		` WHERE (t.owner_id = ? OR t.finder_id = ?)`
	args := []any{userID, userID}

	if status != "" {
		query += ` AND t.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY COALESCE(t.last_message_at, t.created_at) DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing user threads: %w", err)
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

// ApproveThread records a party's approval. When both parties have approved,
// the thread transitions from pending to approved.
func ApproveThread(ctx context.Context, db *sql.DB, threadID, userID int64) (*model.Thread, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID, finderID int64
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, finder_id, status FROM threads WHERE id = ?`, threadID,
	).Scan(&ownerID, &finderID, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading thread for approval: %w", err)
	}
	if status != model.ThreadStatusPending {
		return nil, fmt.Errorf("thread is %s, not pending", status)
	}

	column := "approved_by_owner"
	if userID == finderID {
		column = "approved_by_finder"
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET `+column+` = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		threadID,
	); err != nil {
		return nil, fmt.Errorf("recording approval: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET status = 'approved', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND approved_by_owner = 1 AND approved_by_finder = 1`,
		threadID,
	); err != nil {
		return nil, fmt.Errorf("promoting thread to approved: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing approval: %w", err)
	}

	return GetThread(ctx, db, threadID)
}

// CloseThread marks a thread as closed.
func CloseThread(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE threads SET status = 'closed', updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("closing thread: %w", err)
	}
	return nil
}
