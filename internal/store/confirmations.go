package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

// ErrCodeUsed is returned by RedeemConfirmation when the code was already
// redeemed, possibly by a concurrent caller.
var ErrCodeUsed = errors.New("confirmation code already used")

// ErrCodeCollision is returned by ReplaceConfirmation when the generated code
// collides with another live code.
var ErrCodeCollision = errors.New("confirmation code collision")

const confirmationColumns = `id, thread_id, code, expires_at, used_at, used_by, created_at`

func scanConfirmation(row interface{ Scan(...any) error }) (*model.Confirmation, error) {
	c := &model.Confirmation{}
	err := row.Scan(&c.ID, &c.ThreadID, &c.Code, &c.ExpiresAt, &c.UsedAt, &c.UsedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReplaceConfirmation deletes any existing confirmation for the thread and
// inserts a fresh one. The partial unique index on live codes rejects a code
// that collides with another thread's unredeemed code; that surfaces as
// ErrCodeCollision so the caller can retry with a new code.
func ReplaceConfirmation(ctx context.Context, db *sql.DB, threadID int64, code string, expiresAt time.Time) (*model.Confirmation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM confirmations WHERE thread_id = ?`, threadID,
	); err != nil {
		return nil, fmt.Errorf("deleting prior confirmation: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO confirmations (thread_id, code, expires_at) VALUES (?, ?, ?)`,
		threadID, code, expiresAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_confirmations_code_live") {
			return nil, ErrCodeCollision
		}
		return nil, fmt.Errorf("creating confirmation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing confirmation: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetConfirmation(ctx, db, id)
}

// GetConfirmation returns a confirmation by ID.
func GetConfirmation(ctx context.Context, db *sql.DB, id int64) (*model.Confirmation, error) {
	c, err := scanConfirmation(db.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM confirmations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting confirmation: %w", err)
	}
	return c, nil
}

// GetConfirmationByCode returns the confirmation for a code, preferring an
// unredeemed row when a historical redeemed one shares the code.
func GetConfirmationByCode(ctx context.Context, db *sql.DB, code string) (*model.Confirmation, error) {
	c, err := scanConfirmation(db.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM confirmations WHERE code = ?
		 ORDER BY (used_at IS NULL) DESC, created_at DESC LIMIT 1`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting confirmation by code: %w", err)
	}
	return c, nil
}

// GetConfirmationByThread returns the confirmation bound to a thread.
func GetConfirmationByThread(ctx context.Context, db *sql.DB, threadID int64) (*model.Confirmation, error) {
	c, err := scanConfirmation(db.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM confirmations WHERE thread_id = ?`, threadID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread confirmation: %w", err)
	}
	return c, nil
}

// RedeemConfirmation atomically marks the confirmation used, closes its thread
// and resolves the thread's listing. The compare-and-set on used_at guarantees
// a code redeems exactly once: a concurrent second caller gets ErrCodeUsed and
// the first caller's state is untouched.
func RedeemConfirmation(ctx context.Context, db *sql.DB, confirmationID, userID int64) (*model.Confirmation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE confirmations SET used_at = ?, used_by = ?
		 WHERE id = ? AND used_at IS NULL`,
		time.Now().UTC(), userID, confirmationID,
	)
	if err != nil {
		return nil, fmt.Errorf("redeeming confirmation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking redemption: %w", err)
	}
	if affected == 0 {
		return nil, ErrCodeUsed
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET status = 'closed', updated_at = CURRENT_TIMESTAMP
		 WHERE id = (SELECT thread_id FROM confirmations WHERE id = ?)`,
		confirmationID,
	); err != nil {
		return nil, fmt.Errorf("closing thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = 'resolved', updated_at = CURRENT_TIMESTAMP
		 WHERE id = (SELECT t.listing_id FROM threads t
		             JOIN confirmations c ON c.thread_id = t.id
		             WHERE c.id = ?)
		   AND status != 'deleted'`,
		confirmationID,
	); err != nil {
		return nil, fmt.Errorf("resolving listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing redemption: %w", err)
	}

	return GetConfirmation(ctx, db, confirmationID)
}

// DeleteExpiredConfirmations removes confirmations that expired without being
// redeemed, returning how many rows were deleted.
func DeleteExpiredConfirmations(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM confirmations WHERE expires_at < ? AND used_at IS NULL`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired confirmations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted confirmations: %w", err)
	}
	return n, nil
}
