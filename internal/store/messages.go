package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

const messageColumns = `m.id, m.thread_id, m.sender_id, m.body, m.is_read, m.read_at,
	m.created_at, u.name AS sender_name`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	m := &model.Message{}
	err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.IsRead, &m.ReadAt,
		&m.CreatedAt, &m.SenderName)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMessage appends a message to a thread and bumps the thread's
// last-message timestamp in the same transaction.
func CreateMessage(ctx context.Context, db *sql.DB, threadID, senderID int64, body string) (*model.Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, sender_id, body) VALUES (?, ?, ?)`,
		threadID, senderID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET last_message_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		time.Now().UTC(), threadID,
	); err != nil {
		return nil, fmt.Errorf("updating thread last message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetMessage(ctx, db, id)
}

// GetMessage returns a message by ID.
func GetMessage(ctx context.Context, db *sql.DB, id int64) (*model.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// ListThreadMessages returns a thread's messages, oldest first.
func ListThreadMessages(ctx context.Context, db *sql.DB, threadID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.thread_id = ? ORDER BY m.created_at, m.id`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing thread messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// MarkThreadRead marks every message in the thread that was sent by the other
// party as read.
func MarkThreadRead(ctx context.Context, db *sql.DB, threadID, readerID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, read_at = ?
		 WHERE thread_id = ? AND sender_id != ? AND is_read = 0`,
		time.Now().UTC(), threadID, readerID,
	)
	if err != nil {
		return fmt.Errorf("marking thread read: %w", err)
	}
	return nil
}

// CountUnreadMessages returns how many unread messages are addressed to the
// user across all their threads.
func CountUnreadMessages(ctx context.Context, db *sql.DB, userID int64) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN threads t ON t.id = m.thread_id
		 WHERE (t.owner_id = ? OR t.finder_id = ?)
		   AND m.sender_id != ? AND m.is_read = 0`,
		userID, userID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}
