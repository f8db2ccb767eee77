package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

const userColumns = `id, name, email, password_hash, phone, role, email_verified, active,
	last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &phone, &u.Role,
		&u.EmailVerified, &u.Active, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	return u, nil
}

// CreateUser creates a new user account with the default role.
func CreateUser(ctx context.Context, db *sql.DB, name, email, passwordHash, phone string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, phone) VALUES (?, ?, ?, NULLIF(?, ''))`,
		name, email, passwordHash, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email (including deactivated accounts, for
// auth checks).
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY active DESC LIMIT 1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// UpdateUserProfile updates a user's name and phone.
func UpdateUserProfile(ctx context.Context, db *sql.DB, id int64, name, phone string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET name = ?, phone = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND active = 1`,
		name, phone, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserPassword replaces a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// SetEmailVerified marks a user's email address as verified.
func SetEmailVerified(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("verifying user email: %w", err)
	}
	return nil
}

// SetUserRole changes a user's role.
func SetUserRole(ctx context.Context, db *sql.DB, id int64, role string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id,
	)
	if err != nil {
		return fmt.Errorf("setting user role: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login.
func TouchLastLogin(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return nil
}
