package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken records a token's JTI so logout invalidates it before its
// natural expiry. Re-revoking the same JTI is a no-op.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Revocations past the token lifetime are dead weight; prune them while
	// we are here.
	_, _ = db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)

	return nil
}

// IsTokenRevoked reports whether a JTI is on the revocation list.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return exists, nil
}
