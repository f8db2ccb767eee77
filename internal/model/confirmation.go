package model

import "time"

// Confirmation is a one-time handover code bound to a thread. At most one
// unused, unexpired confirmation exists per thread; regenerating replaces the
// prior one.
type Confirmation struct {
	ID        int64      `json:"id"`
	ThreadID  int64      `json:"thread_id"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *int64     `json:"used_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CodeLength is the number of characters in a confirmation code.
const CodeLength = 6

// CodeAlphabet is the character set confirmation codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ConfirmationTTL is how long a confirmation stays redeemable.
const ConfirmationTTL = 24 * time.Hour

// Expired reports whether the confirmation is past its expiry.
func (c *Confirmation) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Used reports whether the confirmation has been redeemed.
func (c *Confirmation) Used() bool {
	return c.UsedAt != nil
}
