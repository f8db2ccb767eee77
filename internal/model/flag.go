package model

import "time"

// ModerationFlag represents a user report against a listing or message.
type ModerationFlag struct {
	ID          int64      `json:"id"`
	EntityType  string     `json:"entity_type"`
	EntityID    int64      `json:"entity_id"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedBy   int64      `json:"created_by"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

// Flaggable entity types.
const (
	FlagEntityListing = "listing"
	FlagEntityMessage = "message"
)

// Flag statuses.
const (
	FlagStatusPending   = "pending"
	FlagStatusReviewed  = "reviewed"
	FlagStatusDismissed = "dismissed"
)
