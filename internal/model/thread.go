package model

import "time"

// Thread represents a conversation between a listing's finder and the person
// claiming the item. Exactly one thread exists per (listing, owner) pair.
type Thread struct {
	ID               int64      `json:"id"`
	ListingID        int64      `json:"listing_id"`
	OwnerID          int64      `json:"owner_id"`
	FinderID         int64      `json:"finder_id"`
	Status           string     `json:"status"`
	ApprovedByOwner  bool       `json:"approved_by_owner"`
	ApprovedByFinder bool       `json:"approved_by_finder"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	ListingTitle string `json:"listing_title,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	FinderName   string `json:"finder_name,omitempty"`
}

// Thread statuses.
const (
	ThreadStatusPending  = "pending"
	ThreadStatusApproved = "approved"
	ThreadStatusClosed   = "closed"
)

// IsParty reports whether the user participates in the thread.
func (t *Thread) IsParty(userID int64) bool {
	return t.OwnerID == userID || t.FinderID == userID
}

// Message represents a single message inside a thread.
type Message struct {
	ID        int64      `json:"id"`
	ThreadID  int64      `json:"thread_id"`
	SenderID  int64      `json:"sender_id"`
	Body      string     `json:"body"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Joined fields (not always populated).
	SenderName string `json:"sender_name,omitempty"`
}
