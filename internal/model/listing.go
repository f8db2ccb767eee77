package model

import "time"

// Listing represents a found-item posting.
type Listing struct {
	ID           int64     `json:"id"`
	FinderID     int64     `json:"finder_id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	LocationText string    `json:"location_text"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	FoundAt      time.Time `json:"found_at"`
	Description  string    `json:"description,omitempty"`
	ImageMime    string    `json:"image_mime,omitempty"`
	Status       string    `json:"status"`
	ViewsCount   int64     `json:"views_count"`
	Moderated    bool      `json:"moderated"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	FinderName string `json:"finder_name,omitempty"`
}

// Listing statuses. A deleted listing is immutable.
const (
	ListingStatusActive    = "active"
	ListingStatusResolved  = "resolved"
	ListingStatusSuspended = "suspended"
	ListingStatusDeleted   = "deleted"
)

// Listing categories.
const (
	CategoryElectronics = "electronics"
	CategoryKeys        = "keys"
	CategoryClothing    = "clothing"
	CategoryDocuments   = "documents"
	CategoryBags        = "bags"
	CategoryOther       = "other"
)

// Categories lists all valid listing categories.
var Categories = []string{
	CategoryElectronics,
	CategoryKeys,
	CategoryClothing,
	CategoryDocuments,
	CategoryBags,
	CategoryOther,
}

// ValidCategory reports whether c is a known listing category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
