package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

const listingColumns = `l.id, l.finder_id, l.title, l.category, l.location_text,
	l.latitude, l.longitude, l.found_at, l.description, l.image_mime, l.status,
	l.views_count, l.moderated, l.created_at, l.updated_at, u.name AS finder_name`

func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	l := &model.Listing{}
	var description, imageMime sql.NullString
	err := row.Scan(&l.ID, &l.FinderID, &l.Title, &l.Category, &l.LocationText,
		&l.Latitude, &l.Longitude, &l.FoundAt, &description, &imageMime, &l.Status,
		&l.ViewsCount, &l.Moderated, &l.CreatedAt, &l.UpdatedAt, &l.FinderName)
	if err != nil {
		return nil, err
	}
	l.Description = description.String
	l.ImageMime = imageMime.String
	return l, nil
}

// CreateListing creates a new found-item listing.
func CreateListing(ctx context.Context, db *sql.DB, l *model.Listing) (*model.Listing, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO listings (finder_id, title, category, location_text, latitude, longitude, found_at, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.FinderID, l.Title, l.Category, l.LocationText, l.Latitude, l.Longitude, l.FoundAt, l.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting listing id: %w", err)
	}

	return GetListing(ctx, db, id)
}

// GetListing returns a listing by ID.
func GetListing(ctx context.Context, db *sql.DB, id int64) (*model.Listing, error) {
	l, err := scanListing(db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings l JOIN users u ON u.id = l.finder_id
		 WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// ListingFilter holds the optional search predicates for SearchListings.
type ListingFilter struct {
	Query    string
	Category string
	Location string
	DateFrom *time.Time
	DateTo   *time.Time
}

// SearchListings returns active listings matching the filter, newest first,
// along with the total match count for pagination.
func SearchListings(ctx context.Context, db *sql.DB, f ListingFilter, page, size int) ([]model.Listing, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	where := ` WHERE l.status = 'active'`
	var args []any

	if f.Query != "" {
		where += ` AND (LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)`
		pattern := "%" + strings.ToLower(f.Query) + "%"
		args = append(args, pattern, pattern)
	}
	if f.Category != "" {
		where += ` AND l.category = ?`
		args = append(args, f.Category)
	}
	if f.Location != "" {
		where += ` AND LOWER(l.location_text) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.DateFrom != nil {
		where += ` AND l.found_at >= ?`
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where += ` AND l.found_at <= ?`
		args = append(args, *f.DateTo)
	}

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings l`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	query := `SELECT ` + listingColumns + ` FROM listings l JOIN users u ON u.id = l.finder_id` +
		where + ` ORDER BY l.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, total, rows.Err()
}

// ListUserListings returns all listings posted by a user, newest first,
// excluding deleted ones.
func ListUserListings(ctx context.Context, db *sql.DB, finderID int64) ([]model.Listing, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings l JOIN users u ON u.id = l.finder_id
		 WHERE l.finder_id = ? AND l.status != 'deleted' ORDER BY l.created_at DESC`, finderID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// UpdateListing updates a listing's editable fields. Deleted listings are
// immutable.
func UpdateListing(ctx context.Context, db *sql.DB, l *model.Listing) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET title = ?, category = ?, location_text = ?, latitude = ?,
		        longitude = ?, found_at = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'deleted'`,
		l.Title, l.Category, l.LocationText, l.Latitude, l.Longitude, l.FoundAt, l.Description, l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	return nil
}

// SetListingStatus transitions a listing's status. Deleted listings are
// immutable and keep their status.
func SetListingStatus(ctx context.Context, db *sql.DB, id int64, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'deleted'`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("setting listing status: %w", err)
	}
	return nil
}

// IncrementListingViews bumps a listing's view counter.
func IncrementListingViews(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET views_count = views_count + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("incrementing listing views: %w", err)
	}
	return nil
}

// SetListingImage sets a listing's photo.
func SetListingImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'deleted'`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting listing image: %w", err)
	}
	return nil
}

// GetListingImage returns a listing's photo data and MIME type.
func GetListingImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM listings WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting listing image: %w", err)
	}
	return image, mime.String, nil
}
