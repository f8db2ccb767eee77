package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

const alertColumns = `id, owner_id, title, query_text, category, location_text,
	latitude, longitude, radius_km, date_from, date_to, channels, active,
	last_triggered_at, created_at, updated_at`

func scanAlert(row interface{ Scan(...any) error }) (*model.Alert, error) {
	a := &model.Alert{}
	var queryText, category, locationText, channels sql.NullString
	err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &queryText, &category, &locationText,
		&a.Latitude, &a.Longitude, &a.RadiusKm, &a.DateFrom, &a.DateTo, &channels,
		&a.Active, &a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.QueryText = queryText.String
	a.Category = category.String
	a.LocationText = locationText.String
	a.Channels = model.SplitChannels(channels.String)
	return a, nil
}

// CreateAlert creates a new saved-search alert.
func CreateAlert(ctx context.Context, db *sql.DB, a *model.Alert) (*model.Alert, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO alerts (owner_id, title, query_text, category, location_text,
		                     latitude, longitude, radius_km, date_from, date_to, channels)
		 VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		a.OwnerID, a.Title, a.QueryText, a.Category, a.LocationText,
		a.Latitude, a.Longitude, a.RadiusKm, a.DateFrom, a.DateTo, model.JoinChannels(a.Channels),
	)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting alert id: %w", err)
	}

	return GetAlert(ctx, db, id)
}

// GetAlert returns an alert by ID.
func GetAlert(ctx context.Context, db *sql.DB, id int64) (*model.Alert, error) {
	a, err := scanAlert(db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	return a, nil
}

// ListUserAlerts returns all alerts owned by a user, newest first.
func ListUserAlerts(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Alert, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE owner_id = ? ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListActiveAlerts returns a snapshot of every active alert, used by the
// matching sweep when a new listing is created.
func ListActiveAlerts(ctx context.Context, db *sql.DB) ([]model.Alert, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE active = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func collectAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// UpdateAlert updates an alert's filter fields and channels.
func UpdateAlert(ctx context.Context, db *sql.DB, a *model.Alert) error {
	_, err := db.ExecContext(ctx,
		`UPDATE alerts SET title = ?, query_text = NULLIF(?, ''), category = NULLIF(?, ''),
		        location_text = NULLIF(?, ''), latitude = ?, longitude = ?, radius_km = ?,
		        date_from = ?, date_to = ?, channels = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		a.Title, a.QueryText, a.Category, a.LocationText, a.Latitude, a.Longitude,
		a.RadiusKm, a.DateFrom, a.DateTo, model.JoinChannels(a.Channels), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}
	return nil
}

// ToggleAlert flips an alert's active flag.
func ToggleAlert(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE alerts SET active = 1 - active, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("toggling alert: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert.
func DeleteAlert(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	return nil
}

// MarkAlertTriggered records that the alert matched a listing.
func MarkAlertTriggered(ctx context.Context, db *sql.DB, id int64, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE alerts SET last_triggered_at = ? WHERE id = ?`, at, id,
	)
	if err != nil {
		return fmt.Errorf("marking alert triggered: %w", err)
	}
	return nil
}
