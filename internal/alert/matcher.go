// Package alert matches newly created listings against saved-search alerts
// and dispatches notifications for the matches.
package alert

import (
	"math"
	"strings"
	"time"

	"github.com/retrouvtout/backend/internal/model"
)

// earthRadiusKm is the Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// FindMatches returns the alerts the listing satisfies. A listing matches an
// alert when every set predicate holds; unset predicates are skipped. Pure
// function, no side effects.
func FindMatches(listing *model.Listing, alerts []model.Alert) []model.Alert {
	var matches []model.Alert
	for _, a := range alerts {
		if Matches(listing, &a) {
			matches = append(matches, a)
		}
	}
	return matches
}

// Matches reports whether the listing satisfies all of the alert's set
// predicates.
func Matches(listing *model.Listing, a *model.Alert) bool {
	// Category: case-insensitive equality.
	if a.Category != "" && !strings.EqualFold(a.Category, listing.Category) {
		return false
	}

	// Keyword: substring of title or description.
	if a.QueryText != "" {
		query := strings.ToLower(a.QueryText)
		title := strings.ToLower(listing.Title)
		description := strings.ToLower(listing.Description)
		if !strings.Contains(title, query) && !strings.Contains(description, query) {
			return false
		}
	}

	// Location text: substring of the listing's location.
	if a.LocationText != "" {
		if !strings.Contains(strings.ToLower(listing.LocationText), strings.ToLower(a.LocationText)) {
			return false
		}
	}

	// Geo radius: applies only when both sides have coordinates.
	if a.Latitude != nil && a.Longitude != nil && listing.Latitude != nil && listing.Longitude != nil {
		radius := model.DefaultRadiusKm
		if a.RadiusKm != nil {
			radius = *a.RadiusKm
		}
		distance := Haversine(*a.Latitude, *a.Longitude, *listing.Latitude, *listing.Longitude)
		if distance > radius {
			return false
		}
	}

	// Date range: date-from at start of day, date-to at end of day.
	if a.DateFrom != nil {
		from := startOfDay(*a.DateFrom)
		if listing.FoundAt.Before(from) {
			return false
		}
	}
	if a.DateTo != nil {
		to := endOfDay(*a.DateTo)
		if listing.FoundAt.After(to) {
			return false
		}
	}

	return true
}

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	latDelta := toRadians(lat2 - lat1)
	lonDelta := toRadians(lon2 - lon1)

	a := math.Sin(latDelta/2)*math.Sin(latDelta/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(lonDelta/2)*math.Sin(lonDelta/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
