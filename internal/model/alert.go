package model

import (
	"strings"
	"time"
)

// Alert represents a saved search that triggers notifications when a new
// listing matches it. All filter fields are optional; an unset filter is
// treated as satisfied during matching.
type Alert struct {
	ID              int64      `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	Title           string     `json:"title"`
	QueryText       string     `json:"query_text,omitempty"`
	Category        string     `json:"category,omitempty"`
	LocationText    string     `json:"location_text,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	RadiusKm        *float64   `json:"radius_km,omitempty"`
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"`
	Channels        []string   `json:"channels"`
	Active          bool       `json:"active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// DefaultRadiusKm is used for geo matching when an alert has coordinates but
// no explicit radius.
const DefaultRadiusKm = 10.0

// ValidChannel reports whether c is a known notification channel.
func ValidChannel(c string) bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelPush
}

// HasChannel reports whether the alert subscribes to the given channel.
func (a *Alert) HasChannel(c string) bool {
	for _, ch := range a.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// JoinChannels serializes a channel list for storage.
func JoinChannels(channels []string) string {
	return strings.Join(channels, ",")
}

// SplitChannels parses a stored channel list.
func SplitChannels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
