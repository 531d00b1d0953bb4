// Package activity defines the append-only user activity log.
package activity

import "time"

// Known event names written by the auth gateway.
const (
	EventSignup = "signup"
	EventLogin  = "login"
	EventLogout = "logout"
)

// Entry is one audit record. Entries are append-only: written on auth
// events, read by the dashboards, never updated.
type Entry struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	Event       string    `json:"event"`
	Description string    `json:"description,omitempty"`
	IP          string    `json:"ip,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	Country     string    `json:"country,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Location is the geo enrichment attached to an entry. Lookups are
// best-effort; unknown fields stay "Unknown".
type Location struct {
	IP      string
	City    string
	Region  string
	Country string
}

// Unknown is the placeholder for failed geo lookups.
const Unknown = "Unknown"

// UnknownLocation returns a fully degraded location.
func UnknownLocation() Location {
	return Location{IP: Unknown, City: Unknown, Region: Unknown, Country: Unknown}
}
