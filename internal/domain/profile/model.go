package profile

import "time"

// Profile mirrors an authenticated user inside the application's own
// profiles table. Its ID equals the auth identity.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	// IsAdmin grants access to the admin dashboard and approval operations.
	IsAdmin bool `json:"is_admin"`
	// ManualInterest, when set by an admin, replaces the computed profit
	// figure for this user.
	ManualInterest *float64  `json:"manual_interest"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}
