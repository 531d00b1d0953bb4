// Package withdrawal defines the withdrawal request lifecycle.
package withdrawal

import "time"

// Status mirrors the investment lifecycle: pending until an admin approves.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
)

// Withdrawal is a user request to move funds out to their own address,
// awaiting admin confirmation.
type Withdrawal struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Coin   string `json:"coin"`
	// Network is recorded only for coins where it matters (USDT).
	Network string  `json:"network,omitempty"`
	Amount  float64 `json:"amount"`
	// Address is the user-supplied destination, free text.
	Address   string    `json:"address"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Pending reports whether the request still awaits approval.
func (w Withdrawal) Pending() bool { return w.Status == StatusPending }
