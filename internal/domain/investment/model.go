// Package investment defines the investment record lifecycle.
package investment

import "time"

// Status is the lifecycle state of an investment. Transitions are
// one-directional: pending records may be approved to success, nothing
// moves back.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSuccess
}

// Investment is a user-submitted record of funds the user claims to have
// sent to a shared deposit address, awaiting admin confirmation.
type Investment struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Coin   string `json:"coin"`
	// Network is the chain the deposit was made on (mainnet, ERC20, ...).
	Network string  `json:"network"`
	Amount  float64 `json:"amount"`
	// WalletAddress snapshots the deposit address shown at submission time.
	WalletAddress string    `json:"wallet_address"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Pending reports whether the record still awaits approval.
func (i Investment) Pending() bool { return i.Status == StatusPending }
