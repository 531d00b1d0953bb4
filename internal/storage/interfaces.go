package storage

import (
	"context"
	"errors"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ProfileStore persists user profiles.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	ListProfiles(ctx context.Context, limit int) ([]profile.Profile, error)
	SetManualInterest(ctx context.Context, id string, value *float64) (profile.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
}

// InvestmentStore persists investment records.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	GetInvestment(ctx context.Context, id string) (investment.Investment, error)
	ListInvestments(ctx context.Context, limit int) ([]investment.Investment, error)
	ListUserInvestments(ctx context.Context, userID string, limit int) ([]investment.Investment, error)
	ListUserInvestmentsByStatus(ctx context.Context, userID string, status investment.Status) ([]investment.Investment, error)
	SetInvestmentStatus(ctx context.Context, id string, status investment.Status) (investment.Investment, error)
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, wd withdrawal.Withdrawal) (withdrawal.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error)
	ListWithdrawals(ctx context.Context, limit int) ([]withdrawal.Withdrawal, error)
	ListUserWithdrawals(ctx context.Context, userID string) ([]withdrawal.Withdrawal, error)
	SetWithdrawalStatus(ctx context.Context, id string, status withdrawal.Status) (withdrawal.Withdrawal, error)
}

// WalletAddressStore persists global deposit addresses.
type WalletAddressStore interface {
	GetWalletAddress(ctx context.Context, coin, network string) (wallet.Address, error)
	ListWalletAddresses(ctx context.Context) ([]wallet.Address, error)
	UpsertWalletAddresses(ctx context.Context, rows []wallet.Address) ([]wallet.Address, error)
}

// ActivityStore persists the append-only activity log.
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry activity.Entry) (activity.Entry, error)
	ListActivity(ctx context.Context, userID string, offset, limit int) ([]activity.Entry, int64, error)
	ListRecentActivity(ctx context.Context, limit int) ([]activity.Entry, error)
}

// BalanceStore reads the optional per-user balances table. Ok is false when
// the user has no explicit balance row; callers then derive balances from
// approved investments.
type BalanceStore interface {
	GetBalances(ctx context.Context, userID string) (map[string]float64, bool, error)
}
