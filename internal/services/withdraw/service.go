// Package withdraw handles withdrawal requests against derived balances.
package withdraw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// ErrInsufficientBalance rejects withdrawals above the user's holding for
// the coin.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceSource exposes per-coin holdings. The portfolio service satisfies
// it.
type BalanceSource interface {
	Balance(ctx context.Context, userID, coin string) (float64, error)
}

// SubmitRequest carries one withdrawal submission.
type SubmitRequest struct {
	UserID  string
	Coin    string
	Network string
	Amount  float64
	// Address is the user's destination wallet.
	Address string
}

// Service validates and records withdrawal requests.
type Service struct {
	withdrawals storage.WithdrawalStore
	balances    BalanceSource
	log         *logger.Logger
}

// New constructs the withdraw service.
func New(withdrawals storage.WithdrawalStore, balances BalanceSource, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("withdraw")
	}
	return &Service{withdrawals: withdrawals, balances: balances, log: log}
}

// Submit records a pending withdrawal after checking the user's balance.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (withdrawal.Withdrawal, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Address = strings.TrimSpace(req.Address)
	if req.UserID == "" {
		return withdrawal.Withdrawal{}, fmt.Errorf("user_id is required")
	}
	if req.Address == "" {
		return withdrawal.Withdrawal{}, fmt.Errorf("destination address is required")
	}
	if req.Amount <= 0 {
		return withdrawal.Withdrawal{}, fmt.Errorf("amount must be positive")
	}

	asset, ok := wallet.LookupAsset(req.Coin)
	if !ok {
		return withdrawal.Withdrawal{}, fmt.Errorf("unknown asset %q", req.Coin)
	}
	if req.Network != "" && !asset.SupportsNetwork(req.Network) {
		return withdrawal.Withdrawal{}, fmt.Errorf("asset %s does not support network %q", asset.Symbol, req.Network)
	}

	coin := strings.ToLower(asset.Symbol)
	available, err := s.balances.Balance(ctx, req.UserID, coin)
	if err != nil {
		return withdrawal.Withdrawal{}, fmt.Errorf("load balance: %w", err)
	}
	if req.Amount > available {
		return withdrawal.Withdrawal{}, fmt.Errorf("%w: have %v %s, requested %v", ErrInsufficientBalance, available, coin, req.Amount)
	}

	wd := withdrawal.Withdrawal{
		UserID:  req.UserID,
		Coin:    coin,
		Network: req.Network,
		Amount:  req.Amount,
		Address: req.Address,
		Status:  withdrawal.StatusPending,
	}
	wd, err = s.withdrawals.CreateWithdrawal(ctx, wd)
	if err != nil {
		return withdrawal.Withdrawal{}, fmt.Errorf("create withdrawal: %w", err)
	}

	s.log.WithField("user_id", wd.UserID).
		WithField("coin", wd.Coin).
		WithField("amount", wd.Amount).
		Info("withdrawal submitted")
	return wd, nil
}

// History lists the user's withdrawal requests, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]withdrawal.Withdrawal, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.withdrawals.ListUserWithdrawals(ctx, userID)
}
