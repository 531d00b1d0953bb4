// Package invest handles the deposit flow: asset discovery, deposit address
// lookup, and submission of investment records for approval.
package invest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// ErrNoDepositAddress is returned when no admin-configured address exists
// for the requested (coin, network) pair. Submissions are rejected so a user
// can never record a deposit against an address they were never shown.
var ErrNoDepositAddress = errors.New("no deposit address configured")

// DefaultRecentLimit bounds the recent-investments listing.
const DefaultRecentLimit = 10

// SubmitRequest carries one investment submission.
type SubmitRequest struct {
	UserID  string
	Coin    string
	Network string
	Amount  float64
	// AddressCopied confirms the user copied the deposit address before
	// submitting. The flow requires it.
	AddressCopied bool
}

// Service validates and records investment submissions.
type Service struct {
	investments storage.InvestmentStore
	wallets     storage.WalletAddressStore
	log         *logger.Logger
}

// New constructs the invest service.
func New(investments storage.InvestmentStore, wallets storage.WalletAddressStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("invest")
	}
	return &Service{investments: investments, wallets: wallets, log: log}
}

// Assets lists the investable assets and their networks.
func (s *Service) Assets() []wallet.Asset {
	return wallet.Catalog()
}

// DepositAddress resolves the shared deposit address for an asset. The
// network defaults to the asset's first network when blank.
func (s *Service) DepositAddress(ctx context.Context, coin, network string) (wallet.Address, error) {
	asset, ok := wallet.LookupAsset(coin)
	if !ok {
		return wallet.Address{}, fmt.Errorf("unknown asset %q", coin)
	}
	if network == "" {
		network = asset.DefaultNetwork()
	}
	if !asset.SupportsNetwork(network) {
		return wallet.Address{}, fmt.Errorf("asset %s does not support network %q", asset.Symbol, network)
	}

	addr, err := s.wallets.GetWalletAddress(ctx, asset.Symbol, network)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return wallet.Address{}, ErrNoDepositAddress
		}
		return wallet.Address{}, fmt.Errorf("load deposit address: %w", err)
	}
	if strings.TrimSpace(addr.Address) == "" {
		return wallet.Address{}, ErrNoDepositAddress
	}
	return addr, nil
}

// Submit records a pending investment. The deposit address shown to the
// user is snapshotted onto the record.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (investment.Investment, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return investment.Investment{}, fmt.Errorf("user_id is required")
	}
	if req.Amount <= 0 {
		return investment.Investment{}, fmt.Errorf("amount must be positive")
	}
	if !req.AddressCopied {
		return investment.Investment{}, fmt.Errorf("confirm the deposit address was copied before submitting")
	}

	asset, ok := wallet.LookupAsset(req.Coin)
	if !ok {
		return investment.Investment{}, fmt.Errorf("unknown asset %q", req.Coin)
	}
	if req.Network == "" {
		req.Network = asset.DefaultNetwork()
	}

	addr, err := s.DepositAddress(ctx, asset.Symbol, req.Network)
	if err != nil {
		return investment.Investment{}, err
	}

	inv := investment.Investment{
		UserID:        req.UserID,
		Coin:          strings.ToLower(asset.Symbol),
		Network:       req.Network,
		Amount:        req.Amount,
		WalletAddress: addr.Address,
		Status:        investment.StatusPending,
	}
	inv, err = s.investments.CreateInvestment(ctx, inv)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("create investment: %w", err)
	}

	s.log.WithField("user_id", inv.UserID).
		WithField("coin", inv.Coin).
		WithField("amount", inv.Amount).
		Info("investment submitted")
	return inv, nil
}

// Recent lists the user's newest investments.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]investment.Investment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.investments.ListUserInvestments(ctx, userID, limit)
}
