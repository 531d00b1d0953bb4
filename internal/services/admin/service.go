// Package admin implements the operator surface: approvals, user
// management, deposit address configuration, and the aggregated dashboard
// snapshot.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// ErrNotAdmin is returned when the acting profile lacks the admin flag.
var ErrNotAdmin = errors.New("admin access required")

const snapshotLimit = 200

// Snapshot is the admin dashboard's full working set, loaded in one call.
type Snapshot struct {
	Profiles    []profile.Profile       `json:"profiles"`
	Investments []investment.Investment `json:"investments"`
	Withdrawals []withdrawal.Withdrawal `json:"withdrawals"`
	Addresses   []wallet.Address        `json:"addresses"`
	Activity    []activity.Entry        `json:"activity"`
}

// Service performs privileged operations.
type Service struct {
	profiles    storage.ProfileStore
	investments storage.InvestmentStore
	withdrawals storage.WithdrawalStore
	wallets     storage.WalletAddressStore
	activity    storage.ActivityStore
	log         *logger.Logger
}

// New constructs the admin service.
func New(
	profiles storage.ProfileStore,
	investments storage.InvestmentStore,
	withdrawals storage.WithdrawalStore,
	wallets storage.WalletAddressStore,
	activityStore storage.ActivityStore,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Service{
		profiles:    profiles,
		investments: investments,
		withdrawals: withdrawals,
		wallets:     wallets,
		activity:    activityStore,
		log:         log,
	}
}

// Authorize checks that the acting user carries the admin flag.
func (s *Service) Authorize(ctx context.Context, actorID string) (profile.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, actorID)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load actor profile: %w", err)
	}
	if !p.IsAdmin {
		return profile.Profile{}, ErrNotAdmin
	}
	return p, nil
}

// Snapshot loads every dashboard table concurrently.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.profiles.ListProfiles(gctx, snapshotLimit)
		snap.Profiles = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.investments.ListInvestments(gctx, snapshotLimit)
		snap.Investments = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.withdrawals.ListWithdrawals(gctx, snapshotLimit)
		snap.Withdrawals = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.wallets.ListWalletAddresses(gctx)
		snap.Addresses = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.activity.ListRecentActivity(gctx, snapshotLimit)
		snap.Activity = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load admin snapshot: %w", err)
	}
	return snap, nil
}

// ApproveInvestment moves a pending investment to success. Approving an
// already approved record is a no-op, so double-clicks and concurrent admins
// cannot corrupt state.
func (s *Service) ApproveInvestment(ctx context.Context, id string) (investment.Investment, error) {
	inv, err := s.investments.GetInvestment(ctx, id)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("load investment: %w", err)
	}
	if inv.Status == investment.StatusSuccess {
		return inv, nil
	}
	inv, err = s.investments.SetInvestmentStatus(ctx, id, investment.StatusSuccess)
	if err != nil {
		return investment.Investment{}, fmt.Errorf("approve investment: %w", err)
	}
	s.log.WithField("investment_id", id).
		WithField("user_id", inv.UserID).
		Info("investment approved")
	return inv, nil
}

// ApproveWithdrawal moves a pending withdrawal to success, idempotently.
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	wd, err := s.withdrawals.GetWithdrawal(ctx, id)
	if err != nil {
		return withdrawal.Withdrawal{}, fmt.Errorf("load withdrawal: %w", err)
	}
	if wd.Status == withdrawal.StatusSuccess {
		return wd, nil
	}
	wd, err = s.withdrawals.SetWithdrawalStatus(ctx, id, withdrawal.StatusSuccess)
	if err != nil {
		return withdrawal.Withdrawal{}, fmt.Errorf("approve withdrawal: %w", err)
	}
	s.log.WithField("withdrawal_id", id).
		WithField("user_id", wd.UserID).
		Info("withdrawal approved")
	return wd, nil
}

// DeleteUser removes a profile and its dependent rows.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("user_id is required")
	}
	if err := s.profiles.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.WithField("user_id", id).Warn("user deleted")
	return nil
}

// SaveAddresses upserts deposit addresses. Blank addresses are skipped so a
// partially filled admin form never wipes configured pairs.
func (s *Service) SaveAddresses(ctx context.Context, actorID string, rows []wallet.Address) ([]wallet.Address, error) {
	filtered := make([]wallet.Address, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Address) == "" {
			continue
		}
		if _, ok := wallet.LookupAsset(row.Coin); !ok {
			return nil, fmt.Errorf("unknown asset %q", row.Coin)
		}
		row.Address = strings.TrimSpace(row.Address)
		row.UpdatedBy = actorID
		filtered = append(filtered, row)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no addresses provided")
	}
	saved, err := s.wallets.UpsertWalletAddresses(ctx, filtered)
	if err != nil {
		return nil, fmt.Errorf("save addresses: %w", err)
	}
	s.log.WithField("actor_id", actorID).
		WithField("count", len(saved)).
		Info("deposit addresses saved")
	return saved, nil
}

// SetManualInterest overrides the computed profit for a user. A nil value
// clears the override and restores the computed figure.
func (s *Service) SetManualInterest(ctx context.Context, userID string, value *float64) (profile.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return profile.Profile{}, fmt.Errorf("user_id is required")
	}
	p, err := s.profiles.SetManualInterest(ctx, userID, value)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("set manual interest: %w", err)
	}
	entry := s.log.WithField("user_id", userID)
	if value == nil {
		entry.Info("manual interest cleared")
	} else {
		entry.WithField("value", *value).Info("manual interest set")
	}
	return p, nil
}
