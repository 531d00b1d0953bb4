// Package portfolio derives dashboard metrics from approved investments.
package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// DefaultInterestRate is the flat profit rate applied to the approved total
// when no manual override is set on the profile.
const DefaultInterestRate = "0.05"

// Summary is the aggregate view one dashboard load needs.
type Summary struct {
	TotalInvested float64            `json:"total_invested"`
	Profit        float64            `json:"profit"`
	Balances      map[string]float64 `json:"balances"`
	PendingCount  int                `json:"pending_count"`
}

// Service computes per-user portfolio figures.
type Service struct {
	profiles    storage.ProfileStore
	investments storage.InvestmentStore
	balances    storage.BalanceStore
	log         *logger.Logger
}

// New constructs the portfolio service. The balance store is optional; when
// nil, balances are always derived from approved investments.
func New(profiles storage.ProfileStore, investments storage.InvestmentStore, balances storage.BalanceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("portfolio")
	}
	return &Service{
		profiles:    profiles,
		investments: investments,
		balances:    balances,
		log:         log,
	}
}

// TotalInvested sums the user's approved investments.
func (s *Service) TotalInvested(ctx context.Context, userID string) (float64, error) {
	approved, err := s.approved(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := decimal.Zero
	for _, inv := range approved {
		total = total.Add(decimal.NewFromFloat(inv.Amount))
	}
	f, _ := total.Float64()
	return f, nil
}

// Profit returns the manual interest override when the profile carries one,
// otherwise the flat rate applied to the approved total, rounded to cents
// with ties away from zero.
func (s *Service) Profit(ctx context.Context, userID string) (float64, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}
	if p.ManualInterest != nil {
		return *p.ManualInterest, nil
	}
	total, err := s.TotalInvested(ctx, userID)
	if err != nil {
		return 0, err
	}
	rate, err := decimal.NewFromString(DefaultInterestRate)
	if err != nil {
		return 0, err
	}
	profit, _ := decimal.NewFromFloat(total).Mul(rate).Round(2).Float64()
	return profit, nil
}

// Balances returns the user's per-coin holdings. An explicit balances row
// wins; otherwise holdings are derived by summing approved investments per
// lowercased coin symbol.
func (s *Service) Balances(ctx context.Context, userID string) (map[string]float64, error) {
	if s.balances != nil {
		row, ok, err := s.balances.GetBalances(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		if ok {
			return row, nil
		}
	}

	approved, err := s.approved(ctx, userID)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal)
	for _, inv := range approved {
		coin := strings.ToLower(inv.Coin)
		sums[coin] = sums[coin].Add(decimal.NewFromFloat(inv.Amount))
	}
	out := make(map[string]float64, len(sums))
	for coin, sum := range sums {
		out[coin], _ = sum.Float64()
	}
	return out, nil
}

// Balance returns the holding for one coin, zero when absent.
func (s *Service) Balance(ctx context.Context, userID, coin string) (float64, error) {
	balances, err := s.Balances(ctx, userID)
	if err != nil {
		return 0, err
	}
	return balances[strings.ToLower(coin)], nil
}

// Summary assembles the dashboard aggregate in one call.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return Summary{}, fmt.Errorf("user_id is required")
	}

	total, err := s.TotalInvested(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	profit, err := s.Profit(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	balances, err := s.Balances(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	pending, err := s.investments.ListUserInvestmentsByStatus(ctx, userID, investment.StatusPending)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		TotalInvested: total,
		Profit:        profit,
		Balances:      balances,
		PendingCount:  len(pending),
	}, nil
}

func (s *Service) approved(ctx context.Context, userID string) ([]investment.Investment, error) {
	approved, err := s.investments.ListUserInvestmentsByStatus(ctx, userID, investment.StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("list approved investments: %w", err)
	}
	return approved, nil
}
