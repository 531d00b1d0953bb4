// Package memory provides an in-memory storage backend used by tests and by
// local development runs without a Supabase project.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
	"github.com/gasamara891-boop/river/internal/storage"
)

// Store keeps all rows in process. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	profiles    map[string]profile.Profile
	investments map[string]investment.Investment
	withdrawals map[string]withdrawal.Withdrawal
	addresses   map[string]wallet.Address
	activity    []activity.Entry
	balances    map[string]map[string]float64
}

var (
	_ storage.ProfileStore       = (*Store)(nil)
	_ storage.InvestmentStore    = (*Store)(nil)
	_ storage.WithdrawalStore    = (*Store)(nil)
	_ storage.WalletAddressStore = (*Store)(nil)
	_ storage.ActivityStore      = (*Store)(nil)
	_ storage.BalanceStore       = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles:    make(map[string]profile.Profile),
		investments: make(map[string]investment.Investment),
		withdrawals: make(map[string]withdrawal.Withdrawal),
		addresses:   make(map[string]wallet.Address),
		balances:    make(map[string]map[string]float64),
	}
}

func (s *Store) UpsertProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if existing, ok := s.profiles[p.ID]; ok {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
		}
		if p.ManualInterest == nil {
			p.ManualInterest = existing.ManualInterest
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, limit int) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetManualInterest(ctx context.Context, id string, value *float64) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p.ManualInterest = value
	s.profiles[id] = p
	return p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.profiles, id)
	for invID, inv := range s.investments {
		if inv.UserID == id {
			delete(s.investments, invID)
		}
	}
	for wdID, wd := range s.withdrawals {
		if wd.UserID == id {
			delete(s.withdrawals, wdID)
		}
	}
	kept := s.activity[:0]
	for _, e := range s.activity {
		if e.UserID != id {
			kept = append(kept, e)
		}
	}
	s.activity = kept
	delete(s.balances, id)
	return nil
}

func (s *Store) CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	s.investments[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investments[id]
	if !ok {
		return investment.Investment{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) ListInvestments(ctx context.Context, limit int) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]investment.Investment, 0, len(s.investments))
	for _, inv := range s.investments {
		out = append(out, inv)
	}
	sortInvestments(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListUserInvestments(ctx context.Context, userID string, limit int) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []investment.Investment
	for _, inv := range s.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	sortInvestments(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListUserInvestmentsByStatus(ctx context.Context, userID string, status investment.Status) ([]investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []investment.Investment
	for _, inv := range s.investments {
		if inv.UserID == userID && inv.Status == status {
			out = append(out, inv)
		}
	}
	sortInvestments(out)
	return out, nil
}

func (s *Store) SetInvestmentStatus(ctx context.Context, id string, status investment.Status) (investment.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[id]
	if !ok {
		return investment.Investment{}, storage.ErrNotFound
	}
	inv.Status = status
	s.investments[id] = inv
	return inv, nil
}

func (s *Store) CreateWithdrawal(ctx context.Context, wd withdrawal.Withdrawal) (withdrawal.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wd.ID == "" {
		wd.ID = uuid.NewString()
	}
	if wd.CreatedAt.IsZero() {
		wd.CreatedAt = time.Now().UTC()
	}
	s.withdrawals[wd.ID] = wd
	return wd, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wd, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Withdrawal{}, storage.ErrNotFound
	}
	return wd, nil
}

func (s *Store) ListWithdrawals(ctx context.Context, limit int) ([]withdrawal.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]withdrawal.Withdrawal, 0, len(s.withdrawals))
	for _, wd := range s.withdrawals {
		out = append(out, wd)
	}
	sortWithdrawals(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListUserWithdrawals(ctx context.Context, userID string) ([]withdrawal.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []withdrawal.Withdrawal
	for _, wd := range s.withdrawals {
		if wd.UserID == userID {
			out = append(out, wd)
		}
	}
	sortWithdrawals(out)
	return out, nil
}

func (s *Store) SetWithdrawalStatus(ctx context.Context, id string, status withdrawal.Status) (withdrawal.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wd, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Withdrawal{}, storage.ErrNotFound
	}
	wd.Status = status
	s.withdrawals[id] = wd
	return wd, nil
}

func (s *Store) GetWalletAddress(ctx context.Context, coin, network string) (wallet.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.addresses[wallet.Key(coin, network)]
	if !ok {
		return wallet.Address{}, storage.ErrNotFound
	}
	return addr, nil
}

func (s *Store) ListWalletAddresses(ctx context.Context) ([]wallet.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]wallet.Address, 0, len(s.addresses))
	for _, addr := range s.addresses {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return wallet.Key(out[i].Coin, out[i].Network) < wallet.Key(out[j].Coin, out[j].Network)
	})
	return out, nil
}

func (s *Store) UpsertWalletAddresses(ctx context.Context, rows []wallet.Address) ([]wallet.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wallet.Address, 0, len(rows))
	for _, row := range rows {
		row.Coin = strings.ToLower(row.Coin)
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = time.Now().UTC()
		}
		s.addresses[wallet.Key(row.Coin, row.Network)] = row
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) AppendActivity(ctx context.Context, entry activity.Entry) (activity.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activity = append(s.activity, entry)
	return entry, nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, offset, limit int) ([]activity.Entry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []activity.Entry
	for _, e := range s.activity {
		if userID == "" || e.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *Store) ListRecentActivity(ctx context.Context, limit int) ([]activity.Entry, error) {
	entries, _, err := s.ListActivity(ctx, "", 0, limit)
	return entries, err
}

// SetBalances stores an explicit balance row for a user, overriding derived
// balances in portfolio reads.
func (s *Store) SetBalances(ctx context.Context, userID string, balances map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]float64, len(balances))
	for coin, amount := range balances {
		copied[strings.ToLower(coin)] = amount
	}
	s.balances[userID] = copied
}

func (s *Store) GetBalances(ctx context.Context, userID string) (map[string]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.balances[userID]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]float64, len(row))
	for coin, amount := range row {
		out[coin] = amount
	}
	return out, true, nil
}

func sortInvestments(list []investment.Investment) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func sortWithdrawals(list []withdrawal.Withdrawal) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}
