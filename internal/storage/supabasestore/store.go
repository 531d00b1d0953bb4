// Package supabasestore implements the storage interfaces on top of the
// Supabase PostgREST API.
package supabasestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/supabase/client"
)

const (
	tableProfiles    = "profiles"
	tableInvestments = "investments"
	tableWithdrawals = "withdrawals"
	tableWallets     = "wallet_addresses"
	tableActivity    = "activity_log"
	tableBalances    = "balances"
)

// Store persists all application tables through one Supabase project.
type Store struct {
	sb  *client.Client
	now func() time.Time
}

var (
	_ storage.ProfileStore       = (*Store)(nil)
	_ storage.InvestmentStore    = (*Store)(nil)
	_ storage.WithdrawalStore    = (*Store)(nil)
	_ storage.WalletAddressStore = (*Store)(nil)
	_ storage.ActivityStore      = (*Store)(nil)
	_ storage.BalanceStore       = (*Store)(nil)
)

// New wraps a Supabase client.
func New(sb *client.Client) *Store {
	return &Store{sb: sb, now: func() time.Time { return time.Now().UTC() }}
}

// mapErr converts PostgREST status codes into storage errors. A 406 is what
// PostgREST returns for a missing row under the single-object Accept header.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusNotAcceptable {
			return storage.ErrNotFound
		}
	}
	return err
}

func (s *Store) UpsertProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	resp, err := s.sb.From(tableProfiles).Upsert(ctx, []profile.Profile{p}, "id")
	if err != nil {
		return profile.Profile{}, err
	}
	if err := resp.Error(); err != nil {
		return profile.Profile{}, err
	}
	var rows []profile.Profile
	if err := resp.JSON(&rows); err != nil {
		return profile.Profile{}, err
	}
	if len(rows) == 0 {
		return p, nil
	}
	return rows[0], nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	resp, err := s.sb.From(tableProfiles).Select("*").Eq("id", id).Single().Execute(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := resp.Error(); err != nil {
		return profile.Profile{}, mapErr(err)
	}
	var p profile.Profile
	if err := resp.JSON(&p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, limit int) ([]profile.Profile, error) {
	q := s.sb.From(tableProfiles).Select("*").Order("created_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var rows []profile.Profile
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) SetManualInterest(ctx context.Context, id string, value *float64) (profile.Profile, error) {
	patch := map[string]any{"manual_interest": value}
	resp, err := s.sb.From(tableProfiles).Eq("id", id).Update(ctx, patch)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := resp.Error(); err != nil {
		return profile.Profile{}, mapErr(err)
	}
	var rows []profile.Profile
	if err := resp.JSON(&rows); err != nil {
		return profile.Profile{}, err
	}
	if len(rows) == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	// Dependent rows first so a half-failed delete never orphans a profile.
	for _, table := range []string{tableActivity, tableBalances, tableWithdrawals, tableInvestments} {
		resp, err := s.sb.From(table).Eq("user_id", id).Delete(ctx)
		if err != nil {
			return err
		}
		if err := resp.Error(); err != nil {
			return err
		}
	}
	resp, err := s.sb.From(tableProfiles).Eq("id", id).Delete(ctx)
	if err != nil {
		return err
	}
	if err := resp.Error(); err != nil {
		return mapErr(err)
	}
	var rows []profile.Profile
	if err := resp.JSON(&rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	resp, err := s.sb.From(tableInvestments).Insert(ctx, []investment.Investment{inv})
	if err != nil {
		return investment.Investment{}, err
	}
	if err := resp.Error(); err != nil {
		return investment.Investment{}, err
	}
	var rows []investment.Investment
	if err := resp.JSON(&rows); err != nil {
		return investment.Investment{}, err
	}
	if len(rows) == 0 {
		return inv, nil
	}
	return rows[0], nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (investment.Investment, error) {
	resp, err := s.sb.From(tableInvestments).Select("*").Eq("id", id).Single().Execute(ctx)
	if err != nil {
		return investment.Investment{}, err
	}
	if err := resp.Error(); err != nil {
		return investment.Investment{}, mapErr(err)
	}
	var inv investment.Investment
	if err := resp.JSON(&inv); err != nil {
		return investment.Investment{}, err
	}
	return inv, nil
}

func (s *Store) ListInvestments(ctx context.Context, limit int) ([]investment.Investment, error) {
	q := s.sb.From(tableInvestments).Select("*").Order("created_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return executeInvestments(ctx, q)
}

func (s *Store) ListUserInvestments(ctx context.Context, userID string, limit int) ([]investment.Investment, error) {
	q := s.sb.From(tableInvestments).Select("*").Eq("user_id", userID).Order("created_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return executeInvestments(ctx, q)
}

func (s *Store) ListUserInvestmentsByStatus(ctx context.Context, userID string, status investment.Status) ([]investment.Investment, error) {
	q := s.sb.From(tableInvestments).Select("*").
		Eq("user_id", userID).
		Eq("status", string(status)).
		Order("created_at", false)
	return executeInvestments(ctx, q)
}

func (s *Store) SetInvestmentStatus(ctx context.Context, id string, status investment.Status) (investment.Investment, error) {
	resp, err := s.sb.From(tableInvestments).Eq("id", id).Update(ctx, map[string]any{"status": status})
	if err != nil {
		return investment.Investment{}, err
	}
	if err := resp.Error(); err != nil {
		return investment.Investment{}, mapErr(err)
	}
	var rows []investment.Investment
	if err := resp.JSON(&rows); err != nil {
		return investment.Investment{}, err
	}
	if len(rows) == 0 {
		return investment.Investment{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func executeInvestments(ctx context.Context, q *client.QueryBuilder) ([]investment.Investment, error) {
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var rows []investment.Investment
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CreateWithdrawal(ctx context.Context, wd withdrawal.Withdrawal) (withdrawal.Withdrawal, error) {
	if wd.ID == "" {
		wd.ID = uuid.NewString()
	}
	if wd.CreatedAt.IsZero() {
		wd.CreatedAt = s.now()
	}
	resp, err := s.sb.From(tableWithdrawals).Insert(ctx, []withdrawal.Withdrawal{wd})
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if err := resp.Error(); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	var rows []withdrawal.Withdrawal
	if err := resp.JSON(&rows); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if len(rows) == 0 {
		return wd, nil
	}
	return rows[0], nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	resp, err := s.sb.From(tableWithdrawals).Select("*").Eq("id", id).Single().Execute(ctx)
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if err := resp.Error(); err != nil {
		return withdrawal.Withdrawal{}, mapErr(err)
	}
	var wd withdrawal.Withdrawal
	if err := resp.JSON(&wd); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	return wd, nil
}

func (s *Store) ListWithdrawals(ctx context.Context, limit int) ([]withdrawal.Withdrawal, error) {
	q := s.sb.From(tableWithdrawals).Select("*").Order("created_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return executeWithdrawals(ctx, q)
}

func (s *Store) ListUserWithdrawals(ctx context.Context, userID string) ([]withdrawal.Withdrawal, error) {
	q := s.sb.From(tableWithdrawals).Select("*").Eq("user_id", userID).Order("created_at", false)
	return executeWithdrawals(ctx, q)
}

func (s *Store) SetWithdrawalStatus(ctx context.Context, id string, status withdrawal.Status) (withdrawal.Withdrawal, error) {
	resp, err := s.sb.From(tableWithdrawals).Eq("id", id).Update(ctx, map[string]any{"status": status})
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if err := resp.Error(); err != nil {
		return withdrawal.Withdrawal{}, mapErr(err)
	}
	var rows []withdrawal.Withdrawal
	if err := resp.JSON(&rows); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if len(rows) == 0 {
		return withdrawal.Withdrawal{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func executeWithdrawals(ctx context.Context, q *client.QueryBuilder) ([]withdrawal.Withdrawal, error) {
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var rows []withdrawal.Withdrawal
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetWalletAddress(ctx context.Context, coin, network string) (wallet.Address, error) {
	resp, err := s.sb.From(tableWallets).Select("*").
		Eq("coin", strings.ToLower(coin)).
		Eq("network", network).
		Single().
		Execute(ctx)
	if err != nil {
		return wallet.Address{}, err
	}
	if err := resp.Error(); err != nil {
		return wallet.Address{}, mapErr(err)
	}
	var addr wallet.Address
	if err := resp.JSON(&addr); err != nil {
		return wallet.Address{}, err
	}
	return addr, nil
}

func (s *Store) ListWalletAddresses(ctx context.Context) ([]wallet.Address, error) {
	resp, err := s.sb.From(tableWallets).Select("*").Order("coin", true).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var rows []wallet.Address
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) UpsertWalletAddresses(ctx context.Context, rows []wallet.Address) ([]wallet.Address, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	payload := make([]wallet.Address, len(rows))
	for i, row := range rows {
		row.Coin = strings.ToLower(row.Coin)
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = s.now()
		}
		payload[i] = row
	}
	resp, err := s.sb.From(tableWallets).Upsert(ctx, payload, "coin,network")
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	var saved []wallet.Address
	if err := resp.JSON(&saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) AppendActivity(ctx context.Context, entry activity.Entry) (activity.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	resp, err := s.sb.From(tableActivity).Insert(ctx, []activity.Entry{entry})
	if err != nil {
		return activity.Entry{}, err
	}
	if err := resp.Error(); err != nil {
		return activity.Entry{}, err
	}
	var rows []activity.Entry
	if err := resp.JSON(&rows); err != nil {
		return activity.Entry{}, err
	}
	if len(rows) == 0 {
		return entry, nil
	}
	return rows[0], nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, offset, limit int) ([]activity.Entry, int64, error) {
	q := s.sb.From(tableActivity).Select("*").Order("created_at", false).Count("exact")
	if userID != "" {
		q = q.Eq("user_id", userID)
	}
	if limit > 0 {
		q = q.Range(offset, offset+limit-1)
	} else if offset > 0 {
		q = q.Offset(offset)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := resp.Error(); err != nil {
		return nil, 0, err
	}
	var rows []activity.Entry
	if err := resp.JSON(&rows); err != nil {
		return nil, 0, err
	}
	total, ok := resp.Total()
	if !ok {
		total = int64(len(rows))
	}
	return rows, total, nil
}

func (s *Store) ListRecentActivity(ctx context.Context, limit int) ([]activity.Entry, error) {
	rows, _, err := s.ListActivity(ctx, "", 0, limit)
	return rows, err
}

// balanceRow is one per-coin row in the optional balances table.
type balanceRow struct {
	UserID string  `json:"user_id"`
	Coin   string  `json:"coin"`
	Amount float64 `json:"amount"`
}

func (s *Store) GetBalances(ctx context.Context, userID string) (map[string]float64, bool, error) {
	resp, err := s.sb.From(tableBalances).Select("*").Eq("user_id", userID).Execute(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := resp.Error(); err != nil {
		// The balances table is optional in older projects.
		if errors.Is(mapErr(err), storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rows []balanceRow
	if err := resp.JSON(&rows); err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[strings.ToLower(row.Coin)] = row.Amount
	}
	return out, true, nil
}
