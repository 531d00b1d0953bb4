package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/storage/memory"
)

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := store.UpsertProfile(ctx, profile.Profile{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)
	for _, inv := range []investment.Investment{
		{UserID: "u1", Coin: "BTC", Amount: 1000, Status: investment.StatusSuccess},
		{UserID: "u1", Coin: "btc", Amount: 234.56, Status: investment.StatusSuccess},
		{UserID: "u1", Coin: "usdt", Amount: 500, Status: investment.StatusSuccess},
		{UserID: "u1", Coin: "eth", Amount: 9999, Status: investment.StatusPending},
	} {
		_, err := store.CreateInvestment(ctx, inv)
		require.NoError(t, err)
	}
}

func TestTotalInvestedCountsOnlyApproved(t *testing.T) {
	store := memory.New()
	seed(t, store)
	svc := New(store, store, store, nil)

	total, err := svc.TotalInvested(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1734.56, total)
}

func TestProfitDefaultRateRounding(t *testing.T) {
	store := memory.New()
	seed(t, store)
	svc := New(store, store, store, nil)

	// 1734.56 * 0.05 = 86.728, rounds to 86.73.
	profit, err := svc.Profit(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 86.73, profit)
}

func TestProfitManualOverride(t *testing.T) {
	store := memory.New()
	seed(t, store)
	override := 250.0
	_, err := store.SetManualInterest(context.Background(), "u1", &override)
	require.NoError(t, err)

	svc := New(store, store, store, nil)
	profit, err := svc.Profit(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 250.0, profit)
}

func TestBalancesDerivedGroupsByLowercaseCoin(t *testing.T) {
	store := memory.New()
	seed(t, store)
	svc := New(store, store, store, nil)

	balances, err := svc.Balances(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"btc": 1234.56, "usdt": 500}, balances)
}

func TestBalancesExplicitRowWins(t *testing.T) {
	store := memory.New()
	seed(t, store)
	store.SetBalances(context.Background(), "u1", map[string]float64{"btc": 42})

	svc := New(store, store, store, nil)
	balances, err := svc.Balances(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"btc": 42}, balances)
}

func TestSummary(t *testing.T) {
	store := memory.New()
	seed(t, store)
	svc := New(store, store, store, nil)

	sum, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1734.56, sum.TotalInvested)
	require.Equal(t, 86.73, sum.Profit)
	require.Equal(t, 1, sum.PendingCount)
	require.Equal(t, 1234.56, sum.Balances["btc"])

	_, err = svc.Summary(context.Background(), " ")
	require.Error(t, err)
}
