package invest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/storage/memory"
)

func storeWithAddresses(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	_, err := store.UpsertWalletAddresses(context.Background(), []wallet.Address{
		{Coin: "btc", Network: "mainnet", Address: "bc1qdeposit"},
		{Coin: "usdt", Network: "TRC20", Address: "TDepositXYZ"},
	})
	require.NoError(t, err)
	return store
}

func TestAssetsCatalog(t *testing.T) {
	svc := New(memory.New(), memory.New(), nil)
	assets := svc.Assets()
	require.Len(t, assets, 3)
	require.Equal(t, "BTC", assets[0].Symbol)
	require.Equal(t, []string{"BEP20", "TRC20"}, assets[2].Networks)
}

func TestDepositAddressDefaultsNetwork(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)

	addr, err := svc.DepositAddress(context.Background(), "btc", "")
	require.NoError(t, err)
	require.Equal(t, "bc1qdeposit", addr.Address)
}

func TestDepositAddressUnknownAssetOrNetwork(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	_, err := svc.DepositAddress(ctx, "doge", "")
	require.Error(t, err)

	_, err = svc.DepositAddress(ctx, "btc", "lightning")
	require.Error(t, err)

	// Configured asset but unconfigured network pair.
	_, err = svc.DepositAddress(ctx, "usdt", "BEP20")
	require.ErrorIs(t, err, ErrNoDepositAddress)
}

func TestSubmitRequiresCopiedAddress(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: "u1", Coin: "btc", Amount: 100, AddressCopied: false,
	})
	require.Error(t, err)
}

func TestSubmitSnapshotsAddress(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)

	inv, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: "u1", Coin: "BTC", Amount: 250.5, AddressCopied: true,
	})
	require.NoError(t, err)
	require.Equal(t, "btc", inv.Coin)
	require.Equal(t, "mainnet", inv.Network)
	require.Equal(t, "bc1qdeposit", inv.WalletAddress)
	require.Equal(t, investment.StatusPending, inv.Status)
	require.NotEmpty(t, inv.ID)
}

func TestSubmitRejectsMissingAddress(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: "u1", Coin: "eth", Amount: 10, AddressCopied: true,
	})
	require.ErrorIs(t, err, ErrNoDepositAddress)
}

func TestSubmitValidation(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitRequest{Coin: "btc", Amount: 10, AddressCopied: true})
	require.Error(t, err)
	_, err = svc.Submit(ctx, SubmitRequest{UserID: "u1", Coin: "btc", Amount: 0, AddressCopied: true})
	require.Error(t, err)
}

func TestRecent(t *testing.T) {
	store := storeWithAddresses(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, SubmitRequest{UserID: "u1", Coin: "btc", Amount: 100, AddressCopied: true})
		require.NoError(t, err)
	}

	recent, err := svc.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}
