package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/storage/memory"
	"github.com/gasamara891-boop/river/supabase/client"
)

func newTestFeed(t *testing.T) (*Feed, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, store, store, nil)
	return NewFeed(svc, nil, nil), store
}

func TestFeedStartLoadsSnapshot(t *testing.T) {
	feed, store := newTestFeed(t)
	ctx := context.Background()

	_, err := store.UpsertProfile(ctx, profile.Profile{ID: "u1"})
	require.NoError(t, err)

	require.NoError(t, feed.Start(ctx))
	defer feed.Stop(ctx)

	require.Len(t, feed.Current().Profiles, 1)
}

func TestFeedApplyInsertAndUpdate(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	feed.apply(&client.ChangeEvent{
		Type:  "INSERT",
		Table: "investments",
		Record: map[string]any{
			"id": "i1", "user_id": "u1", "coin": "btc", "amount": 100.0, "status": "pending",
		},
	})
	snap := feed.Current()
	require.Len(t, snap.Investments, 1)
	require.Equal(t, investment.StatusPending, snap.Investments[0].Status)

	// An update replaces the row in place instead of duplicating it.
	feed.apply(&client.ChangeEvent{
		Type:  "UPDATE",
		Table: "investments",
		Record: map[string]any{
			"id": "i1", "user_id": "u1", "coin": "btc", "amount": 100.0, "status": "success",
		},
	})
	snap = feed.Current()
	require.Len(t, snap.Investments, 1)
	require.Equal(t, investment.StatusSuccess, snap.Investments[0].Status)
}

func TestFeedApplyDelete(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	feed.apply(&client.ChangeEvent{
		Type:   "INSERT",
		Table:  "profiles",
		Record: map[string]any{"id": "u1", "email": "u1@example.com"},
	})
	require.Len(t, feed.Current().Profiles, 1)

	feed.apply(&client.ChangeEvent{
		Type:      "DELETE",
		Table:     "profiles",
		OldRecord: map[string]any{"id": "u1"},
	})
	require.Empty(t, feed.Current().Profiles)
}

func TestFeedSubscribeReceivesLatest(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	updates, cancel := feed.Subscribe()
	defer cancel()

	// Two rapid changes; a slow consumer sees the newest snapshot.
	feed.apply(&client.ChangeEvent{
		Type:   "INSERT",
		Table:  "profiles",
		Record: map[string]any{"id": "u1"},
	})
	feed.apply(&client.ChangeEvent{
		Type:   "INSERT",
		Table:  "profiles",
		Record: map[string]any{"id": "u2"},
	})

	snap := <-updates
	require.Len(t, snap.Profiles, 2)
}

func TestFeedIgnoresUnknownTable(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	feed.apply(&client.ChangeEvent{
		Type:   "INSERT",
		Table:  "unrelated",
		Record: map[string]any{"id": "x"},
	})
	require.Empty(t, feed.Current().Profiles)
}

func TestFeedSnapshotIsolation(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	feed.apply(&client.ChangeEvent{
		Type:  "INSERT",
		Table: "investments",
		Record: map[string]any{
			"id": "i1", "user_id": "u1", "coin": "btc", "amount": 100.0, "status": "pending",
		},
	})
	before := feed.Current()

	// Updating and deleting rows must not reach through to snapshots that
	// were already handed out.
	feed.apply(&client.ChangeEvent{
		Type:  "UPDATE",
		Table: "investments",
		Record: map[string]any{
			"id": "i1", "user_id": "u1", "coin": "btc", "amount": 100.0, "status": "success",
		},
	})
	require.Equal(t, investment.StatusPending, before.Investments[0].Status)
	require.Equal(t, investment.StatusSuccess, feed.Current().Investments[0].Status)

	withRow := feed.Current()
	feed.apply(&client.ChangeEvent{
		Type:      "DELETE",
		Table:     "investments",
		OldRecord: map[string]any{"id": "i1"},
	})
	require.Len(t, withRow.Investments, 1)
	require.Empty(t, feed.Current().Investments)
}

func TestFeedWithoutRealtimeIsNotLive(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.False(t, feed.Live())
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop(context.Background())

	require.False(t, feed.Live())
}
