package admin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/withdrawal"
	"github.com/gasamara891-boop/river/internal/system"
	"github.com/gasamara891-boop/river/pkg/logger"
	"github.com/gasamara891-boop/river/supabase/client"
)

var _ system.Service = (*Feed)(nil)

// watchedTables are the tables the live dashboard mirrors.
var watchedTables = []string{"profiles", "investments", "withdrawals", "activity_log"}

// Feed keeps an in-memory copy of the admin snapshot current by applying
// realtime change events from Supabase. Every applied change republishes the
// whole snapshot to subscribers, so consumers always render a consistent
// view instead of patching rows themselves.
type Feed struct {
	admin *Service
	rt    *client.RealtimeClient
	log   *logger.Logger

	mu       sync.RWMutex
	snap     Snapshot
	subs     map[int]chan Snapshot
	nextSub  int
	channels []*client.Channel
	running  bool
}

// NewFeed constructs the realtime feed.
func NewFeed(adminSvc *Service, rt *client.RealtimeClient, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.NewDefault("admin-feed")
	}
	return &Feed{
		admin: adminSvc,
		rt:    rt,
		log:   log,
		subs:  make(map[int]chan Snapshot),
	}
}

func (f *Feed) Name() string { return "admin-feed" }

// Start loads the initial snapshot, connects the realtime socket, and
// subscribes to the watched tables.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	snap, err := f.admin.Snapshot(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()

	if f.rt == nil {
		f.log.Warn("realtime client not configured; admin feed serves the startup snapshot only")
		return nil
	}
	if err := f.rt.Connect(ctx); err != nil {
		return err
	}

	for _, table := range watchedTables {
		ch, err := f.rt.Subscribe(ctx, client.PostgresChangesConfig{
			Event:  "*",
			Schema: "public",
			Table:  table,
		}, f.apply)
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.channels = append(f.channels, ch)
		f.mu.Unlock()
	}

	f.log.Info("admin feed started")
	return nil
}

// Stop unsubscribes and drops all subscriber channels.
func (f *Feed) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	channels := f.channels
	f.channels = nil
	subs := f.subs
	f.subs = make(map[int]chan Snapshot)
	f.mu.Unlock()

	for _, ch := range channels {
		if err := ch.Unsubscribe(ctx); err != nil {
			f.log.WithError(err).Debug("unsubscribe realtime channel failed")
		}
	}
	if f.rt != nil {
		if err := f.rt.Disconnect(); err != nil {
			f.log.WithError(err).Debug("disconnect realtime failed")
		}
	}
	for _, sub := range subs {
		close(sub)
	}
	f.log.Info("admin feed stopped")
	return nil
}

// Current returns the latest snapshot.
func (f *Feed) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Live reports whether realtime changes are flowing into the snapshot. A
// feed without a connected realtime client only holds its startup copy, so
// callers should load fresh data themselves when this is false.
func (f *Feed) Live() bool {
	f.mu.RLock()
	running := f.running
	f.mu.RUnlock()
	return running && f.rt != nil && f.rt.Connected()
}

// Subscribe returns a channel receiving each republished snapshot, plus a
// cancel func. Slow consumers drop intermediate snapshots rather than block
// the feed.
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan Snapshot, 1)
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// apply folds one change event into the snapshot and republishes it.
func (f *Feed) apply(event *client.ChangeEvent) {
	f.mu.Lock()
	switch event.Table {
	case "profiles":
		f.snap.Profiles = applyChange(f.snap.Profiles, event, func(p profile.Profile) string { return p.ID })
	case "investments":
		f.snap.Investments = applyChange(f.snap.Investments, event, func(i investment.Investment) string { return i.ID })
	case "withdrawals":
		f.snap.Withdrawals = applyChange(f.snap.Withdrawals, event, func(w withdrawal.Withdrawal) string { return w.ID })
	case "activity_log":
		f.snap.Activity = applyChange(f.snap.Activity, event, func(e activity.Entry) string { return e.ID })
	default:
		f.mu.Unlock()
		return
	}
	snap := f.snap
	subs := make([]chan Snapshot, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- snap:
		default:
			// Replace the stale pending snapshot with the newest one.
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- snap:
			default:
			}
		}
	}
}

// applyChange replaces, prepends, or removes a row by ID. It never mutates
// the input slice: snapshots already handed to readers keep pointing at the
// old backing array.
func applyChange[T any](rows []T, event *client.ChangeEvent, id func(T) string) []T {
	switch event.Type {
	case "DELETE":
		target := recordID(event.OldRecord)
		if target == "" {
			target = recordID(event.Record)
		}
		if target == "" {
			return rows
		}
		out := make([]T, 0, len(rows))
		for _, row := range rows {
			if id(row) != target {
				out = append(out, row)
			}
		}
		return out
	case "INSERT", "UPDATE":
		var row T
		if !decodeRecord(event.Record, &row) {
			return rows
		}
		target := id(row)
		for i, existing := range rows {
			if id(existing) == target {
				out := make([]T, len(rows))
				copy(out, rows)
				out[i] = row
				return out
			}
		}
		return append([]T{row}, rows...)
	default:
		return rows
	}
}

func recordID(record map[string]any) string {
	if record == nil {
		return ""
	}
	s, _ := record["id"].(string)
	return s
}

func decodeRecord(record map[string]any, v any) bool {
	if record == nil {
		return false
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
