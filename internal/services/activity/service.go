// Package activity records and serves the per-user activity log.
package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// DefaultPageSize bounds activity listings when the caller does not ask for
// a specific page size.
const DefaultPageSize = 20

// Locator resolves the caller's public IP and geography. Implementations are
// best-effort: a failed lookup degrades to placeholder values rather than an
// error surfaced to the user.
type Locator interface {
	Locate(ctx context.Context) (activity.Location, error)
}

// Service appends audit entries and serves paged history.
type Service struct {
	store   storage.ActivityStore
	locator Locator
	log     *logger.Logger
}

// New constructs the activity service. A nil locator disables geo
// enrichment; entries then carry placeholder location fields.
func New(store storage.ActivityStore, locator Locator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("activity")
	}
	return &Service{store: store, locator: locator, log: log}
}

// Record appends one entry, enriching it with the caller's location. Geo
// failures never block the write.
func (s *Service) Record(ctx context.Context, userID, event, description string) (activity.Entry, error) {
	userID = strings.TrimSpace(userID)
	event = strings.TrimSpace(event)
	if userID == "" {
		return activity.Entry{}, fmt.Errorf("user_id is required")
	}
	if event == "" {
		return activity.Entry{}, fmt.Errorf("event is required")
	}

	loc := activity.UnknownLocation()
	if s.locator != nil {
		if located, err := s.locator.Locate(ctx); err != nil {
			s.log.WithError(err).Debug("activity geo lookup failed")
		} else {
			loc = located
		}
	}

	entry := activity.Entry{
		UserID:      userID,
		Event:       event,
		Description: description,
		IP:          loc.IP,
		City:        loc.City,
		Region:      loc.Region,
		Country:     loc.Country,
	}
	entry, err := s.store.AppendActivity(ctx, entry)
	if err != nil {
		return activity.Entry{}, fmt.Errorf("append activity: %w", err)
	}
	s.log.WithField("user_id", userID).
		WithField("event", event).
		Debug("activity recorded")
	return entry, nil
}

// List returns one page of a user's history, newest first, plus the total
// row count for pagination.
func (s *Service) List(ctx context.Context, userID string, offset, limit int) ([]activity.Entry, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, fmt.Errorf("user_id is required")
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return s.store.ListActivity(ctx, userID, offset, limit)
}

// Recent returns the newest entries across all users, for the admin feed.
func (s *Service) Recent(ctx context.Context, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return s.store.ListRecentActivity(ctx, limit)
}
