package application

import (
	"context"
	"log/slog"

	"github.com/brightcast/ppv-access-service/internal/domain"
)

// GetEvent reads a single event through the cache-aside path.
func (s *Service) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	return s.eventByID(ctx, eventID)
}

// ListEvents proxies the content store's public event listing. Listings are
// not cached; they change with every operator edit and stay cheap upstream.
func (s *Service) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.catalog.ListEvents(ctx)
}

// eventByID resolves an event via the short-TTL cache. Cache errors degrade
// to a direct catalog read; the ledger is never behind this cache.
func (s *Service) eventByID(ctx context.Context, eventID string) (domain.Event, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, eventID)
		if err != nil {
			slog.Default().WarnContext(ctx, "event cache read failed",
				"service", s.cfg.ServiceName,
				"module", "application",
				"layer", "application",
				"operation", "event_by_id",
				"outcome", "degraded",
				"event_id", eventID,
				"error", err,
			)
		} else if cached != nil {
			return *cached, nil
		}
	}

	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, event, s.cfg.EventCacheTTL); err != nil {
			slog.Default().WarnContext(ctx, "event cache write failed",
				"service", s.cfg.ServiceName,
				"module", "application",
				"layer", "application",
				"operation", "event_by_id",
				"outcome", "degraded",
				"event_id", eventID,
				"error", err,
			)
		}
	}
	return event, nil
}
