package ports

import (
	"context"
	"time"

	"github.com/brightcast/ppv-access-service/internal/domain"
)

// EventCache fronts the content store with a short TTL. Only event attributes
// are cached; ledger reads always hit the primary store.
type EventCache interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	Put(ctx context.Context, event domain.Event, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}
