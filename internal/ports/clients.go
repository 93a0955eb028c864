package ports

import (
	"context"
	"time"

	"github.com/brightcast/ppv-access-service/internal/domain"
)

// EventCatalog reads event attributes from the content store. The service
// never writes events.
type EventCatalog interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// CheckoutSessionParams describes the single line item and correlation
// metadata for a processor checkout session.
type CheckoutSessionParams struct {
	EventID         string
	EventTitle      string
	UserEmail       string
	AmountMinorUnit int64
	Currency        string
	SuccessURL      string
	CancelURL       string
	ExpiresAt       time.Time
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// PaymentProcessor creates hosted checkout sessions. Completion and failure
// arrive asynchronously as signed notifications, never as return values here.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error)
}

// StreamProvider is the live-video collaborator. GrantAccess is idempotent on
// the provider side; PlaybackURL output is opaque and not guaranteed stable
// across calls.
type StreamProvider interface {
	GrantAccess(ctx context.Context, userEmail, eventID string) error
	PlaybackURL(ctx context.Context, eventID string) (string, error)
}
