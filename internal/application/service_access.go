package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// EvaluateAccess decides ACCESS/NO_ACCESS from ledger state. It fails closed:
// a missing identity or any lookup error yields no access, never an error to
// the gating caller.
func (s *Service) EvaluateAccess(ctx context.Context, identity ports.Identity, eventID string) domain.AccessDecision {
	decision := domain.AccessDecision{EventID: eventID}
	if strings.TrimSpace(identity.Email) == "" || strings.TrimSpace(eventID) == "" {
		return decision
	}
	owned, err := s.purchases.HasCompleted(ctx, eventID, identity.Email)
	if err != nil {
		slog.Default().ErrorContext(ctx, "access lookup failed; denying",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "evaluate_access",
			"outcome", "fail_closed",
			"event_id", eventID,
			"error", err,
		)
		return decision
	}
	decision.HasAccess = owned
	return decision
}

// AuthorizeStream combines the access decision with live-status before
// handing back a playback URL. The URL is not persisted and is not guaranteed
// stable across calls.
func (s *Service) AuthorizeStream(ctx context.Context, identity ports.Identity, eventID string) (StreamAuthorization, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return StreamAuthorization{}, domain.ErrUnauthenticated
	}
	decision := s.EvaluateAccess(ctx, identity, eventID)
	if !decision.HasAccess {
		return StreamAuthorization{}, domain.ErrAccessDenied
	}

	event, err := s.eventByID(ctx, eventID)
	if err != nil {
		return StreamAuthorization{}, err
	}
	if event.StreamStatus != domain.StreamStatusLive {
		return StreamAuthorization{}, domain.ErrStreamNotLive
	}

	url, err := s.stream.PlaybackURL(ctx, eventID)
	if err != nil {
		return StreamAuthorization{}, fmt.Errorf("resolve playback url: %w", err)
	}
	return StreamAuthorization{EventID: eventID, StreamURL: url}, nil
}

// ListUserPurchases returns the caller's ledger entries, newest first.
func (s *Service) ListUserPurchases(ctx context.Context, identity ports.Identity, limit, offset int) ([]domain.PurchaseRecord, int, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, 0, domain.ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.purchases.ListByUser(ctx, identity.Email, limit, offset)
}
