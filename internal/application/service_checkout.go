package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/metrics"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// InitiateCheckout validates purchase eligibility, creates a processor
// checkout session for exactly one line item and persists a pending ledger
// record before handing the redirect URL back to the caller.
func (s *Service) InitiateCheckout(ctx context.Context, identity ports.Identity, input CheckoutInput) (CheckoutOutput, error) {
	if err := domain.ValidateCheckoutInput(input.EventID, identity.Email); err != nil {
		return CheckoutOutput{}, err
	}

	event, err := s.eventByID(ctx, input.EventID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if err := event.Purchasable(); err != nil {
		return CheckoutOutput{}, err
	}

	owned, err := s.purchases.HasCompleted(ctx, event.EventID, identity.Email)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("check existing access: %w", err)
	}
	if owned {
		return CheckoutOutput{}, domain.ErrAlreadyOwned
	}

	currency := event.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	now := s.nowFn()
	session, err := s.processor.CreateCheckoutSession(ctx, ports.CheckoutSessionParams{
		EventID:         event.EventID,
		EventTitle:      event.Title,
		UserEmail:       identity.Email,
		AmountMinorUnit: event.PriceMinorUnits(),
		Currency:        currency,
		SuccessURL:      s.cfg.SuccessURLBase + "/" + event.EventID,
		CancelURL:       s.cfg.CancelURLBase + "/" + event.EventID,
		ExpiresAt:       now.Add(s.cfg.CheckoutExpiry),
	})
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: %v", domain.ErrProcessorUnavailable, err)
	}

	record := domain.PurchaseRecord{
		PurchaseID:         uuid.NewString(),
		EventID:            event.EventID,
		UserEmail:          identity.Email,
		ProcessorSessionID: session.SessionID,
		Status:             domain.PurchaseStatusPending,
		Amount:             event.Price,
		Currency:           currency,
		CreatedAt:          now,
	}
	if err := s.purchases.Create(ctx, record); err != nil {
		// The processor session already exists and remains fulfillable: the
		// fulfillment handler upserts on completion, so a failed pending
		// write must not strand the session or the caller.
		slog.Default().ErrorContext(ctx, "pending ledger write failed after session creation",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "initiate_checkout",
			"outcome", "degraded",
			"event_id", event.EventID,
			"processor_session_id", session.SessionID,
			"error", err,
		)
	}

	metrics.CheckoutsInitiated.Inc()
	return CheckoutOutput{
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
	}, nil
}
