package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/brightcast/ppv-access-service/internal/contracts"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/metrics"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// HandleNotification consumes a processor webhook. Authenticity is checked
// before anything else; a bad signature rejects the delivery with no state
// mutation. Recognized notification types transition the ledger, everything
// else is acknowledged untouched.
func (s *Service) HandleNotification(ctx context.Context, rawPayload []byte, signatureHeader string) error {
	if err := s.verifier.Verify(rawPayload, signatureHeader); err != nil {
		metrics.WebhooksRejected.Inc()
		slog.Default().WarnContext(ctx, "webhook signature verification failed",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "handle_notification",
			"outcome", "rejected",
			"security_event", true,
			"error", err,
		)
		return domain.ErrInvalidSignature
	}

	var notification contracts.ProcessorNotification
	if err := json.Unmarshal(rawPayload, &notification); err != nil {
		return fmt.Errorf("%w: decode notification: %v", domain.ErrInvalidInput, err)
	}

	now := s.nowFn()
	if notification.NotificationID != "" {
		dup, err := s.dedup.IsDuplicate(ctx, notification.NotificationID, now)
		if err != nil {
			return fmt.Errorf("notification dedup check: %w", err)
		}
		if dup {
			return nil
		}
	}

	switch notification.Type {
	case contracts.NotificationCheckoutCompleted:
		var data contracts.CheckoutCompletedData
		if err := json.Unmarshal(notification.Data, &data); err != nil {
			return fmt.Errorf("%w: decode checkout completion: %v", domain.ErrInvalidInput, err)
		}
		if err := s.fulfillCheckout(ctx, data, now); err != nil {
			return err
		}
	case contracts.NotificationPaymentFailed:
		var data contracts.PaymentFailedData
		if err := json.Unmarshal(notification.Data, &data); err != nil {
			return fmt.Errorf("%w: decode payment failure: %v", domain.ErrInvalidInput, err)
		}
		s.recordPaymentFailure(ctx, data, now)
	default:
		slog.Default().InfoContext(ctx, "notification type not handled",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "handle_notification",
			"outcome", "ignored",
			"notification_type", notification.Type,
		)
	}

	if notification.NotificationID != "" {
		if err := s.dedup.MarkProcessed(ctx, notification.NotificationID, notification.Type, now.Add(s.cfg.NotificationTTL)); err != nil {
			slog.Default().WarnContext(ctx, "failed to record processed notification",
				"service", s.cfg.ServiceName,
				"module", "application",
				"layer", "application",
				"operation", "handle_notification",
				"outcome", "degraded",
				"notification_id", notification.NotificationID,
				"error", err,
			)
		}
	}
	metrics.WebhooksProcessed.WithLabelValues(notification.Type).Inc()
	return nil
}

// fulfillCheckout applies the pending->completed transition for the session
// and triggers the downstream access grant. The ledger transition stands even
// when the grant call fails; the grant queue reconciles out-of-band.
func (s *Service) fulfillCheckout(ctx context.Context, data contracts.CheckoutCompletedData, now time.Time) error {
	chargedAmount := float64(data.AmountTotal) / 100

	record, transitioned, err := s.purchases.Complete(ctx, data.SessionID, data.PaymentID, chargedAmount, now)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Notification delivery raced ahead of the orchestrator's own pending
		// write, or that write was lost. Synthesize the pending record from
		// correlation metadata and complete it immediately.
		if data.Metadata.EventID == "" || data.Metadata.UserEmail == "" {
			return fmt.Errorf("%w: completion for unknown session %s without correlation metadata", domain.ErrInvalidInput, data.SessionID)
		}
		currency := data.Currency
		if currency == "" {
			currency = s.cfg.DefaultCurrency
		}
		if err := s.purchases.Create(ctx, domain.PurchaseRecord{
			PurchaseID:         uuid.NewString(),
			EventID:            data.Metadata.EventID,
			UserEmail:          data.Metadata.UserEmail,
			ProcessorSessionID: data.SessionID,
			Status:             domain.PurchaseStatusPending,
			Amount:             chargedAmount,
			Currency:           currency,
			CreatedAt:          now,
		}); err != nil {
			return fmt.Errorf("upsert pending record for session %s: %w", data.SessionID, err)
		}
		record, transitioned, err = s.purchases.Complete(ctx, data.SessionID, data.PaymentID, chargedAmount, now)
		if err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
			return fmt.Errorf("complete upserted session %s: %w", data.SessionID, err)
		}
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			s.settleDuplicateCompletion(ctx, data.SessionID, now)
			return nil
		}
	case errors.Is(err, domain.ErrAlreadyCompleted):
		s.settleDuplicateCompletion(ctx, data.SessionID, now)
		return nil
	case err != nil:
		return fmt.Errorf("complete session %s: %w", data.SessionID, err)
	}

	if !transitioned {
		// Redelivery of a completion for an already-terminal record: the
		// earlier delivery owns the side effects.
		return nil
	}

	s.enqueuePurchaseEvent(ctx, contracts.EventTypePurchaseCompleted, record.EventID, contracts.PurchaseCompletedPayload{
		PurchaseID: record.PurchaseID,
		EventID:    record.EventID,
		UserEmail:  record.UserEmail,
		Amount:     record.Amount,
		Currency:   record.Currency,
		OccurredAt: now,
	})

	task := ports.GrantTask{
		TaskID:    uuid.NewString(),
		EventID:   record.EventID,
		UserEmail: record.UserEmail,
		Status:    "pending",
		CreatedAt: now,
	}
	if err := s.grants.Enqueue(ctx, task); err != nil {
		slog.Default().ErrorContext(ctx, "failed to enqueue access grant",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "fulfill_checkout",
			"outcome", "degraded",
			"event_id", record.EventID,
			"error", err,
		)
	}
	// Attempt the grant inline so the happy path gets immediate access; a
	// failure here never fails the purchase.
	if err := s.stream.GrantAccess(ctx, record.UserEmail, record.EventID); err != nil {
		metrics.GrantFailures.Inc()
		slog.Default().WarnContext(ctx, "stream access grant failed; queued for retry",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "fulfill_checkout",
			"outcome", "degraded",
			"event_id", record.EventID,
			"error", err,
		)
	} else if err := s.grants.MarkGranted(ctx, task.TaskID, s.nowFn()); err != nil {
		slog.Default().WarnContext(ctx, "failed to mark grant task granted",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "fulfill_checkout",
			"outcome", "degraded",
			"task_id", task.TaskID,
			"error", err,
		)
	}

	metrics.PurchasesCompleted.Inc()
	return nil
}

// settleDuplicateCompletion handles the loser of the one-completed-per-pair
// race: the session's record settles as failed so it stays auditable without
// a second completed entry.
func (s *Service) settleDuplicateCompletion(ctx context.Context, sessionID string, now time.Time) {
	if _, err := s.purchases.FailBySessionID(ctx, sessionID, "duplicate purchase for event/user pair", now); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Default().WarnContext(ctx, "failed to settle duplicate completion",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "fulfill_checkout",
			"outcome", "degraded",
			"processor_session_id", sessionID,
			"error", err,
		)
	}
}

func (s *Service) recordPaymentFailure(ctx context.Context, data contracts.PaymentFailedData, now time.Time) {
	record, err := s.purchases.FailByPaymentID(ctx, data.PaymentID, data.Reason, now)
	if errors.Is(err, domain.ErrNotFound) && data.SessionID != "" {
		// Pending records carry no payment id until completion; fall back to
		// the session correlation when the processor provides it.
		record, err = s.purchases.FailBySessionID(ctx, data.SessionID, data.Reason, now)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Default().InfoContext(ctx, "payment failure for unknown payment id",
				"service", s.cfg.ServiceName,
				"module", "application",
				"layer", "application",
				"operation", "record_payment_failure",
				"outcome", "noop",
				"processor_payment_id", data.PaymentID,
			)
			return
		}
		slog.Default().ErrorContext(ctx, "failed to record payment failure",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "record_payment_failure",
			"outcome", "failure",
			"processor_payment_id", data.PaymentID,
			"error", err,
		)
		return
	}
	if record.Status != domain.PurchaseStatusFailed {
		// A completed record stays completed; a late failure notification for
		// it never rolls the ledger back.
		return
	}
	s.enqueuePurchaseEvent(ctx, contracts.EventTypePurchaseFailed, record.EventID, contracts.PurchaseFailedPayload{
		PurchaseID: record.PurchaseID,
		EventID:    record.EventID,
		UserEmail:  record.UserEmail,
		Reason:     data.Reason,
		OccurredAt: now,
	})
}

func (s *Service) enqueuePurchaseEvent(ctx context.Context, eventType, partitionKey string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   s.nowFn(),
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to enqueue outbox event",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "enqueue_purchase_event",
			"outcome", "degraded",
			"event_type", eventType,
			"error", err,
		)
	}
}
