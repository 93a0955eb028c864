package contracts

import (
	"encoding/json"
	"time"
)

// Processor notification types the fulfillment handler dispatches on.
// Anything else is acknowledged without state change.
const (
	NotificationCheckoutCompleted = "checkout.session.completed"
	NotificationPaymentFailed     = "payment.failed"
)

// ProcessorNotification is the signed webhook envelope delivered by the
// payment processor.
type ProcessorNotification struct {
	NotificationID string          `json:"id"`
	Type           string          `json:"type"`
	CreatedAt      int64           `json:"created"`
	Data           json.RawMessage `json:"data"`
}

// CheckoutCompletedData carries the session outcome plus the correlation
// metadata attached at session creation.
type CheckoutCompletedData struct {
	SessionID     string               `json:"session_id"`
	PaymentID     string               `json:"payment_id"`
	AmountTotal   int64                `json:"amount_total"`
	Currency      string               `json:"currency"`
	CustomerEmail string               `json:"customer_email"`
	Metadata      NotificationMetadata `json:"metadata"`
}

type NotificationMetadata struct {
	EventID   string `json:"event_id"`
	UserEmail string `json:"user_email"`
	Kind      string `json:"kind"`
}

type PaymentFailedData struct {
	PaymentID string `json:"payment_id"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Purchase lifecycle events published to the broker through the outbox.
const (
	EventTypePurchaseCompleted = "ppv.purchase.completed"
	EventTypePurchaseFailed    = "ppv.purchase.failed"
)

type PurchaseCompletedPayload struct {
	PurchaseID string    `json:"purchase_id"`
	EventID    string    `json:"event_id"`
	UserEmail  string    `json:"user_email"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PurchaseFailedPayload struct {
	PurchaseID string    `json:"purchase_id"`
	EventID    string    `json:"event_id"`
	UserEmail  string    `json:"user_email"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
