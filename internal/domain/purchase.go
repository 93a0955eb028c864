package domain

import (
	"fmt"
	"strings"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// PurchaseRecord is a ledger entry for a single checkout attempt. Records are
// append-mostly: created pending, transitioned exactly once to a terminal
// state, never deleted.
type PurchaseRecord struct {
	PurchaseID         string         `json:"purchase_id"`
	EventID            string         `json:"event_id"`
	UserEmail          string         `json:"user_email"`
	ProcessorSessionID string         `json:"processor_session_id"`
	ProcessorPaymentID string         `json:"processor_payment_id,omitempty"`
	Status             PurchaseStatus `json:"status"`
	Amount             float64        `json:"amount"`
	Currency           string         `json:"currency"`
	FailureReason      string         `json:"failure_reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// Terminal reports whether the record's status admits no further transitions.
func (p PurchaseRecord) Terminal() bool {
	return p.Status == PurchaseStatusCompleted || p.Status == PurchaseStatusFailed
}

// CanTransitionTo enforces the pending -> completed|failed state machine.
func (p PurchaseRecord) CanTransitionTo(next PurchaseStatus) bool {
	if p.Terminal() {
		return false
	}
	return next == PurchaseStatusCompleted || next == PurchaseStatusFailed
}

// AccessDecision is derived from ledger state on demand and never persisted.
type AccessDecision struct {
	HasAccess bool   `json:"has_access"`
	EventID   string `json:"event_id"`
}

// ValidateCheckoutInput checks identity before anything else: an anonymous
// caller learns nothing about the request body's validity.
func ValidateCheckoutInput(eventID, userEmail string) error {
	if strings.TrimSpace(userEmail) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("%w: event_id is required", ErrInvalidInput)
	}
	return nil
}
