package ports

import (
	"context"
	"time"

	"github.com/brightcast/ppv-access-service/internal/domain"
)

// PurchaseRepository is the durable access ledger. Transitions are conditional
// on the current status so duplicate webhook deliveries serialize per session
// id: only one caller wins the pending->terminal update, the loser observes
// the already-terminal state.
type PurchaseRepository interface {
	Create(ctx context.Context, record domain.PurchaseRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (domain.PurchaseRecord, error)
	// HasCompleted reports whether a completed record exists for the pair.
	// Reads must observe the latest committed write; access gating depends on it.
	HasCompleted(ctx context.Context, eventID, userEmail string) (bool, error)
	// Complete applies pending->completed for the session, stamping the
	// processor payment id, the actual charged amount and completed_at. The
	// boolean reports whether this call performed the transition; a false
	// result with nil error means the record was already terminal (idempotent
	// redelivery) and downstream side effects must not reapply. Returns
	// domain.ErrNotFound when no record exists for the session and
	// domain.ErrAlreadyCompleted when a completed record already exists for
	// the same (event, user) pair.
	Complete(ctx context.Context, sessionID, paymentID string, chargedAmount float64, at time.Time) (domain.PurchaseRecord, bool, error)
	// FailByPaymentID applies pending->failed for the record carrying the
	// processor payment id. Returns domain.ErrNotFound when nothing matches.
	FailByPaymentID(ctx context.Context, paymentID, reason string, at time.Time) (domain.PurchaseRecord, error)
	// FailBySessionID is used when a duplicate-purchase completion loses the
	// one-completed-per-pair race and must settle in a terminal state.
	FailBySessionID(ctx context.Context, sessionID, reason string, at time.Time) (domain.PurchaseRecord, error)
	ListByUser(ctx context.Context, userEmail string, limit, offset int) ([]domain.PurchaseRecord, int, error)
}

// GrantTask is a queued stream-provider access grant. Grants are decoupled
// from ledger completion: the ledger is the authority, the provider ACL is
// reconciled out-of-band.
type GrantTask struct {
	TaskID      string
	EventID     string
	UserEmail   string
	Status      string
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	GrantedAt   *time.Time
	LastTriedAt *time.Time
}

type GrantQueueRepository interface {
	Enqueue(ctx context.Context, task GrantTask) error
	// FetchPending returns tasks still awaiting a successful grant call.
	FetchPending(ctx context.Context, limit int) ([]GrantTask, error)
	MarkGranted(ctx context.Context, taskID string, at time.Time) error
	MarkFailed(ctx context.Context, taskID, errMsg string, at time.Time) error
}

// NotificationDedupRepository records processed processor notification ids so
// redelivered webhooks become no-op acks.
type NotificationDedupRepository interface {
	IsDuplicate(ctx context.Context, notificationID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, notificationID, notificationType string, expiresAt time.Time) error
}
