package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// Repositories is an in-memory store bundle with the same transition semantics
// as the Postgres adapter. Used for local runs and tests.
type Repositories struct {
	Purchases  *PurchaseRepository
	GrantQueue *GrantQueueRepository
	Outbox     *OutboxRepository
	Dedup      *NotificationDedupRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Purchases: &PurchaseRepository{
			bySession: make(map[string]domain.PurchaseRecord),
		},
		GrantQueue: &GrantQueueRepository{
			tasks: make(map[string]ports.GrantTask),
		},
		Outbox: &OutboxRepository{},
		Dedup: &NotificationDedupRepository{
			records: make(map[string]dedupRecord),
		},
	}
}

type PurchaseRepository struct {
	mu        sync.RWMutex
	bySession map[string]domain.PurchaseRecord
}

func (r *PurchaseRepository) Create(_ context.Context, record domain.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySession[record.ProcessorSessionID]; ok {
		return nil
	}
	if record.PurchaseID == "" {
		record.PurchaseID = uuid.NewString()
	}
	r.bySession[record.ProcessorSessionID] = record
	return nil
}

func (r *PurchaseRepository) GetBySessionID(_ context.Context, sessionID string) (domain.PurchaseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.bySession[sessionID]
	if !ok {
		return domain.PurchaseRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (r *PurchaseRepository) HasCompleted(_ context.Context, eventID, userEmail string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completedPairLocked(eventID, userEmail, ""), nil
}

func (r *PurchaseRepository) Complete(_ context.Context, sessionID, paymentID string, chargedAmount float64, at time.Time) (domain.PurchaseRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.bySession[sessionID]
	if !ok {
		return domain.PurchaseRecord{}, false, domain.ErrNotFound
	}
	if record.Terminal() {
		return record, false, nil
	}
	if r.completedPairLocked(record.EventID, record.UserEmail, sessionID) {
		return domain.PurchaseRecord{}, false, domain.ErrAlreadyCompleted
	}
	record.Status = domain.PurchaseStatusCompleted
	record.ProcessorPaymentID = paymentID
	record.Amount = chargedAmount
	completedAt := at
	record.CompletedAt = &completedAt
	r.bySession[sessionID] = record
	return record, true, nil
}

func (r *PurchaseRepository) FailByPaymentID(_ context.Context, paymentID, reason string, at time.Time) (domain.PurchaseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, record := range r.bySession {
		if record.ProcessorPaymentID != paymentID {
			continue
		}
		return r.failLocked(sessionID, record, reason, at), nil
	}
	return domain.PurchaseRecord{}, domain.ErrNotFound
}

func (r *PurchaseRepository) FailBySessionID(_ context.Context, sessionID, reason string, at time.Time) (domain.PurchaseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.bySession[sessionID]
	if !ok {
		return domain.PurchaseRecord{}, domain.ErrNotFound
	}
	return r.failLocked(sessionID, record, reason, at), nil
}

func (r *PurchaseRepository) ListByUser(_ context.Context, userEmail string, limit, offset int) ([]domain.PurchaseRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	filtered := make([]domain.PurchaseRecord, 0)
	for _, record := range r.bySession {
		if record.UserEmail == userEmail {
			filtered = append(filtered, record)
		}
	}
	slices.SortFunc(filtered, func(a, b domain.PurchaseRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := len(filtered)
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(filtered) {
		return []domain.PurchaseRecord{}, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	out := make([]domain.PurchaseRecord, end-offset)
	copy(out, filtered[offset:end])
	return out, total, nil
}

func (r *PurchaseRepository) completedPairLocked(eventID, userEmail, excludeSession string) bool {
	for sessionID, record := range r.bySession {
		if sessionID == excludeSession {
			continue
		}
		if record.EventID == eventID && record.UserEmail == userEmail && record.Status == domain.PurchaseStatusCompleted {
			return true
		}
	}
	return false
}

func (r *PurchaseRepository) failLocked(sessionID string, record domain.PurchaseRecord, reason string, at time.Time) domain.PurchaseRecord {
	if record.Terminal() {
		return record
	}
	record.Status = domain.PurchaseStatusFailed
	record.FailureReason = reason
	failedAt := at
	record.CompletedAt = &failedAt
	r.bySession[sessionID] = record
	return record
}

type GrantQueueRepository struct {
	mu    sync.Mutex
	tasks map[string]ports.GrantTask
}

func (r *GrantQueueRepository) Enqueue(_ context.Context, task ports.GrantTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	r.tasks[task.TaskID] = task
	return nil
}

func (r *GrantQueueRepository) FetchPending(_ context.Context, limit int) ([]ports.GrantTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make([]ports.GrantTask, 0)
	for _, task := range r.tasks {
		if task.Status == "pending" {
			pending = append(pending, task)
		}
	}
	slices.SortFunc(pending, func(a, b ports.GrantTask) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *GrantQueueRepository) MarkGranted(_ context.Context, taskID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.Status = "granted"
	grantedAt := at
	task.GrantedAt = &grantedAt
	triedAt := at
	task.LastTriedAt = &triedAt
	r.tasks[taskID] = task
	return nil
}

func (r *GrantQueueRepository) MarkFailed(_ context.Context, taskID, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.RetryCount++
	task.LastError = errMsg
	triedAt := at
	task.LastTriedAt = &triedAt
	r.tasks[taskID] = task
	return nil
}

type OutboxRepository struct {
	mu      sync.Mutex
	records []ports.OutboxRecord
}

func (r *OutboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      slices.Clone(event.Payload),
		CreatedAt:    event.OccurredAt,
	})
	return nil
}

func (r *OutboxRepository) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.OutboxRecord, 0)
	for _, record := range r.records {
		if record.PublishedAt == nil {
			out = append(out, record)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].OutboxID == outboxID {
			publishedAt := at
			r.records[i].PublishedAt = &publishedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].OutboxID == outboxID {
			r.records[i].RetryCount++
			r.records[i].LastError = errMsg
			errorAt := at
			r.records[i].LastErrorAt = &errorAt
			return nil
		}
	}
	return domain.ErrNotFound
}

type dedupRecord struct {
	NotificationType string
	ExpiresAt        time.Time
}

type NotificationDedupRepository struct {
	mu      sync.Mutex
	records map[string]dedupRecord
}

func (r *NotificationDedupRepository) IsDuplicate(_ context.Context, notificationID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[notificationID]
	if !ok {
		return false, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, notificationID)
		return false, nil
	}
	return true, nil
}

func (r *NotificationDedupRepository) MarkProcessed(_ context.Context, notificationID, notificationType string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[notificationID] = dedupRecord{NotificationType: notificationType, ExpiresAt: expiresAt}
	return nil
}
