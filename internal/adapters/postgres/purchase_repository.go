package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"gorm.io/gorm"
)

type purchaseRepository struct {
	db *gorm.DB
}

func (r *purchaseRepository) Create(ctx context.Context, record domain.PurchaseRecord) error {
	rec, err := toPurchaseModel(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			// A record for this session already exists; creation is an upsert
			// from the caller's perspective.
			return nil
		}
		return err
	}
	return nil
}

func (r *purchaseRepository) GetBySessionID(ctx context.Context, sessionID string) (domain.PurchaseRecord, error) {
	var rec purchaseModel
	if err := r.db.WithContext(ctx).Where("processor_session_id = ?", sessionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PurchaseRecord{}, domain.ErrNotFound
		}
		return domain.PurchaseRecord{}, err
	}
	return toPurchaseRecord(rec), nil
}

func (r *purchaseRepository) HasCompleted(ctx context.Context, eventID, userEmail string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&purchaseModel{}).
		Where("event_id = ?", eventID).
		Where("user_email = ?", userEmail).
		Where("status = ?", string(domain.PurchaseStatusCompleted)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *purchaseRepository) Complete(ctx context.Context, sessionID, paymentID string, chargedAmount float64, at time.Time) (domain.PurchaseRecord, bool, error) {
	// The conditional update serializes concurrent deliveries for the same
	// session: only the caller that observes status=pending performs the
	// transition. The partial unique index on (event_id, user_email) rejects a
	// second completed record for the pair as a duplicated key.
	res := r.db.WithContext(ctx).
		Model(&purchaseModel{}).
		Where("processor_session_id = ?", sessionID).
		Where("status = ?", string(domain.PurchaseStatusPending)).
		Updates(map[string]any{
			"status":               string(domain.PurchaseStatusCompleted),
			"processor_payment_id": paymentID,
			"amount":               chargedAmount,
			"completed_at":         at,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.PurchaseRecord{}, false, domain.ErrAlreadyCompleted
		}
		return domain.PurchaseRecord{}, false, res.Error
	}

	record, err := r.GetBySessionID(ctx, sessionID)
	if err != nil {
		return domain.PurchaseRecord{}, false, err
	}
	return record, res.RowsAffected > 0, nil
}

func (r *purchaseRepository) FailByPaymentID(ctx context.Context, paymentID, reason string, at time.Time) (domain.PurchaseRecord, error) {
	return r.fail(ctx, "processor_payment_id = ?", paymentID, reason, at)
}

func (r *purchaseRepository) FailBySessionID(ctx context.Context, sessionID, reason string, at time.Time) (domain.PurchaseRecord, error) {
	return r.fail(ctx, "processor_session_id = ?", sessionID, reason, at)
}

func (r *purchaseRepository) fail(ctx context.Context, cond, value, reason string, at time.Time) (domain.PurchaseRecord, error) {
	res := r.db.WithContext(ctx).
		Model(&purchaseModel{}).
		Where(cond, value).
		Where("status = ?", string(domain.PurchaseStatusPending)).
		Updates(map[string]any{
			"status":         string(domain.PurchaseStatusFailed),
			"failure_reason": reason,
			"completed_at":   at,
		})
	if res.Error != nil {
		return domain.PurchaseRecord{}, res.Error
	}

	var rec purchaseModel
	if err := r.db.WithContext(ctx).Where(cond, value).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PurchaseRecord{}, domain.ErrNotFound
		}
		return domain.PurchaseRecord{}, err
	}
	return toPurchaseRecord(rec), nil
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userEmail string, limit, offset int) ([]domain.PurchaseRecord, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&purchaseModel{}).
		Where("user_email = ?", userEmail).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []purchaseModel
	if err := r.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]domain.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toPurchaseRecord(row))
	}
	return records, int(total), nil
}

func toPurchaseModel(record domain.PurchaseRecord) (purchaseModel, error) {
	purchaseID := uuid.Nil
	if record.PurchaseID != "" {
		parsed, err := uuid.Parse(record.PurchaseID)
		if err != nil {
			return purchaseModel{}, err
		}
		purchaseID = parsed
	}
	rec := purchaseModel{
		PurchaseID:         purchaseID,
		EventID:            record.EventID,
		UserEmail:          record.UserEmail,
		ProcessorSessionID: record.ProcessorSessionID,
		Status:             string(record.Status),
		Amount:             record.Amount,
		Currency:           record.Currency,
		CreatedAt:          record.CreatedAt,
		CompletedAt:        record.CompletedAt,
	}
	if record.ProcessorPaymentID != "" {
		paymentID := record.ProcessorPaymentID
		rec.ProcessorPaymentID = &paymentID
	}
	if record.FailureReason != "" {
		reason := record.FailureReason
		rec.FailureReason = &reason
	}
	return rec, nil
}

func toPurchaseRecord(rec purchaseModel) domain.PurchaseRecord {
	record := domain.PurchaseRecord{
		PurchaseID:         rec.PurchaseID.String(),
		EventID:            rec.EventID,
		UserEmail:          rec.UserEmail,
		ProcessorSessionID: rec.ProcessorSessionID,
		Status:             domain.PurchaseStatus(rec.Status),
		Amount:             rec.Amount,
		Currency:           rec.Currency,
		CreatedAt:          rec.CreatedAt,
		CompletedAt:        rec.CompletedAt,
	}
	if rec.ProcessorPaymentID != nil {
		record.ProcessorPaymentID = *rec.ProcessorPaymentID
	}
	if rec.FailureReason != nil {
		record.FailureReason = *rec.FailureReason
	}
	return record
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
