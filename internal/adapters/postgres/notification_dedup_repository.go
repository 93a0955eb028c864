package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type NotificationDedupRepository struct {
	db *gorm.DB
}

func (r *NotificationDedupRepository) IsDuplicate(ctx context.Context, notificationID string, now time.Time) (bool, error) {
	var rec processedNotificationModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if now.After(rec.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

func (r *NotificationDedupRepository) MarkProcessed(ctx context.Context, notificationID, notificationType string, expiresAt time.Time) error {
	rec := processedNotificationModel{
		NotificationID:   notificationID,
		NotificationType: notificationType,
		ProcessedAt:      time.Now().UTC(),
		ExpiresAt:        expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// PruneExpired removes dedup entries past their retention window.
func (r *NotificationDedupRepository) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&processedNotificationModel{})
	return res.RowsAffected, res.Error
}
