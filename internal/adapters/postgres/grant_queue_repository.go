package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/brightcast/ppv-access-service/internal/ports"
	"gorm.io/gorm"
)

type grantQueueRepository struct {
	db *gorm.DB
}

func (r *grantQueueRepository) Enqueue(ctx context.Context, task ports.GrantTask) error {
	taskID := uuid.Nil
	if task.TaskID != "" {
		parsed, err := uuid.Parse(task.TaskID)
		if err != nil {
			return err
		}
		taskID = parsed
	}
	rec := grantTaskModel{
		TaskID:    taskID,
		EventID:   task.EventID,
		UserEmail: task.UserEmail,
		Status:    task.Status,
		CreatedAt: task.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *grantQueueRepository) FetchPending(ctx context.Context, limit int) ([]ports.GrantTask, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []grantTaskModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	tasks := make([]ports.GrantTask, 0, len(rows))
	for _, row := range rows {
		task := ports.GrantTask{
			TaskID:      row.TaskID.String(),
			EventID:     row.EventID,
			UserEmail:   row.UserEmail,
			Status:      row.Status,
			RetryCount:  row.RetryCount,
			CreatedAt:   row.CreatedAt,
			GrantedAt:   row.GrantedAt,
			LastTriedAt: row.LastTriedAt,
		}
		if row.LastError != nil {
			task.LastError = *row.LastError
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *grantQueueRepository) MarkGranted(ctx context.Context, taskID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&grantTaskModel{}).
		Where("task_id = ?", taskID).
		Where("status = ?", "pending").
		Updates(map[string]any{
			"status":        "granted",
			"granted_at":    at,
			"last_tried_at": at,
		}).Error
}

func (r *grantQueueRepository) MarkFailed(ctx context.Context, taskID, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&grantTaskModel{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    errMsg,
			"last_tried_at": at,
		}).Error
}
