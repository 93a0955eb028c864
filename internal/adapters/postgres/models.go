package postgres

import (
	"time"

	"github.com/google/uuid"
)

type purchaseModel struct {
	PurchaseID         uuid.UUID  `gorm:"column:purchase_id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID            string     `gorm:"column:event_id"`
	UserEmail          string     `gorm:"column:user_email"`
	ProcessorSessionID string     `gorm:"column:processor_session_id"`
	ProcessorPaymentID *string    `gorm:"column:processor_payment_id"`
	Status             string     `gorm:"column:status"`
	Amount             float64    `gorm:"column:amount"`
	Currency           string     `gorm:"column:currency"`
	FailureReason      *string    `gorm:"column:failure_reason"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

func (purchaseModel) TableName() string { return "ppv_purchases" }

type grantTaskModel struct {
	TaskID      uuid.UUID  `gorm:"column:task_id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string     `gorm:"column:event_id"`
	UserEmail   string     `gorm:"column:user_email"`
	Status      string     `gorm:"column:status"`
	RetryCount  int        `gorm:"column:retry_count"`
	LastError   *string    `gorm:"column:last_error"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	GrantedAt   *time.Time `gorm:"column:granted_at"`
	LastTriedAt *time.Time `gorm:"column:last_tried_at"`
}

func (grantTaskModel) TableName() string { return "access_grant_tasks" }

type outboxModel struct {
	OutboxID     uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload;type:jsonb"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "purchase_outbox" }

type processedNotificationModel struct {
	NotificationID   string    `gorm:"column:notification_id;primaryKey"`
	NotificationType string    `gorm:"column:notification_type"`
	ProcessedAt      time.Time `gorm:"column:processed_at"`
	ExpiresAt        time.Time `gorm:"column:expires_at"`
}

func (processedNotificationModel) TableName() string { return "processed_notifications" }
