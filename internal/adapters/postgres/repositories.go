package postgres

import (
	"github.com/brightcast/ppv-access-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Purchases  ports.PurchaseRepository
	GrantQueue ports.GrantQueueRepository
	Outbox     ports.OutboxRepository
	Dedup      *NotificationDedupRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Purchases:  &purchaseRepository{db: db},
		GrantQueue: &grantQueueRepository{db: db},
		Outbox:     &outboxRepository{db: db},
		Dedup:      &NotificationDedupRepository{db: db},
	}
}
