package application

import (
	"time"

	"github.com/brightcast/ppv-access-service/internal/ports"
)

type Config struct {
	ServiceName     string
	DefaultCurrency string
	CheckoutExpiry  time.Duration
	NotificationTTL time.Duration
	EventCacheTTL   time.Duration
	SuccessURLBase  string
	CancelURLBase   string
}

type CheckoutInput struct {
	EventID string
}

type CheckoutOutput struct {
	SessionID   string
	RedirectURL string
}

type StreamAuthorization struct {
	EventID   string
	StreamURL string
}

type Service struct {
	cfg       Config
	purchases ports.PurchaseRepository
	grants    ports.GrantQueueRepository
	dedup     ports.NotificationDedupRepository
	outbox    ports.OutboxRepository
	catalog   ports.EventCatalog
	cache     ports.EventCache
	processor ports.PaymentProcessor
	stream    ports.StreamProvider
	verifier  ports.NotificationVerifier
	nowFn     func() time.Time
}

type Dependencies struct {
	Config    Config
	Purchases ports.PurchaseRepository
	Grants    ports.GrantQueueRepository
	Dedup     ports.NotificationDedupRepository
	Outbox    ports.OutboxRepository
	Catalog   ports.EventCatalog
	Cache     ports.EventCache
	Processor ports.PaymentProcessor
	Stream    ports.StreamProvider
	Verifier  ports.NotificationVerifier
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ppv-access-service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.CheckoutExpiry <= 0 {
		cfg.CheckoutExpiry = 30 * time.Minute
	}
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = 7 * 24 * time.Hour
	}
	if cfg.EventCacheTTL <= 0 {
		cfg.EventCacheTTL = 30 * time.Second
	}
	return &Service{
		cfg:       cfg,
		purchases: deps.Purchases,
		grants:    deps.Grants,
		dedup:     deps.Dedup,
		outbox:    deps.Outbox,
		catalog:   deps.Catalog,
		cache:     deps.Cache,
		processor: deps.Processor,
		stream:    deps.Stream,
		verifier:  deps.Verifier,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}
