package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the PPV access service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPublicKeyPEM string
	JWTIssuer       string

	CatalogBaseURL string
	CatalogAPIKey  string

	ProcessorBaseURL       string
	ProcessorSecretKey     string
	WebhookSigningSecret   string
	WebhookSignatureWindow time.Duration

	StreamBaseURL   string
	StreamAdminUser string
	StreamAdminPass string

	SuccessURLBase string
	CancelURLBase  string

	DefaultCurrency string
	CheckoutExpiry  time.Duration
	NotificationTTL time.Duration
	EventCacheTTL   time.Duration

	KafkaBrokers      []string
	KafkaDefaultTopic string

	MaxDBConns          int32
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	GrantPollInterval   time.Duration
	GrantBatchSize      int
	GrantMaxRetries     int
	DedupPruneInterval  time.Duration
	OutboundHTTPTimeout time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Catalog struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"catalog"`
	Processor struct {
		BaseURL         string `yaml:"base_url"`
		SuccessURL      string `yaml:"success_url"`
		CancelURL       string `yaml:"cancel_url"`
		DefaultCurrency string `yaml:"default_currency"`
	} `yaml:"processor"`
	Stream struct {
		BaseURL   string `yaml:"base_url"`
		AdminUser string `yaml:"admin_user"`
	} `yaml:"stream"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "ppv-access-service",
		HTTPPort:               8080,
		GRPCPort:               9090,
		WebhookSignatureWindow: 5 * time.Minute,
		SuccessURLBase:         "https://watch.brightcast.tv/purchase/success",
		CancelURLBase:          "https://watch.brightcast.tv/purchase/cancel",
		DefaultCurrency:        "usd",
		CheckoutExpiry:         30 * time.Minute,
		NotificationTTL:        7 * 24 * time.Hour,
		EventCacheTTL:          30 * time.Second,
		KafkaDefaultTopic:      "ppv.purchases",
		MaxDBConns:             20,
		OutboxPollInterval:     2 * time.Second,
		OutboxBatchSize:        100,
		GrantPollInterval:      15 * time.Second,
		GrantBatchSize:         50,
		GrantMaxRetries:        10,
		DedupPruneInterval:     time.Hour,
		OutboundHTTPTimeout:    8 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Catalog.BaseURL != "" {
			cfg.CatalogBaseURL = f.Catalog.BaseURL
		}
		if f.Catalog.APIKey != "" {
			cfg.CatalogAPIKey = f.Catalog.APIKey
		}
		if f.Processor.BaseURL != "" {
			cfg.ProcessorBaseURL = f.Processor.BaseURL
		}
		if f.Processor.SuccessURL != "" {
			cfg.SuccessURLBase = f.Processor.SuccessURL
		}
		if f.Processor.CancelURL != "" {
			cfg.CancelURLBase = f.Processor.CancelURL
		}
		if f.Processor.DefaultCurrency != "" {
			cfg.DefaultCurrency = f.Processor.DefaultCurrency
		}
		if f.Stream.BaseURL != "" {
			cfg.StreamBaseURL = f.Stream.BaseURL
		}
		if f.Stream.AdminUser != "" {
			cfg.StreamAdminUser = f.Stream.AdminUser
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.CatalogBaseURL = envOrDefault("CATALOG_BASE_URL", cfg.CatalogBaseURL)
	cfg.CatalogAPIKey = envOrDefault("CATALOG_API_KEY", cfg.CatalogAPIKey)
	cfg.ProcessorBaseURL = envOrDefault("PROCESSOR_BASE_URL", cfg.ProcessorBaseURL)
	cfg.ProcessorSecretKey = envOrDefault("PROCESSOR_SECRET_KEY", cfg.ProcessorSecretKey)
	cfg.WebhookSigningSecret = envOrDefault("WEBHOOK_SIGNING_SECRET", cfg.WebhookSigningSecret)
	cfg.StreamBaseURL = envOrDefault("STREAM_BASE_URL", cfg.StreamBaseURL)
	cfg.StreamAdminUser = envOrDefault("STREAM_ADMIN_USER", cfg.StreamAdminUser)
	cfg.StreamAdminPass = envOrDefault("STREAM_ADMIN_PASS", cfg.StreamAdminPass)
	cfg.SuccessURLBase = envOrDefault("CHECKOUT_SUCCESS_URL", cfg.SuccessURLBase)
	cfg.CancelURLBase = envOrDefault("CHECKOUT_CANCEL_URL", cfg.CancelURLBase)
	cfg.DefaultCurrency = strings.ToLower(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaDefaultTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaDefaultTopic)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.GrantBatchSize = envInt("GRANT_BATCH_SIZE", cfg.GrantBatchSize)
	cfg.GrantMaxRetries = envInt("GRANT_MAX_RETRIES", cfg.GrantMaxRetries)

	cfg.WebhookSignatureWindow = time.Duration(envInt("WEBHOOK_SIGNATURE_WINDOW_SECONDS", int(cfg.WebhookSignatureWindow.Seconds()))) * time.Second
	cfg.CheckoutExpiry = time.Duration(envInt("CHECKOUT_EXPIRY_MINUTES", int(cfg.CheckoutExpiry.Minutes()))) * time.Minute
	cfg.NotificationTTL = time.Duration(envInt("NOTIFICATION_TTL_HOURS", int(cfg.NotificationTTL.Hours()))) * time.Hour
	cfg.EventCacheTTL = time.Duration(envInt("EVENT_CACHE_TTL_SECONDS", int(cfg.EventCacheTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.GrantPollInterval = time.Duration(envInt("GRANT_POLL_SECONDS", int(cfg.GrantPollInterval.Seconds()))) * time.Second
	cfg.DedupPruneInterval = time.Duration(envInt("DEDUP_PRUNE_MINUTES", int(cfg.DedupPruneInterval.Minutes()))) * time.Minute
	cfg.OutboundHTTPTimeout = time.Duration(envInt("OUTBOUND_HTTP_TIMEOUT_SECONDS", int(cfg.OutboundHTTPTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTPublicKeyPEM == "" {
		return Config{}, fmt.Errorf("missing JWT_PUBLIC_KEY_PEM")
	}
	if cfg.WebhookSigningSecret == "" {
		return Config{}, fmt.Errorf("missing WEBHOOK_SIGNING_SECRET")
	}
	if cfg.CatalogBaseURL == "" {
		return Config{}, fmt.Errorf("missing CATALOG_BASE_URL")
	}
	if cfg.ProcessorBaseURL == "" || cfg.ProcessorSecretKey == "" {
		return Config{}, fmt.Errorf("missing PROCESSOR_BASE_URL or PROCESSOR_SECRET_KEY")
	}
	if cfg.StreamBaseURL == "" {
		return Config{}, fmt.Errorf("missing STREAM_BASE_URL")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
