package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	cacheadapter "github.com/brightcast/ppv-access-service/internal/adapters/cache"
	"github.com/brightcast/ppv-access-service/internal/adapters/catalog"
	eventadapter "github.com/brightcast/ppv-access-service/internal/adapters/events"
	grpcadapter "github.com/brightcast/ppv-access-service/internal/adapters/grpc"
	httpadapter "github.com/brightcast/ppv-access-service/internal/adapters/http"
	"github.com/brightcast/ppv-access-service/internal/adapters/payments"
	"github.com/brightcast/ppv-access-service/internal/adapters/postgres"
	"github.com/brightcast/ppv-access-service/internal/adapters/security"
	"github.com/brightcast/ppv-access-service/internal/adapters/stream"
	"github.com/brightcast/ppv-access-service/internal/application"
	"github.com/brightcast/ppv-access-service/internal/metrics"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	reconciler *eventadapter.GrantReconciler
	dedup      *postgres.NotificationDedupRepository
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping ppv access service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)
	metrics.Register()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init redis client: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	identity, err := security.NewJWTVerifier(cfg.JWTPublicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt verifier: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.OutboundHTTPTimeout}
	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.CatalogBaseURL,
		APIKey:     cfg.CatalogAPIKey,
		HTTPClient: httpClient,
	})
	processorClient := payments.NewClient(payments.Config{
		BaseURL:    cfg.ProcessorBaseURL,
		SecretKey:  cfg.ProcessorSecretKey,
		HTTPClient: httpClient,
	})
	streamClient := stream.NewClient(stream.Config{
		BaseURL:    cfg.StreamBaseURL,
		AdminUser:  cfg.StreamAdminUser,
		AdminPass:  cfg.StreamAdminPass,
		HTTPClient: httpClient,
	})

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:     cfg.ServiceID,
			DefaultCurrency: cfg.DefaultCurrency,
			CheckoutExpiry:  cfg.CheckoutExpiry,
			NotificationTTL: cfg.NotificationTTL,
			EventCacheTTL:   cfg.EventCacheTTL,
			SuccessURLBase:  cfg.SuccessURLBase,
			CancelURLBase:   cfg.CancelURLBase,
		},
		Purchases: repos.Purchases,
		Grants:    repos.GrantQueue,
		Dedup:     repos.Dedup,
		Outbox:    repos.Outbox,
		Catalog:   catalogClient,
		Cache:     cacheadapter.NewRedisEventCache(redisClient),
		Processor: processorClient,
		Stream:    streamClient,
		Verifier:  payments.NewSignatureVerifier(cfg.WebhookSigningSecret, cfg.WebhookSignatureWindow),
	})

	handler := httpadapter.NewHandler(svc, identity)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewHealthServer())

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaDefaultTopic, nil)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kafkaPublisher
	} else {
		logger.Warn("no kafka brokers configured; events are logged, not published")
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
	)
	reconciler := eventadapter.NewGrantReconciler(
		logger,
		repos.GrantQueue,
		streamClient,
		cfg.GrantPollInterval,
		cfg.GrantBatchSize,
		cfg.GrantMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		reconciler: reconciler,
		dedup:      repos.Dedup,
		cleanupFn: func(ctx context.Context) {
			if closer, ok := publisher.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker drives the outbox publisher, the grant reconciler and the dedup
// pruner until a shutdown signal arrives.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r.logger.Info("outbox worker started")
		return r.outbox.Run(groupCtx)
	})
	group.Go(func() error {
		r.logger.Info("grant reconciler started")
		return r.reconciler.Run(groupCtx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(r.cfg.DedupPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case <-ticker.C:
				pruned, err := r.dedup.PruneExpired(groupCtx, time.Now().UTC())
				if err != nil {
					r.logger.Warn("dedup prune failed", "error", err)
					continue
				}
				if pruned > 0 {
					r.logger.Info("pruned processed notifications", "count", pruned)
				}
			}
		}
	})

	err := group.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
