package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/connectors"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra/auth"
	"github.com/xela07ax/spaceai-crm-gateway/internal/policy"
	"github.com/xela07ax/spaceai-crm-gateway/internal/repository/postgres"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "MCP gateway exposing CRM tasks, leads and contacts to AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run(parent context.Context, configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин.
	// SIGTERM/SIGINT отменяет его и запускает graceful shutdown.
	appCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	domains, err := connectors.Domains(cfg.Gateway.Domains)
	if err != nil {
		return err
	}

	// 1. Хранилище: один пул на процесс
	sqlStore, err := store.Open(store.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    int(cfg.Database.MaxConns),
		MaxIdleConns:    int(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, append(connectors.Schemas(domains), policy.Schema, audit.Schema)...)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	pingCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
	err = sqlStore.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := sqlStore.Migrate(appCtx); err != nil {
		return err
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)

	// 3. Клиентский слой надежности (Rate Limit -> Circuit Breaker -> Retry)
	data, journal := newReliableStores(sqlStore, cfg.Engine, metrics.OnBreakerStateChange)

	// 4. Права: таблица agent_permissions или YAML-файл, без кэша
	var source policy.Source = policy.NewStoreSource(data)
	if cfg.Gateway.PermissionsFile != "" {
		source = policy.NewFileSource(cfg.Gateway.PermissionsFile)
		logger.Info("permissions are read from file", zap.String("path", cfg.Gateway.PermissionsFile))
	}
	validator := policy.NewValidator(source, logger, connectors.Modules(domains)...)

	// 5. Аудит: асинхронный буфер поверх store или pgx COPY
	sink, closeSink, err := newAuditSink(appCtx, cfg, journal)
	if err != nil {
		return err
	}
	defer closeSink()

	auditWriter := audit.NewWriter(sink, audit.Config{
		BufferSize:    cfg.Engine.AuditBufferSize,
		BatchSize:     cfg.Engine.AuditBatchSize,
		FlushInterval: cfg.Engine.AuditFlushInterval,
	}, logger)
	auditWriter.Start()
	defer auditWriter.Stop()
	metrics.RegisterAudit(auditWriter)

	// 6. Control Plane: kill-switch
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}
	killSwitch := engine.NewKillSwitch(rdb, logger)
	if err := killSwitch.Init(appCtx); err != nil {
		return fmt.Errorf("failed to init kill-switch: %w", err)
	}
	go killSwitch.Run(appCtx)

	// 7. Core: по одному шлюзу на домен с общими зависимостями
	deps := engine.Deps{
		Store:      data,
		Authorizer: validator,
		Blocker:    killSwitch,
		Audit:      auditWriter,
		Fallback:   domain.Identity{AgentID: cfg.Gateway.FallbackAgentID, AgentName: cfg.Gateway.FallbackAgentName},
		Metrics:    metrics,
		Logger:     logger,
	}
	gateways := make([]*engine.Gateway, 0, len(domains))
	for _, d := range domains {
		g, err := engine.New(d, deps)
		if err != nil {
			return err
		}
		gateways = append(gateways, g)
	}

	if cfg.Gateway.Transport == "stdio" {
		return serveStdio(gateways, cfg.Gateway.StdioDomain, logger)
	}
	return serveHTTP(appCtx, cfg, gateways, reg, sqlStore.Ping, logger)
}

// newReliableStores делит хранилище на два клиента с отдельными предохранителями.
// Сбои записи журнала копятся только в "audit-store" и не размыкают "data-store",
// через который идут инструменты и ресурсы. Лимитер тоже только у data-store.
func newReliableStores(s store.Store, e infra.EngineConfig, onChange func(string, gobreaker.State, gobreaker.State)) (data, journal *store.ReliableStore) {
	data = store.NewReliableStore(s, store.ReliabilityConfig{
		Name:          "data-store",
		MaxRequests:   e.CBMaxRequests,
		Interval:      e.CBInterval,
		Timeout:       e.CBTimeout,
		MaxFailures:   e.CBMaxFailures,
		RetryAttempts: e.RetryAttempts,
		RateLimit:     e.RateLimit,
		RateBurst:     e.RateBurst,
		OnStateChange: onChange,
	})
	journal = store.NewReliableStore(s, store.ReliabilityConfig{
		Name:          "audit-store",
		MaxRequests:   e.CBMaxRequests,
		Interval:      e.CBInterval,
		Timeout:       e.CBTimeout,
		MaxFailures:   e.CBMaxFailures,
		RetryAttempts: e.RetryAttempts,
		OnStateChange: onChange,
	})
	return data, journal
}

func newAuditSink(ctx context.Context, cfg *infra.Config, data store.Store) (audit.Sink, func(), error) {
	if cfg.Gateway.AuditSink != "copy" {
		return audit.NewStoreSink(data), func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewAuditRepo(pool), pool.Close, nil
}

// serveStdio: один домен на процесс: так MCP-клиенты запускают локальные серверы.
func serveStdio(gateways []*engine.Gateway, scheme string, logger *zap.Logger) error {
	for _, g := range gateways {
		if g.Domain.Scheme == scheme {
			logger.Info("serving mcp over stdio", zap.String("domain", scheme))
			return server.ServeStdio(g.MCPServer())
		}
	}
	return fmt.Errorf("stdio domain %q is not enabled in gateway.domains", scheme)
}

func serveHTTP(ctx context.Context, cfg *infra.Config, gateways []*engine.Gateway, reg *prometheus.Registry, health func(context.Context) error, logger *zap.Logger) error {
	opts := []engine.HTTPOption{
		engine.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		engine.WithHealthCheck(health),
	}
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return err
		}
		validator := auth.NewBaseValidator(pub, cfg.Auth.Issuer)
		opts = append(opts, engine.WithAuth(auth.NewMiddleware(validator, cfg.Auth.Required, logger)))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine.NewHTTPServer(gateways, logger, opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway started", zap.String("addr", srv.Addr), zap.Int("domains", len(gateways)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("gateway exited properly")
	return nil
}
