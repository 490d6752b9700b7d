package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	certledger "github.com/goliatone/go-certledger"
	"github.com/goliatone/go-certledger/adapters/gologger"
	"github.com/goliatone/go-certledger/core"
	"github.com/goliatone/go-certledger/ledger"
	"github.com/goliatone/go-certledger/metrics"
	certmigrations "github.com/goliatone/go-certledger/migrations"
	"github.com/goliatone/go-certledger/publisher"
	"github.com/goliatone/go-certledger/ratelimit"
	sqlstore "github.com/goliatone/go-certledger/store/sql"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// requirements lists the external systems a command talks to. The database
// is always opened.
type requirements struct {
	ledger    bool
	publisher bool
}

type runtime struct {
	cfg      *Config
	engine   core.Config
	provider glog.LoggerProvider
	registry *prometheus.Registry
	db       *persistence.Client
	rpc      *ethclient.Client
	service  *core.Service
	facade   *certledger.Facade
}

func buildRuntime(ctx context.Context, cfg *Config, provider glog.LoggerProvider, req requirements) (*runtime, error) {
	engine, err := cfg.EngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	rt := &runtime{
		cfg:      cfg,
		engine:   engine,
		provider: provider,
		registry: prometheus.NewRegistry(),
	}

	client, _, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = client

	factoryOpts := []sqlstore.FactoryOption{}
	if cfg.Database.CacheTTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.Database.CacheTTL
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("certificate cache: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCertificateCache(cacheService))
	}
	factory := sqlstore.NewRepositoryFactory(factoryOpts...)

	recorder := metrics.NewRecorder(rt.registry, metrics.WithRegistrationErrorHandler(func(name string, err error) {
		provider.GetLogger("metrics").Warn("metric registration failed", "metric", name, "error", err.Error())
	}))

	opts := append(gologger.CoreOptions(provider, nil),
		core.WithConfigProvider(core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: cfg.Engine})),
		core.WithMetricsRecorder(recorder),
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(factory),
	)

	if req.ledger {
		rpc, chain, err := dialLedger(ctx, cfg.Ledger, engine.Ledger, provider)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.rpc = rpc
		opts = append(opts, core.WithLedger(chain))
	}
	if req.publisher {
		pub, err := newPublisher(cfg.Publisher, engine.Publisher)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, core.WithPublisher(pub))
	}

	service, err := certledger.NewService(core.Config{}, opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build service: %w", err)
	}
	facade, err := certledger.NewServiceFacade(service)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.service = service
	rt.facade = facade
	return rt, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.rpc != nil {
		rt.rpc.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

// serveMetrics exposes the runtime registry until ctx is done. An empty
// address disables the endpoint.
func (rt *runtime) serveMetrics(ctx context.Context) {
	addr := strings.TrimSpace(rt.cfg.Metrics.ListenAddress)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{Registry: rt.registry}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger := rt.provider.GetLogger("metrics")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "address", addr, "error", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", "address", addr)
}

func openDatabase(cfg DatabaseConfig) (*persistence.Client, string, error) {
	driver := cfg.driverName()
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}

	var dialect schema.Dialect
	migrationDialect := certmigrations.DialectSQLite
	if driver == "postgres" {
		dialect = pgdialect.New()
		migrationDialect = certmigrations.DialectPostgres
	} else {
		sqlDB.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("persistence client: %w", err)
	}
	return client, migrationDialect, nil
}

func migrateDatabase(ctx context.Context, cfg DatabaseConfig) error {
	client, dialect, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	_, err = certmigrations.Register(ctx, func(_ context.Context, registered string, _ string, fsys fs.FS) error {
		if registered != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, certmigrations.WithValidationTargets(dialect))
	if err != nil {
		return fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func dialLedger(ctx context.Context, cfg LedgerConfig, engine core.LedgerConfig, provider glog.LoggerProvider) (*ethclient.Client, *ledger.Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, nil, fmt.Errorf("ledger rpc url is required")
	}
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	chain, err := ledger.NewClient(rpc, ledger.Config{
		ContractAddress: cfg.ContractAddress,
		PrivateKey:      cfg.PrivateKey,
		LedgerConfig:    engine,
	}, ledger.WithLogger(provider.GetLogger("ledger")))
	if err != nil {
		rpc.Close()
		return nil, nil, err
	}
	return rpc, chain, nil
}

func newPublisher(cfg PublisherConfig, engine core.PublisherConfig) (core.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		return publisher.NewMemoryPublisher(engine.GatewayURL), nil
	default:
		return publisher.NewPinataPublisher(publisher.PinataConfig{
			Endpoint:   cfg.Endpoint,
			JWT:        cfg.JWT,
			GatewayURL: engine.GatewayURL,
		}, &http.Client{Timeout: 30 * time.Second},
			publisher.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
		)
	}
}
