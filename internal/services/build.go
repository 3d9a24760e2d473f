package services

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/indexer"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/retrieval"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

// Build constructs every component from cfg. On error, anything already
// opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (svc *Service, err error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	store, err := NewTenantStore(ctx, cfg.TenantStore)
	if err != nil {
		return nil, fmt.Errorf("tenant store: %w", err)
	}
	closers = append(closers, store)

	gateway, err := embeddings.NewGatewayFromConfig(cfg.Embeddings, logger)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	closers = append(closers, gateway)

	index, err := vectorstore.NewIndex(ctx, cfg.VectorStore, gateway.Dimension(), logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	closers = append(closers, index)

	registry := tenant.NewRegistry(store, tenant.WithLogger(logger.Named("tenant")))
	ix := indexer.New(registry, gateway, index,
		indexer.WithConfig(cfg.Indexer),
		indexer.WithLogger(logger.Named("indexer")),
	)
	engine := retrieval.NewEngine(registry, gateway, index, cfg.Retrieval,
		retrieval.WithLogger(logger.Named("retrieval")),
	)

	logger.Info(ctx, "services ready",
		zap.String("tenant_store", cfg.TenantStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		logging.Secret("embeddings_api_key", cfg.Embeddings.APIKey),
		zap.String("vectorstore", index.Name()),
	)
	return New(Options{
		Tenants: registry,
		Indexer: ix,
		Engine:  engine,
		Logger:  logger,
		Closers: closers,
	})
}

// NewTenantStore opens the configured tenant store.
func NewTenantStore(ctx context.Context, cfg config.TenantStoreConfig) (tenant.Store, error) {
	switch cfg.Provider {
	case "memory", "":
		return tenant.NewMemoryStore(), nil
	case "postgres":
		return tenant.NewPostgresStore(ctx, cfg.PostgresDSN.Value())
	case "sqlite":
		return tenant.NewSQLiteStore(ctx, cfg.SQLitePath)
	case "redis":
		return tenant.DialRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword.Value(), cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported tenant store provider %q (supported: memory, postgres, sqlite, redis)", cfg.Provider)
	}
}
