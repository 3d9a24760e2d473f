package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"go.uber.org/zap"
)

// Store persists tenant records. Load returns (nil, nil) for unknown tenants.
type Store interface {
	Load(ctx context.Context, tenantID string) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
	Close() error
}

// Resolver looks up tenant configuration.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string) (*Config, error)
}

// Registry caches tenant records in front of a Store.
//
// Records are loaded on first access and cached for the life of the process.
// Register writes through to the store and then replaces the cached record
// whole, so readers never observe a partially updated tenant. Concurrent
// first access may load the same tenant twice; loads are idempotent reads.
type Registry struct {
	store  Store
	cache  sync.Map // tenantID -> *Config
	logger *logging.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry over store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tenant's config, loading it from the store on a cache miss.
// The returned value is a copy and may be modified by the caller.
func (r *Registry) Resolve(ctx context.Context, tenantID string) (*Config, error) {
	if err := ValidateID(tenantID); err != nil {
		return nil, err
	}
	if v, ok := r.cache.Load(tenantID); ok {
		return v.(*Config).Clone(), nil
	}

	cfg, err := r.store.Load(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	r.cache.Store(tenantID, cfg.Clone())
	r.logger.Debug(ctx, "tenant loaded", zap.String("tenant_id", tenantID), zap.String("industry", string(cfg.Industry)))
	return cfg, nil
}

// Register creates or replaces a tenant record.
func (r *Registry) Register(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	rec := cfg.Clone()
	if err := rec.Validate(); err != nil {
		return err
	}

	now := r.now().UTC().Truncate(time.Second)
	if existing, err := r.Resolve(ctx, rec.TenantID); err == nil {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save tenant %s: %w", rec.TenantID, err)
	}
	r.cache.Store(rec.TenantID, rec)

	r.logger.Info(ctx, "tenant registered", zap.String("tenant_id", rec.TenantID), zap.String("industry", string(rec.Industry)))
	return nil
}
