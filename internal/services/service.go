package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/indexer"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/retrieval"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
)

// Options configures a Service with component instances.
type Options struct {
	Tenants *tenant.Registry
	Indexer *indexer.Indexer
	Engine  *retrieval.Engine
	Logger  *logging.Logger

	// Closers are released by Close in reverse order.
	Closers []io.Closer
}

// Service is the retrieval API.
type Service struct {
	tenants *tenant.Registry
	indexer *indexer.Indexer
	engine  *retrieval.Engine
	logger  *logging.Logger
	closers []io.Closer
}

// New creates a Service from already-built components.
func New(opts Options) (*Service, error) {
	if opts.Tenants == nil || opts.Indexer == nil || opts.Engine == nil {
		return nil, errors.New("tenants, indexer and engine are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		tenants: opts.Tenants,
		indexer: opts.Indexer,
		engine:  opts.Engine,
		logger:  opts.Logger,
		closers: opts.Closers,
	}, nil
}

func (s *Service) Tenants() *tenant.Registry { return s.tenants }
func (s *Service) Indexer() *indexer.Indexer { return s.indexer }
func (s *Service) Engine() *retrieval.Engine { return s.engine }

// RetrieveRequest is a retrieval call as received from a client. Content
// types are parsed against the closed set.
type RetrieveRequest struct {
	TenantID       string
	Text           string
	ContentTypes   []string
	Language       string
	ScoreThreshold *float64
	Limit          int
}

// Retrieve answers a tenant query.
func (s *Service) Retrieve(ctx context.Context, req RetrieveRequest) (*retrieval.Result, error) {
	cts, err := chunk.ParseContentTypes(req.ContentTypes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", retrieval.ErrInvalidQuery, err)
	}
	return s.engine.Retrieve(ctx, retrieval.Query{
		TenantID:       req.TenantID,
		Text:           req.Text,
		ContentTypes:   cts,
		Language:       req.Language,
		ScoreThreshold: req.ScoreThreshold,
		Limit:          req.Limit,
	})
}

// IndexChunks indexes items of one content type and returns their chunk IDs.
func (s *Service) IndexChunks(ctx context.Context, tenantID string, items []indexer.StructuredItem, contentType string) ([]string, error) {
	ct, err := chunk.ParseContentType(contentType)
	if err != nil {
		return nil, err
	}
	return s.indexer.Index(ctx, tenantID, items, ct)
}

// RegisterTenant creates or replaces a tenant record.
func (s *Service) RegisterTenant(ctx context.Context, cfg *tenant.Config) error {
	return s.tenants.Register(ctx, cfg)
}

// Tenant returns a tenant record.
func (s *Service) Tenant(ctx context.Context, tenantID string) (*tenant.Config, error) {
	return s.tenants.Resolve(ctx, tenantID)
}

// PurgeTenant deletes every chunk the tenant owns. The tenant record stays.
func (s *Service) PurgeTenant(ctx context.Context, tenantID string) error {
	return s.indexer.Purge(ctx, tenantID)
}

// DeleteSource deletes the chunks indexed from one source file.
func (s *Service) DeleteSource(ctx context.Context, tenantID, sourceFileID string) error {
	return s.indexer.DeleteSource(ctx, tenantID, sourceFileID)
}

// Close releases every component. All closers run; their errors are joined.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn(context.Background(), "close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
