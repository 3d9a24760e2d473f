package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/qdrant"
)

// NewIndex builds the configured backend for vectors of the given dimension
// and wraps it with metrics.
//
//   - "qdrant" (default): external Qdrant over gRPC
//   - "pgvector": PostgreSQL with the pgvector extension
//   - "chromem": embedded, approximate search only
//   - "memory": in-process, lost on exit
func NewIndex(ctx context.Context, cfg config.VectorStoreConfig, dimension int, logger *logging.Logger) (Index, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("vectorstore")

	var (
		idx Index
		err error
	)
	switch cfg.Provider {
	case "qdrant", "":
		var client *qdrant.GRPCClient
		client, err = qdrant.NewGRPCClient(qdrant.ConfigFrom(cfg.Qdrant), logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		idx, err = NewQdrantIndex(ctx, client, cfg.Collection, dimension, logger)
		if err != nil {
			_ = client.Close()
		}
	case "pgvector":
		idx, err = NewPgvectorIndex(ctx, cfg.Pgvector.DSN.Value(), cfg.Pgvector.Table, dimension, logger)
	case "chromem":
		idx, err = NewChromemIndex(cfg.Chromem.Path, cfg.Chromem.Compress, cfg.Collection, dimension, logger)
	case "memory":
		idx = NewMemoryIndex(dimension)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: qdrant, pgvector, chromem, memory)", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "vector index ready",
		zap.String("provider", idx.Name()),
		zap.String("collection", cfg.Collection),
		zap.Int("dimension", dimension),
	)
	return Instrument(idx), nil
}
