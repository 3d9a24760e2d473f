package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
)

// Embedder embeds query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// DocumentEmbedder embeds texts for storage.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// RetryPolicy bounds how the gateway retries provider calls.
// MaxAttempts counts the first call; 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
}

// NoRetry is the default policy.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// ExponentialBackoff returns base * 2^(attempt-1), capped at max.
func ExponentialBackoff(base, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Gateway is the single entry point for embedding generation.
type Gateway struct {
	provider  Provider
	model     string
	dimension int
	policy    RetryPolicy
	limiter   *rate.Limiter
	logger    *logging.Logger
	metrics   *Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy replaces the default no-retry policy.
func WithRetryPolicy(p RetryPolicy) GatewayOption {
	return func(g *Gateway) { g.policy = p }
}

// WithRateLimiter throttles provider calls.
func WithRateLimiter(l *rate.Limiter) GatewayOption {
	return func(g *Gateway) { g.limiter = l }
}

// WithLogger sets the gateway logger.
func WithLogger(l *logging.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithModel sets the model label used in metrics and logs.
func WithModel(model string) GatewayOption {
	return func(g *Gateway) { g.model = model }
}

// NewGateway wraps provider. dimension is the vector length every result must
// have; zero means the provider's own Dimension.
func NewGateway(provider Provider, dimension int, opts ...GatewayOption) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if dimension <= 0 {
		dimension = provider.Dimension()
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	g := &Gateway{
		provider:  provider,
		dimension: dimension,
		policy:    NoRetry(),
		logger:    logging.NewNop(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.policy.MaxAttempts < 1 {
		g.policy.MaxAttempts = 1
	}
	if g.policy.Retryable == nil {
		g.policy.Retryable = DefaultRetryable
	}
	if g.policy.Backoff == nil {
		g.policy.Backoff = func(int) time.Duration { return 0 }
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(g.logger)
	}
	return g, nil
}

// NewGatewayFromConfig builds the configured provider and wraps it.
func NewGatewayFromConfig(cfg config.EmbeddingsConfig, logger *logging.Logger) (*Gateway, error) {
	provider, err := NewProvider(ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey.Value(),
		CacheDir:  cfg.CacheDir,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s embedding provider: %w", cfg.Provider, err)
	}

	opts := []GatewayOption{
		WithLogger(logger),
		WithModel(cfg.Model),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     ExponentialBackoff(cfg.RetryBackoff.Duration(), 5*time.Second),
		}),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}
	return NewGateway(provider, cfg.Dimension, opts...)
}

// Dimension returns the vector length the gateway guarantees.
func (g *Gateway) Dimension() int {
	return g.dimension
}

// Embed embeds a query. Blank text is rejected with ErrEmptyInput; any
// provider failure is reported as ErrEmbeddingUnavailable.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := g.run(ctx, "embed_query", 1, func(ctx context.Context) ([][]float32, error) {
		v, err := g.provider.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return [][]float32{v}, nil
	})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts for indexing, one vector per text in order.
func (g *Gateway) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is blank", ErrEmptyInput, i)
		}
	}
	return g.run(ctx, "embed_documents", len(texts), func(ctx context.Context) ([][]float32, error) {
		vectors, err := g.provider.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		}
		return vectors, nil
	})
}

// Close releases the provider.
func (g *Gateway) Close() error {
	return g.provider.Close()
}

func (g *Gateway) run(ctx context.Context, operation string, n int, call func(context.Context) ([][]float32, error)) (vectors [][]float32, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "embeddings."+operation)
	span.SetAttributes(
		attribute.String("embedding.model", g.model),
		attribute.Int("embedding.batch_size", n),
	)
	start := time.Now()
	defer func() {
		g.metrics.RecordGeneration(ctx, g.model, operation, time.Since(start), n, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding unavailable")
		}
		span.End()
	}()

	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			g.metrics.recordRetry(ctx, g.model)
			if serr := g.sleep(ctx, g.policy.Backoff(attempt-1)); serr != nil {
				lastErr = serr
				break
			}
		}
		if g.limiter != nil {
			if werr := g.limiter.Wait(ctx); werr != nil {
				lastErr = werr
				break
			}
		}

		vectors, lastErr = call(ctx)
		if lastErr == nil {
			lastErr = g.checkDimensions(vectors)
		}
		if lastErr == nil {
			span.SetAttributes(attribute.Int("embedding.attempts", attempt))
			return vectors, nil
		}
		if errors.Is(lastErr, ErrEmptyInput) {
			return nil, lastErr
		}
		if !g.policy.Retryable(lastErr) {
			break
		}
		g.logger.Debug(ctx, "embedding attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	g.logger.Warn(ctx, "embedding unavailable",
		zap.String("operation", operation),
		zap.String("model", g.model),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, lastErr)
}

func (g *Gateway) checkDimensions(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != g.dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimension, len(v))
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
