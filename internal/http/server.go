// Package http provides the HTTP API for tenantrag.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/indexer"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/retrieval"
	"github.com/fyrsmithlabs/tenantrag/internal/services"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

// Backend is the retrieval API served over HTTP. *services.Service
// implements it.
type Backend interface {
	Retrieve(ctx context.Context, req services.RetrieveRequest) (*retrieval.Result, error)
	IndexChunks(ctx context.Context, tenantID string, items []indexer.StructuredItem, contentType string) ([]string, error)
	RegisterTenant(ctx context.Context, cfg *tenant.Config) error
	Tenant(ctx context.Context, tenantID string) (*tenant.Config, error)
	PurgeTenant(ctx context.Context, tenantID string) error
	DeleteSource(ctx context.Context, tenantID, sourceFileID string) error
}

// Server provides HTTP endpoints for tenantrag.
type Server struct {
	echo    *echo.Echo
	backend Backend
	logger  *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// ConfigFrom converts the application server section.
func ConfigFrom(c config.ServerConfig) *Config {
	return &Config{Host: c.Host, Port: c.Port}
}

// NewServer creates a new HTTP server.
func NewServer(backend Backend, logger *logging.Logger, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8088,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(req.Context(), reqID)
			if id := c.Param("id"); id != "" {
				ctx = logging.WithTenantID(ctx, id)
			}
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		backend: backend,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.PUT("/tenants/:id", s.handlePutTenant)
	v1.GET("/tenants/:id", s.handleGetTenant)
	v1.POST("/tenants/:id/retrieve", s.handleRetrieve)
	v1.POST("/tenants/:id/chunks", s.handleIndex)
	v1.DELETE("/tenants/:id/chunks", s.handlePurge)
	v1.DELETE("/tenants/:id/sources/:source", s.handleDeleteSource)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handlePutTenant(c echo.Context) error {
	var req TenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	allowed, err := chunk.ParseContentTypes(req.AllowedContentTypes)
	if err != nil {
		return err
	}
	cfg := &tenant.Config{
		TenantID:            c.Param("id"),
		Industry:            tenant.Industry(req.Industry),
		DisplayName:         req.DisplayName,
		AllowedContentTypes: allowed,
	}
	ctx := c.Request().Context()
	if err := s.backend.RegisterTenant(ctx, cfg); err != nil {
		return err
	}
	saved, err := s.backend.Tenant(ctx, cfg.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleGetTenant(c echo.Context) error {
	cfg, err := s.backend.Tenant(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.backend.Retrieve(c.Request().Context(), services.RetrieveRequest{
		TenantID:       c.Param("id"),
		Text:           req.Query,
		ContentTypes:   req.ContentTypes,
		Language:       req.Language,
		ScoreThreshold: req.ScoreThreshold,
		Limit:          req.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ct, err := chunk.ParseContentType(req.ContentType)
	if err != nil {
		return err
	}
	items := make([]indexer.StructuredItem, len(req.Items))
	for i, it := range req.Items {
		data, err := chunk.DecodeData(ct, string(it.StructuredData))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("item %d: %v", i, err))
		}
		items[i] = indexer.StructuredItem{
			SourceFileID:  it.SourceFileID,
			RawContent:    it.RawContent,
			RetrievalText: it.RetrievalText,
			Data:          data,
			Language:      it.Language,
			ValidFrom:     it.ValidFrom,
			ValidUntil:    it.ValidUntil,
		}
	}

	ids, err := s.backend.IndexChunks(c.Request().Context(), c.Param("id"), items, string(ct))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, IndexResponse{ChunkIDs: ids})
}

func (s *Server) handlePurge(c echo.Context) error {
	if err := s.backend.PurgeTenant(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteSource(c echo.Context) error {
	if err := s.backend.DeleteSource(c.Request().Context(), c.Param("id"), c.Param("source")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// errorHandler maps domain errors to status codes. Isolation violations
// are reported without detail.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed",
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		if werr := c.JSON(status, body); werr != nil {
			logger.Warn(c.Request().Context(), "writing error response", zap.Error(werr))
		}
	}
}

func classify(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, ErrorResponse{Error: fmt.Sprint(he.Message)}
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, retrieval.ErrIsolationViolation):
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	case errors.Is(err, tenant.ErrInvalidTenantID),
		errors.Is(err, tenant.ErrInvalidConfig),
		errors.Is(err, retrieval.ErrInvalidQuery),
		errors.Is(err, chunk.ErrUnknownContentType),
		errors.Is(err, chunk.ErrDataMismatch),
		errors.Is(err, indexer.ErrContentTypeNotAllowed),
		errors.Is(err, indexer.ErrInvalidItem),
		errors.Is(err, embeddings.ErrEmptyInput):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case retrieval.IsRetryable(err), errors.Is(err, vectorstore.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Retryable: true}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
