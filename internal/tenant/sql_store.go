package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const createTenantsTable = `
CREATE TABLE IF NOT EXISTS tenants (
	tenant_id             TEXT PRIMARY KEY,
	industry              TEXT NOT NULL,
	display_name          TEXT NOT NULL DEFAULT '',
	allowed_content_types TEXT NOT NULL DEFAULT '',
	created_at            BIGINT NOT NULL,
	updated_at            BIGINT NOT NULL
)`

// SQLStore persists tenants in a SQL table. It serves both PostgreSQL
// (lib/pq) and SQLite (modernc.org/sqlite); the dialects differ only in
// placeholder syntax.
type SQLStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

// NewPostgresStore opens a PostgreSQL-backed store and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	return openSQLStore(ctx, "postgres", dsn, func(n int) string { return fmt.Sprintf("$%d", n) })
}

// NewSQLiteStore opens a SQLite-backed store at path and ensures the table exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	return openSQLStore(ctx, "sqlite", path, func(int) string { return "?" })
}

func openSQLStore(ctx context.Context, driver, dsn string, placeholder func(int) string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &SQLStore{db: db, placeholder: placeholder}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tenants table if it is missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTenantsTable); err != nil {
		return fmt.Errorf("create tenants table: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, tenantID string) (*Config, error) {
	q := fmt.Sprintf(`SELECT tenant_id, industry, display_name, allowed_content_types, created_at, updated_at
		FROM tenants WHERE tenant_id = %s`, s.placeholder(1))

	var (
		cfg                  Config
		industry, allowed    string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(&cfg.TenantID, &industry, &cfg.DisplayName, &allowed, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant: %w", err)
	}

	cfg.Industry = Industry(industry)
	cfg.CreatedAt = time.Unix(createdAt, 0).UTC()
	cfg.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if allowed != "" {
		types, err := chunk.ParseContentTypes(strings.Split(allowed, ","))
		if err != nil {
			return nil, fmt.Errorf("%w: stored content types: %v", ErrInvalidConfig, err)
		}
		cfg.AllowedContentTypes = types
	}
	return &cfg, nil
}

func (s *SQLStore) Save(ctx context.Context, cfg *Config) error {
	p := s.placeholder
	q := fmt.Sprintf(`INSERT INTO tenants (tenant_id, industry, display_name, allowed_content_types, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (tenant_id) DO UPDATE SET
			industry = excluded.industry,
			display_name = excluded.display_name,
			allowed_content_types = excluded.allowed_content_types,
			updated_at = excluded.updated_at`,
		p(1), p(2), p(3), p(4), p(5), p(6))

	allowed := make([]string, len(cfg.AllowedContentTypes))
	for i, ct := range cfg.AllowedContentTypes {
		allowed[i] = string(ct)
	}

	_, err := s.db.ExecContext(ctx, q,
		cfg.TenantID,
		string(cfg.Industry),
		cfg.DisplayName,
		strings.Join(allowed, ","),
		cfg.CreatedAt.Unix(),
		cfg.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
