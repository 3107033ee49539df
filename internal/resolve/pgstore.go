package resolve

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

// insert mode must see inactive records too: their codes are still taken.
const pgResolveQuery = `
SELECT code, name, item_group, brand, rate, tax_rate
FROM catalog_items
WHERE tenant = $1 AND code = ANY($2) AND (active OR $3)`

const pgListQuery = `
SELECT code, name, item_group, brand, rate, tax_rate
FROM catalog_items
WHERE tenant = $1 AND (active OR $2)
ORDER BY code`

// PoolOptions configures the Postgres connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PgStore resolves codes against the catalog_items table in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// OpenPgStore connects a pool to url and verifies it with a ping.
func OpenPgStore(ctx context.Context, url string, opts PoolOptions) (*PgStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

// Migrate creates the catalog tables if they are missing.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Resolve implements Resolver.
func (s *PgStore) Resolve(ctx context.Context, codes []string, tenant, mode string) (Result, error) {
	res := Result{Records: make(map[string]Record, len(codes))}
	if len(codes) == 0 {
		return res, nil
	}

	rows, err := s.pool.Query(ctx, pgResolveQuery, tenant, codes, includeInactive(mode))
	if err != nil {
		return res, fmt.Errorf("query catalog: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanPgRecord)
	if err != nil {
		return res, fmt.Errorf("scan catalog: %w", err)
	}
	for _, r := range recs {
		res.Records[NormalizeCode(r.Code)] = r
	}

	abbrev, err := s.abbreviation(ctx, tenant)
	if err != nil {
		return res, err
	}
	res.TenantAbbreviation = abbrev
	return res, nil
}

// ListAll implements Catalog.
func (s *PgStore) ListAll(ctx context.Context, tenant, mode string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, pgListQuery, tenant, includeInactive(mode))
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanPgRecord)
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return recs, nil
}

// Close releases the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PgStore) abbreviation(ctx context.Context, tenant string) (string, error) {
	var abbrev string
	err := s.pool.QueryRow(ctx, `SELECT abbreviation FROM tenants WHERE id = $1`, tenant).Scan(&abbrev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query tenant: %w", err)
	}
	return abbrev, nil
}

func scanPgRecord(row pgx.CollectableRow) (Record, error) {
	var (
		r             Record
		rate, taxRate pgtype.Numeric
	)
	if err := row.Scan(&r.Code, &r.Name, &r.Group, &r.Brand, &rate, &taxRate); err != nil {
		return Record{}, err
	}
	r.Rate = numericFloat(rate)
	r.TaxRate = numericFloat(taxRate)
	return r, nil
}

func numericFloat(n pgtype.Numeric) float64 {
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0
	}
	return f.Float64
}

func includeInactive(mode string) bool {
	return mode == "insert"
}

var (
	_ Store = (*PgStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
