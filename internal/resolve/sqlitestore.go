package resolve

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore resolves codes against a local SQLite catalog. It is meant for
// single-machine installs and tests.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and applies the
// schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps a ":memory:" database alive across calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Resolve implements Resolver.
func (s *SQLiteStore) Resolve(ctx context.Context, codes []string, tenant, mode string) (Result, error) {
	res := Result{Records: make(map[string]Record, len(codes))}
	if len(codes) == 0 {
		return res, nil
	}

	query, args, err := sqlx.In(`
		SELECT code, name, item_group, brand, rate, tax_rate
		FROM catalog_items
		WHERE tenant = ? AND code IN (?) AND (active = 1 OR ?)`,
		tenant, codes, includeInactive(mode))
	if err != nil {
		return res, fmt.Errorf("build catalog query: %w", err)
	}

	var recs []Record
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return res, fmt.Errorf("query catalog: %w", err)
	}
	for _, r := range recs {
		res.Records[NormalizeCode(r.Code)] = r
	}

	err = s.db.GetContext(ctx, &res.TenantAbbreviation, `SELECT abbreviation FROM tenants WHERE id = ?`, tenant)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return res, fmt.Errorf("query tenant: %w", err)
	}
	return res, nil
}

// ListAll implements Catalog.
func (s *SQLiteStore) ListAll(ctx context.Context, tenant, mode string) ([]Record, error) {
	var recs []Record
	err := s.db.SelectContext(ctx, &recs, `
		SELECT code, name, item_group, brand, rate, tax_rate
		FROM catalog_items
		WHERE tenant = ? AND (active = 1 OR ?)
		ORDER BY code`, tenant, includeInactive(mode))
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	return recs, nil
}

// PutTenant creates or renames a tenant.
func (s *SQLiteStore) PutTenant(ctx context.Context, id, abbreviation string) error {
	const q = `
		INSERT INTO tenants (id, abbreviation) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET abbreviation = excluded.abbreviation`
	if _, err := s.db.ExecContext(ctx, q, id, abbreviation); err != nil {
		return fmt.Errorf("PutTenant (%s) failed: %w", id, err)
	}
	return nil
}

// PutRecords upserts recs for tenant in one transaction. Codes are stored
// normalized.
func (s *SQLiteStore) PutRecords(ctx context.Context, tenant string, active bool, recs ...Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO catalog_items (tenant, code, name, item_group, brand, rate, tax_rate, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant, code) DO UPDATE SET
			name = excluded.name,
			item_group = excluded.item_group,
			brand = excluded.brand,
			rate = excluded.rate,
			tax_rate = excluded.tax_rate,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP`
	for _, r := range recs {
		code := NormalizeCode(r.Code)
		if _, err := tx.ExecContext(ctx, q, tenant, code, r.Name, r.Group, r.Brand, r.Rate, r.TaxRate, active); err != nil {
			return fmt.Errorf("PutRecords (code %s) failed: %w", code, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
