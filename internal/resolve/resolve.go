// Package resolve looks up pasted product codes against a backend catalog and
// turns the answer into a merge patch for the editing grid.
//
// A batch of codes is classified as normal or bulk by size. Bulk batches are
// delayed briefly before the backend is called so a paste that is still
// arriving can settle, and the caller opens a longer emission suppression
// window for them. Every backend call goes through a process-wide [Limiter]
// and a per-session [Cache].
package resolve

import (
	"context"
	"strings"
)

// DefaultBulkThreshold is the largest batch that still takes the normal path.
const DefaultBulkThreshold = 50

// Record is one catalog entry as returned by the backend.
type Record struct {
	Code    string  `json:"code" db:"code"`
	Name    string  `json:"name" db:"name"`
	Group   string  `json:"group" db:"item_group"`
	Brand   string  `json:"brand" db:"brand"`
	Rate    float64 `json:"rate" db:"rate"`
	TaxRate float64 `json:"taxRate" db:"tax_rate"`
}

// Record field names usable in a lookup binding.
const (
	FieldName    = "name"
	FieldGroup   = "group"
	FieldBrand   = "brand"
	FieldRate    = "rate"
	FieldTaxRate = "taxRate"
)

// Fields lists every record field a binding may map.
func Fields() []string {
	return []string{FieldName, FieldGroup, FieldBrand, FieldRate, FieldTaxRate}
}

// Field returns the named record field.
func (r Record) Field(name string) (any, bool) {
	switch name {
	case FieldName:
		return r.Name, true
	case FieldGroup:
		return r.Group, true
	case FieldBrand:
		return r.Brand, true
	case FieldRate:
		return r.Rate, true
	case FieldTaxRate:
		return r.TaxRate, true
	}
	return nil, false
}

// Result is the backend answer for one batch. A code missing from Records
// did not resolve.
type Result struct {
	Records            map[string]Record `json:"records"`
	TenantAbbreviation string            `json:"tenantAbbreviation"`
}

// Resolver looks up codes for a tenant in the given editing mode.
type Resolver interface {
	Resolve(ctx context.Context, codes []string, tenant, mode string) (Result, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, codes []string, tenant, mode string) (Result, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, codes []string, tenant, mode string) (Result, error) {
	return f(ctx, codes, tenant, mode)
}

// Catalog lists every record a tenant has, for "load all existing records".
type Catalog interface {
	ListAll(ctx context.Context, tenant, mode string) ([]Record, error)
}

// Store is a backend that can both resolve and list.
type Store interface {
	Resolver
	Catalog
	Close() error
}

// NormalizeCode trims surrounding whitespace and upper-cases a code so cache
// keys and backend lookups agree.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Codes normalizes raw, drops empty entries and duplicates, and keeps the
// first-seen order.
func Codes(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = NormalizeCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// IsBulk reports whether a batch of n codes takes the bulk path. A threshold
// of zero or less means DefaultBulkThreshold.
func IsBulk(n, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}
	return n > threshold
}
