package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	got := Codes([]string{" ab-1 ", "", "AB-1", "c2", "  ", "C2", "d3"})
	assert.Equal(t, []string{"AB-1", "C2", "D3"}, got)
}

func TestIsBulk_Boundary(t *testing.T) {
	assert.False(t, IsBulk(50, 0), "50 codes take the normal path")
	assert.True(t, IsBulk(51, 0), "51 codes take the bulk path")
	assert.False(t, IsBulk(0, 0))
	assert.True(t, IsBulk(6, 5))
}

var updateBinding = Binding{
	Identifier: "sku",
	Fields: map[string]string{
		FieldName:    "description",
		FieldBrand:   "brand",
		FieldRate:    "price",
		FieldTaxRate: "vat",
	},
	Policy: PolicyOverwrite,
}

func TestBuildPatch_Overwrite(t *testing.T) {
	res := Result{
		Records: map[string]Record{
			"A1": {Code: "A1", Name: "Bolt", Brand: "Acme", Rate: 12.5, TaxRate: 21},
		},
		TenantAbbreviation: "ACM",
	}

	patch := BuildPatch(updateBinding, []string{"a1", "B2"}, res)
	assert.Equal(t, "ACM", patch.TenantAbbreviation)

	found, ok := patch.For(" a1")
	require.True(t, ok)
	assert.True(t, found.Found)
	assert.True(t, found.ClearError)
	assert.True(t, found.ResetSnapshot)
	assert.Equal(t, map[string]any{
		"description": "Bolt",
		"brand":       "Acme",
		"price":       12.5,
		"vat":         21.0,
	}, found.Set)

	missing, ok := patch.For("B2")
	require.True(t, ok)
	assert.False(t, missing.Found)
	assert.False(t, missing.ResetSnapshot)
	assert.Equal(t, map[string]any{
		"description": nil,
		"brand":       nil,
		"price":       nil,
		"vat":         nil,
	}, missing.Set)
}

func TestBuildPatch_FlagExisting(t *testing.T) {
	b := Binding{Identifier: "sku", Fields: updateBinding.Fields, Policy: PolicyFlagExisting}
	res := Result{Records: map[string]Record{"A1": {Code: "A1", Name: "Bolt"}}}

	patch := BuildPatch(b, []string{"A1", "B2"}, res)

	dup := patch.Rows["A1"]
	assert.Equal(t, ErrCodeExists, dup.IdentifierError)
	assert.Empty(t, dup.Set, "insert mode leaves every other field untouched")
	assert.False(t, dup.ResetSnapshot)

	fresh := patch.Rows["B2"]
	assert.True(t, fresh.ClearError)
	assert.Empty(t, fresh.IdentifierError)
}

func TestBuildPatch_Idempotent(t *testing.T) {
	res := Result{Records: map[string]Record{"A1": {Code: "A1", Name: "Bolt"}}}
	first := BuildPatch(updateBinding, []string{"A1"}, res)
	second := BuildPatch(updateBinding, []string{"A1", "a1"}, res)
	assert.Equal(t, first, second)
}

func TestBinding_DependentColumns(t *testing.T) {
	assert.Equal(t, []string{"description", "brand", "price", "vat"}, updateBinding.DependentColumns())
}

func TestCache_TTLAndInvalidate(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Store("t1", "update", Result{
		Records:            map[string]Record{"A1": {Code: "A1", Name: "Bolt"}},
		TenantAbbreviation: "T1",
	})

	hits, misses := c.Lookup("t1", "update", []string{"A1", "B2"})
	assert.Contains(t, hits, "A1")
	assert.Equal(t, []string{"B2"}, misses)
	assert.Equal(t, "T1", c.Abbreviation("t1"))

	_, misses = c.Lookup("t2", "update", []string{"A1"})
	assert.Equal(t, []string{"A1"}, misses, "keys are per tenant")
	_, misses = c.Lookup("t1", "stock", []string{"A1"})
	assert.Equal(t, []string{"A1"}, misses, "keys are per mode")

	now = now.Add(2 * time.Minute)
	hits, _ = c.Lookup("t1", "update", []string{"A1"})
	assert.Empty(t, hits, "expired entries miss")
	assert.Equal(t, 0, c.Len(), "expired entries are dropped on lookup")

	c.Store("t1", "update", Result{Records: map[string]Record{"A1": {Code: "A1"}}})
	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Abbreviation("t1"))
}

type countingResolver struct {
	mu    sync.Mutex
	calls [][]string
	recs  map[string]Record
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, codes []string, _, _ string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), codes...))
	if r.err != nil {
		return Result{}, r.err
	}
	out := Result{Records: map[string]Record{}, TenantAbbreviation: "T1"}
	for _, c := range codes {
		if rec, ok := r.recs[c]; ok {
			out.Records[c] = rec
		}
	}
	return out, nil
}

func TestPipeline_CacheAvoidsBackend(t *testing.T) {
	backend := &countingResolver{recs: map[string]Record{
		"A1": {Code: "A1", Name: "Bolt"},
		"B2": {Code: "B2", Name: "Nut"},
	}}
	p := NewPipeline(backend, NewCache(time.Minute), NewLimiter(1, time.Second), Options{}, nil)
	ctx := context.Background()

	res, err := p.Run(ctx, Request{Codes: []string{"a1", "B2", "zz"}, Tenant: "t1", Mode: "update"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, "T1", res.TenantAbbreviation)

	res, err = p.Run(ctx, Request{Codes: []string{"A1", "B2"}, Tenant: "t1", Mode: "update"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, "T1", res.TenantAbbreviation)

	_, err = p.Run(ctx, Request{Codes: []string{"A1", "ZZ"}, Tenant: "t1", Mode: "update"})
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, []string{"A1", "B2", "ZZ"}, backend.calls[0])
	assert.Equal(t, []string{"ZZ"}, backend.calls[1], "unresolved codes are not cached")
}

func TestPipeline_BulkDelay(t *testing.T) {
	backend := &countingResolver{}
	p := NewPipeline(backend, nil, nil, Options{BulkDelay: 60 * time.Millisecond}, nil)

	start := time.Now()
	_, err := p.Run(context.Background(), Request{Codes: []string{"A1"}, Bulk: true})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, Request{Codes: []string{"A1"}, Bulk: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, backend.calls, 1, "a cancelled bulk run never reaches the backend")
}

func TestPipeline_BackendErrorKeepsCachedPart(t *testing.T) {
	backend := &countingResolver{recs: map[string]Record{"A1": {Code: "A1"}}}
	cache := NewCache(time.Minute)
	p := NewPipeline(backend, cache, nil, Options{}, nil)

	_, err := p.Run(context.Background(), Request{Codes: []string{"A1"}, Tenant: "t"})
	require.NoError(t, err)

	backend.err = errors.New("connection refused")
	res, err := p.Run(context.Background(), Request{Codes: []string{"A1", "B2"}, Tenant: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, res.Records, "A1")
}

func TestPipeline_LimiterTimeout(t *testing.T) {
	limiter := NewLimiter(1, 20*time.Millisecond)
	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	p := NewPipeline(&countingResolver{}, nil, limiter, Options{}, nil)
	_, err := p.Run(context.Background(), Request{Codes: []string{"A1"}})
	assert.ErrorIs(t, err, ErrTooManyLookups)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	backend := &countingResolver{}
	p := NewPipeline(backend, nil, nil, Options{}, nil)
	res, err := p.Run(context.Background(), Request{Codes: []string{" ", ""}})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, backend.calls)
}

func TestResolverFunc(t *testing.T) {
	var f Resolver = ResolverFunc(func(_ context.Context, codes []string, tenant, mode string) (Result, error) {
		return Result{TenantAbbreviation: fmt.Sprintf("%s/%s/%d", tenant, mode, len(codes))}, nil
	})
	res, err := f.Resolve(context.Background(), []string{"a", "b"}, "t", "m")
	require.NoError(t, err)
	assert.Equal(t, "t/m/2", res.TenantAbbreviation)
}
