package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBulkDelay is the pause before a bulk batch is sent to the backend.
const DefaultBulkDelay = 500 * time.Millisecond

// DefaultLookupTimeout bounds one backend call.
const DefaultLookupTimeout = 15 * time.Second

// Options tune a Pipeline. Zero values take the defaults.
type Options struct {
	BulkThreshold int
	BulkDelay     time.Duration
	Timeout       time.Duration
}

func (o Options) withDefaults() Options {
	if o.BulkThreshold <= 0 {
		o.BulkThreshold = DefaultBulkThreshold
	}
	if o.BulkDelay < 0 {
		o.BulkDelay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultLookupTimeout
	}
	return o
}

// Request is one batch to resolve.
type Request struct {
	Codes  []string
	Tenant string
	Mode   string
	Bulk   bool
}

// Pipeline resolves batches through a cache and a shared limiter.
type Pipeline struct {
	resolver Resolver
	cache    *Cache
	limiter  *Limiter
	opts     Options
	logger   *slog.Logger
}

// NewPipeline wires a resolver to its cache and limiter. cache and limiter
// may be nil.
func NewPipeline(r Resolver, cache *Cache, limiter *Limiter, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		resolver: r,
		cache:    cache,
		limiter:  limiter,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// IsBulk reports whether n codes take the bulk path.
func (p *Pipeline) IsBulk(n int) bool {
	return IsBulk(n, p.opts.BulkThreshold)
}

// Cache returns the pipeline's cache, which may be nil.
func (p *Pipeline) Cache() *Cache { return p.cache }

// Run resolves req. Cached codes are answered locally; the rest go to the
// backend in a single call. On a backend error the cached part of the
// answer is still returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	codes := Codes(req.Codes)
	res := Result{Records: make(map[string]Record, len(codes))}
	if len(codes) == 0 {
		return res, nil
	}

	if req.Bulk && p.opts.BulkDelay > 0 {
		t := time.NewTimer(p.opts.BulkDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return res, ctx.Err()
		case <-t.C:
		}
	}

	misses := codes
	if p.cache != nil {
		var hits map[string]Record
		hits, misses = p.cache.Lookup(req.Tenant, req.Mode, codes)
		for code, rec := range hits {
			res.Records[code] = rec
		}
		res.TenantAbbreviation = p.cache.Abbreviation(req.Tenant)
	}
	if len(misses) == 0 {
		p.logger.Debug("lookup served from cache", "codes", len(codes))
		return res, nil
	}

	fetched, err := p.fetch(ctx, misses, req.Tenant, req.Mode)
	if err != nil {
		return res, err
	}

	for code, rec := range fetched.Records {
		res.Records[NormalizeCode(code)] = rec
	}
	if fetched.TenantAbbreviation != "" {
		res.TenantAbbreviation = fetched.TenantAbbreviation
	}
	if p.cache != nil {
		p.cache.Store(req.Tenant, req.Mode, fetched)
	}

	p.logger.Debug("lookup completed",
		"codes", len(codes),
		"fetched", len(misses),
		"resolved", len(res.Records),
		"bulk", req.Bulk,
	)
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, codes []string, tenant, mode string) (Result, error) {
	if p.resolver == nil {
		return Result{}, nil
	}
	if p.limiter != nil {
		if err := p.limiter.Acquire(ctx); err != nil {
			return Result{}, fmt.Errorf("acquire lookup slot: %w", err)
		}
		defer p.limiter.Release()
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, err := p.resolver.Resolve(ctx, codes, tenant, mode)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %d codes: %w", len(codes), err)
	}
	p.logger.Debug("backend lookup", "codes", len(codes), "duration_ms", time.Since(start).Milliseconds())

	normalized := make(map[string]Record, len(res.Records))
	for code, rec := range res.Records {
		normalized[NormalizeCode(code)] = rec
	}
	res.Records = normalized
	return res, nil
}
