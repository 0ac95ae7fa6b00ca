package shipping

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/logger"
	"github.com/rilegato/rilegato-backend/pkg/metrics"
	"github.com/rilegato/rilegato-backend/pkg/types"
)

type itemResolver interface {
	Resolve(ctx context.Context, items []RequestItem) []ResolvedItem
}

type quoteCache interface {
	Get(key string) *CacheEntry
	Set(key string, quote types.Quote)
}

type carrierClient interface {
	Quote(ctx context.Context, dest types.Destination, items []ResolvedItem) (types.Quote, error)
}

// Service orchestrates quote computation: resolve weights, consult the
// cache, call the carrier on a miss. The cache is injected so concurrent
// requests for the same destination and weight bucket collapse into one
// upstream call per TTL window.
type Service interface {
	GetQuote(ctx context.Context, subject string, dest types.Destination, items []RequestItem) (types.Quote, error)
	CachedQuote(ctx context.Context, subject string, dest types.Destination, items []RequestItem) *types.Quote
}

type service struct {
	resolver    itemResolver
	cache       quoteCache
	carrier     carrierClient
	metrics     *metrics.ShippingMetrics
	logg        *logger.Logger
	bucketGrams int
}

// NewService wires the quote pipeline.
func NewService(resolver itemResolver, cache quoteCache, carrier carrierClient, m *metrics.ShippingMetrics, logg *logger.Logger, bucketGrams int) (Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("item resolver required")
	}
	if cache == nil {
		return nil, fmt.Errorf("quote cache required")
	}
	if carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if bucketGrams <= 0 {
		bucketGrams = 25
	}
	return &service{
		resolver:    resolver,
		cache:       cache,
		carrier:     carrier,
		metrics:     m,
		logg:        logg,
		bucketGrams: bucketGrams,
	}, nil
}

// GetQuote returns the best quote for the cart. An empty cart returns the
// sentinel immediately; that is a defined outcome, not an error. Carrier
// failures return the sentinel plus a coded error and are never cached, so
// the next request retries instead of being stuck for the full TTL.
func (s *service) GetQuote(ctx context.Context, subject string, dest types.Destination, items []RequestItem) (types.Quote, error) {
	if len(items) == 0 {
		return types.NoQuote(), nil
	}
	if !dest.HasPostalCode() {
		return types.NoQuote(), pkgerrors.New(pkgerrors.CodeValidation, "destination postal code is required")
	}

	resolved := s.resolver.Resolve(ctx, items)
	key := s.cacheKey(subject, dest, resolved)

	if entry := s.cache.Get(key); entry != nil {
		s.metrics.IncCacheHit()
		return entry.Quote, nil
	}
	s.metrics.IncCacheMiss()

	started := time.Now()
	quote, err := s.carrier.Quote(ctx, dest, resolved)
	if err != nil {
		class := "unavailable"
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeRateLimit:
				class = "rate_limited"
			case pkgerrors.CodeTimeout:
				class = "timeout"
			}
		}
		s.metrics.ObserveCarrierCall("failure", time.Since(started))
		s.metrics.IncCarrierFailure(class)
		if s.logg != nil {
			s.logg.Error(ctx, "carrier quote failed", err)
		}
		return types.NoQuote(), err
	}
	s.metrics.ObserveCarrierCall("success", time.Since(started))

	// The sentinel ("no options for this destination") is a valid response
	// but caching it would hide a recovering carrier for a full TTL.
	if !quote.IsSentinel() {
		s.cache.Set(key, quote)
	}
	return quote, nil
}

// CachedQuote returns the cached quote for the subject/destination/bucket,
// or nil on a miss. Used by admin tooling, which must never trigger a
// carrier call of its own.
func (s *service) CachedQuote(ctx context.Context, subject string, dest types.Destination, items []RequestItem) *types.Quote {
	if len(items) == 0 {
		return nil
	}
	key := s.cacheKey(subject, dest, s.resolver.Resolve(ctx, items))
	entry := s.cache.Get(key)
	if entry == nil {
		return nil
	}
	quote := entry.Quote
	return &quote
}

func (s *service) cacheKey(subject string, dest types.Destination, items []ResolvedItem) string {
	bucket := WeightBucket(TotalWeightGrams(items), s.bucketGrams)
	return CacheKey(subject, dest, bucket)
}
