package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShippingMetrics records quote cache and carrier call outcomes.
type ShippingMetrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	carrierLatency *prometheus.HistogramVec
	carrierFailure *prometheus.CounterVec
	reconciles     *prometheus.CounterVec
}

// NewShippingMetrics registers the shipping metrics on the provided registerer.
func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_cache_hits_total",
		Help: "Shipping quote cache hits.",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_cache_misses_total",
		Help: "Shipping quote cache misses.",
	})
	carrierLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_call_duration_seconds",
		Help:    "Duration of carrier rate calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	carrierFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_call_failures_total",
		Help: "Carrier rate call failures by class.",
	}, []string{"class"})
	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_total",
		Help: "Guest cart merge requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(cacheHits, cacheMisses, carrierLatency, carrierFailure, reconciles)
	return &ShippingMetrics{
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		carrierLatency: carrierLatency,
		carrierFailure: carrierFailure,
		reconciles:     reconciles,
	}
}

// IncCacheHit increments the cache hit counter.
func (m *ShippingMetrics) IncCacheHit() {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Inc()
}

// IncCacheMiss increments the cache miss counter.
func (m *ShippingMetrics) IncCacheMiss() {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCarrierCall records the duration of a carrier call.
func (m *ShippingMetrics) ObserveCarrierCall(outcome string, duration time.Duration) {
	if m == nil || m.carrierLatency == nil {
		return
	}
	m.carrierLatency.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCarrierFailure increments the failure counter for the given class.
func (m *ShippingMetrics) IncCarrierFailure(class string) {
	if m == nil || m.carrierFailure == nil {
		return
	}
	m.carrierFailure.WithLabelValues(normalizeLabel(class)).Inc()
}

// IncMerge records a guest cart merge outcome.
func (m *ShippingMetrics) IncMerge(outcome string) {
	if m == nil || m.reconciles == nil {
		return
	}
	m.reconciles.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
