// Package metrics holds the Prometheus collectors for provider requests and RPC batches.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups every metric exported by the library
type Collector struct {
	batchTotal    *prometheus.CounterVec
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram
	callErrors    *prometheus.CounterVec
	apiRequests   *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
	limiterWait   *prometheus.HistogramVec
	breakerTrips  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		batchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extools_rpc_batches_total",
				Help: "JSON-RPC batches sent, by outcome",
			},
			[]string{"outcome"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extools_rpc_batch_size",
				Help:    "Number of calls per JSON-RPC batch",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extools_rpc_batch_duration_seconds",
				Help:    "Round trip time of JSON-RPC batches",
				Buckets: prometheus.DefBuckets,
			},
		),
		callErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extools_rpc_call_errors_total",
				Help: "Per-call failures inside otherwise delivered batches",
			},
			[]string{"kind"},
		),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extools_api_requests_total",
				Help: "Provider API requests, by provider and HTTP status",
			},
			[]string{"provider", "status"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extools_api_request_duration_seconds",
				Help:    "Provider API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		limiterWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extools_rate_limiter_wait_seconds",
				Help:    "Time spent waiting on a provider rate limiter",
				Buckets: []float64{0, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
		breakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extools_price_breaker_trips_total",
				Help: "Combined prices refused by the circuit breaker, by chain",
			},
			[]string{"chain"},
		),
	}

	reg.MustRegister(
		c.batchTotal,
		c.batchSize,
		c.batchDuration,
		c.callErrors,
		c.apiRequests,
		c.apiDuration,
		c.limiterWait,
		c.breakerTrips,
	)

	return c
}

// ObserveBatch records one batch round trip
func (c *Collector) ObserveBatch(size int, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "transport_error"
	}
	c.batchTotal.WithLabelValues(outcome).Inc()
	c.batchSize.Observe(float64(size))
	c.batchDuration.Observe(d.Seconds())
}

// CallError records a per-position failure (remote, decode, missing)
func (c *Collector) CallError(kind string) {
	if c == nil {
		return
	}
	c.callErrors.WithLabelValues(kind).Inc()
}

// ObserveRequest records one provider API request; status 0 means no response
func (c *Collector) ObserveRequest(provider string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(provider, label).Inc()
	c.apiDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveWait records time spent in a provider's rate limiter
func (c *Collector) ObserveWait(provider string, d time.Duration) {
	if c == nil {
		return
	}
	c.limiterWait.WithLabelValues(provider).Observe(d.Seconds())
}

func (c *Collector) BreakerTrip(chain string) {
	if c == nil {
		return
	}
	c.breakerTrips.WithLabelValues(chain).Inc()
}
