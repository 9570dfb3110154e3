package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ObserveBatch(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveBatch(3, 10*time.Millisecond, nil)
	c.ObserveBatch(2, 5*time.Millisecond, errors.New("boom"))
	c.ObserveBatch(1, time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchTotal.WithLabelValues("transport_error")))
}

func TestCollector_RequestsAndErrors(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveRequest("dexscreener", 200, time.Millisecond)
	c.ObserveRequest("dexscreener", 429, time.Millisecond)
	c.ObserveRequest("dexscreener", 0, time.Millisecond)
	c.CallError("remote")
	c.CallError("remote")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("dexscreener", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("dexscreener", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("dexscreener", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.callErrors.WithLabelValues("remote")))
}

func TestCollector_BreakerTrip(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.BreakerTrip("ethereum")
	c.BreakerTrip("ethereum")
	c.BreakerTrip("bsc")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.breakerTrips.WithLabelValues("ethereum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerTrips.WithLabelValues("bsc")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveBatch(1, time.Second, nil)
		c.CallError("decode")
		c.ObserveRequest("coingecko", 200, time.Second)
		c.ObserveWait("coingecko", time.Second)
		c.BreakerTrip("ethereum")
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
