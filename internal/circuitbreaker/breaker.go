// Package circuitbreaker stops serving prices for a token when its provider
// quotes stop making sense: too few sources, a sudden jump against the last
// accepted price, or sources that disagree too much with each other.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/model"
)

var (
	// ErrOpen is returned while a tripped circuit waits for its reset delay
	ErrOpen = errors.New("circuit breaker open")
	// ErrTripped is returned by the check that opened the circuit
	ErrTripped = errors.New("circuit breaker tripped")
)

// State represents the current state of one circuit
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, checks are refused
	StateHalfOpen              // Testing if the source set has recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Thresholds defines the limits that trip a circuit. Zero disables a limit.
type Thresholds struct {
	// Minimum number of quotes required
	MinSources int `json:"min_sources" yaml:"min_sources"`

	// Maximum relative change of the median price between accepted checks (0.5 for 50%)
	MaxPriceChange float64 `json:"max_price_change" yaml:"max_price_change"`

	// Maximum standard deviation of quote prices as multiple of their mean
	MaxStdDevMultiple float64 `json:"max_std_dev_multiple,omitempty" yaml:"max_std_dev_multiple"`
}

type circuit struct {
	state        State
	lastTrip     time.Time
	successCount int
	lastPrice    float64
}

// CircuitBreaker keeps one circuit per key, typically chain and token
type CircuitBreaker struct {
	thresholds       Thresholds
	resetDelay       time.Duration
	successThreshold int
	onTrip           func(key, reason string, quotes []model.Quote)

	mu       sync.Mutex
	circuits map[string]*circuit
}

func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
		circuits:         make(map[string]*circuit),
	}
}

// WithResetDelay sets how long a tripped circuit stays open
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of passing checks needed to close a half-open circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback registers fn to run in its own goroutine whenever a circuit trips
func (cb *CircuitBreaker) WithTripCallback(fn func(key, reason string, quotes []model.Quote)) *CircuitBreaker {
	cb.onTrip = fn
	return cb
}

func (cb *CircuitBreaker) get(key string) *circuit {
	c, ok := cb.circuits[key]
	if !ok {
		c = &circuit{}
		cb.circuits[key] = c
	}
	return c
}

// Check evaluates quotes for key. An open circuit refuses with ErrOpen until
// the reset delay has passed; a failing check trips the circuit.
func (cb *CircuitBreaker) Check(key string, quotes []model.Quote) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	if c.state == StateOpen {
		if time.Since(c.lastTrip) <= cb.resetDelay {
			return fmt.Errorf("%w for %s", ErrOpen, key)
		}
		c.state = StateHalfOpen
		c.successCount = 0
		logrus.Infof("Circuit breaker half-open for %s", key)
	}

	if len(quotes) == 0 {
		return errors.New("no quotes provided to circuit breaker")
	}

	if reason := cb.violation(c, quotes); reason != "" {
		cb.trip(key, c, reason, quotes)
		return fmt.Errorf("%w for %s: %s", ErrTripped, key, reason)
	}

	c.lastPrice = aggregate.Median(quotes, aggregate.Price)
	if c.state == StateHalfOpen {
		c.successCount++
		if c.successCount >= cb.successThreshold {
			c.state = StateClosed
			c.successCount = 0
			logrus.Infof("Circuit breaker closed for %s", key)
		}
	}
	return nil
}

func (cb *CircuitBreaker) violation(c *circuit, quotes []model.Quote) string {
	t := cb.thresholds

	if t.MinSources > 0 && len(quotes) < t.MinSources {
		return fmt.Sprintf("insufficient source count: got %d, need %d", len(quotes), t.MinSources)
	}

	if t.MaxPriceChange > 0 && c.lastPrice > 0 {
		current := aggregate.Median(quotes, aggregate.Price)
		change := math.Abs(current-c.lastPrice) / c.lastPrice
		if change > t.MaxPriceChange {
			return fmt.Sprintf("price change too drastic: %.2f%% (threshold: %.2f%%)",
				change*100, t.MaxPriceChange*100)
		}
	}

	if t.MaxStdDevMultiple > 0 && len(quotes) > 1 {
		stdDev, mean := stdDevAndMean(quotes)
		if mean > 0 && stdDev/mean > t.MaxStdDevMultiple {
			return fmt.Sprintf("price standard deviation too high: %.2f x mean (threshold: %.2f)",
				stdDev/mean, t.MaxStdDevMultiple)
		}
	}
	return ""
}

// caller holds cb.mu
func (cb *CircuitBreaker) trip(key string, c *circuit, reason string, quotes []model.Quote) {
	c.state = StateOpen
	c.lastTrip = time.Now()
	c.successCount = 0
	logrus.Warnf("Circuit breaker tripped for %s: %s", key, reason)

	if cb.onTrip != nil {
		go cb.onTrip(key, reason, quotes)
	}
}

// State reports the state of key's circuit; unknown keys are closed
func (cb *CircuitBreaker) State(key string) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[key]; ok {
		return c.state
	}
	return StateClosed
}

// LastGoodPrice returns the median price of the last accepted check for key
func (cb *CircuitBreaker) LastGoodPrice(key string) (float64, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.circuits[key]
	if !ok || c.lastPrice == 0 {
		return 0, false
	}
	return c.lastPrice, true
}

// Reset closes key's circuit and keeps its last good price
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[key]; ok {
		c.state = StateClosed
		c.successCount = 0
		logrus.Infof("Circuit breaker for %s manually reset", key)
	}
}

func stdDevAndMean(quotes []model.Quote) (float64, float64) {
	if len(quotes) <= 1 {
		return 0, 0
	}

	var sum float64
	for _, q := range quotes {
		sum += q.PriceUSD
	}
	mean := sum / float64(len(quotes))

	var variance float64
	for _, q := range quotes {
		diff := q.PriceUSD - mean
		variance += diff * diff
	}
	variance /= float64(len(quotes) - 1)

	return math.Sqrt(variance), mean
}
