package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"cash-buying-power/models"
	"cash-buying-power/observability"
)

// ErrBreakerOpen is joined with models.ErrSnapshotUnavailable when an
// upstream call is rejected without being attempted.
var ErrBreakerOpen = errors.New("upstream circuit open")

// Upstream breaker names. They double as the metrics service label.
const (
	BreakerAlphaVantage = "alphavantage"
	BreakerAlpaca       = "alpaca"
)

// CircuitBreakerConfig is the trip policy of one upstream
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes let through while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // how long the breaker stays open
	MinRequests  uint32        // requests in the window before the ratio is considered
	FailureRatio float64       // failures/requests at which the breaker opens
}

// DefaultCircuitBreakerConfig applies to upstreams without their own policy
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     1 * time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// AlphaVantageBreakerConfig opens after fewer requests and stays open longer
// than the default, matching free-tier quota errors.
var AlphaVantageBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  1,
	Interval:     5 * time.Minute,
	Timeout:      2 * time.Minute,
	MinRequests:  3,
	FailureRatio: 0.6,
}

func (c CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// countsAsSuccess reports whether a call outcome leaves the upstream's
// health untouched. Caller cancellations and rejections of the request
// itself say nothing about the upstream.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var perm *permanentError
	return errors.As(err, &perm)
}

// CircuitBreakerRegistry holds one breaker per upstream
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
	policies map[string]CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a registry whose breakers default to config.
// The Alpha Vantage breaker uses AlphaVantageBreakerConfig unless overridden.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
		policies: map[string]CircuitBreakerConfig{
			BreakerAlphaVantage: AlphaVantageBreakerConfig,
		},
	}
}

// SetPolicy overrides the policy of one upstream. It only affects a breaker
// that has not been created yet.
func (r *CircuitBreakerRegistry) SetPolicy(name string, config CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[name] = config
}

// policy must be called with r.mu held
func (r *CircuitBreakerRegistry) policy(name string) CircuitBreakerConfig {
	if c, ok := r.policies[name]; ok {
		return c
	}
	return r.config
}

// GetBreaker returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	policy := r.policy(name)
	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:         name,
		MaxRequests:  policy.MaxRequests,
		Interval:     policy.Interval,
		Timeout:      policy.Timeout,
		ReadyToTrip:  policy.readyToTrip,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("upstream circuit changed state",
				"upstream", name,
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateGauge(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute calls fn through the named breaker. Rejections wrap both
// models.ErrSnapshotUnavailable and ErrBreakerOpen.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("upstream circuit open, call rejected", "upstream", name)
		return nil, fmt.Errorf("%w: %s: %w", models.ErrSnapshotUnavailable, name, ErrBreakerOpen)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Warn("upstream circuit probing, call rejected", "upstream", name)
		return nil, fmt.Errorf("%w: %s probe limit reached: %w", models.ErrSnapshotUnavailable, name, ErrBreakerOpen)
	}
	return result, err
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Status returns every breaker created so far, keyed by upstream name
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			Name:             name,
			State:            cb.State().String(),
			Requests:         counts.Requests,
			TotalSuccesses:   counts.TotalSuccesses,
			TotalFailures:    counts.TotalFailures,
			ConsecutiveSucc:  counts.ConsecutiveSuccesses,
			ConsecutiveFails: counts.ConsecutiveFailures,
		}
	}
	return status
}

// Open lists the upstreams whose breaker is currently open, sorted by name
func (r *CircuitBreakerRegistry) Open() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalMu       sync.Mutex
	globalRegistry *CircuitBreakerRegistry
)

// GetGlobalRegistry returns the process-wide registry used by the upstream clients
func GetGlobalRegistry() *CircuitBreakerRegistry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry. Tests use it to start
// from closed breakers.
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRegistry = r
}

// WithCircuitBreaker is the typed form of Execute on the global registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateGauge encodes a breaker state for the state gauge: 0 closed, 1 half-open, 2 open
func stateGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
