// Package chainrpc implements the EVM RPC multi-provider: a pool of
// JSON-RPC HTTP endpoints with shuffled selection, per-endpoint rate
// limiting, periodic health probing and retry/circuit-breaker backed
// failover.
package chainrpc

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/sentinel/infrastructure/cache"
	sentinelerrors "github.com/R3E-Network/sentinel/infrastructure/errors"
	"github.com/R3E-Network/sentinel/infrastructure/metrics"
	"github.com/R3E-Network/sentinel/infrastructure/redaction"
)

// EndpointConfig describes one configured RPC endpoint.
type EndpointConfig struct {
	URL           string
	RateLimitRPS  float64 // 0 disables limiting for this endpoint
	RateLimitBurst int
}

// PoolConfig configures the pool as a whole.
type PoolConfig struct {
	Network             string
	Endpoints           []EndpointConfig
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	MaxConsecutiveFails int
	RequestTimeout      time.Duration
	MaxRetries          int
	HTTPClient          *http.Client
}

// DefaultPoolConfig mirrors the teacher pool's defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		MaxConsecutiveFails: 3,
		RequestTimeout:      10 * time.Second,
		MaxRetries:          3,
	}
}

type endpoint struct {
	cfg         EndpointConfig
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	healthy     bool
	fails       int
	lastCheck   time.Time
	lastLatency time.Duration
	avgLatency  float64 // exponential moving average, milliseconds
}

// Pool is a shuffled, health-aware, rate-limited pool of EVM JSON-RPC
// endpoints. Its selection and health-probing shape is grounded on
// infrastructure/chain/rpcpool.go; it additionally wires a per-endpoint
// token-bucket limiter and circuit breaker the teacher's pool does not
// have.
type Pool struct {
	mu        sync.RWMutex
	endpoints []*endpoint
	config    PoolConfig
	client    *http.Client
	log       *logrus.Entry
	network   string
	redactor  *redaction.Redactor
	codeCache *cache.Cache

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPool builds a pool from the given config. It returns an error if
// no endpoints are configured.
func NewPool(cfg PoolConfig, log *logrus.Entry) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("chainrpc: at least one endpoint is required")
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 5 * time.Second
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	endpoints := make([]*endpoint, 0, len(cfg.Endpoints))
	for _, ec := range cfg.Endpoints {
		var limiter *rate.Limiter
		if ec.RateLimitRPS > 0 {
			burst := ec.RateLimitBurst
			if burst <= 0 {
				burst = int(ec.RateLimitRPS)
				if burst < 1 {
					burst = 1
				}
			}
			limiter = rate.NewLimiter(rate.Limit(ec.RateLimitRPS), burst)
		}

		st := gobreaker.Settings{
			Name:        ec.URL,
			MaxRequests: 1,
			Timeout:     cfg.HealthCheckInterval,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.MaxConsecutiveFails)
			},
		}

		endpoints = append(endpoints, &endpoint{
			cfg:     ec,
			limiter: limiter,
			breaker: gobreaker.NewCircuitBreaker[[]byte](st),
			healthy: true,
		})
	}

	return &Pool{
		endpoints: endpoints,
		config:    cfg,
		client:    cfg.HTTPClient,
		log:       log.WithField("component", "chainrpc-pool"),
		network:   cfg.Network,
		redactor:  redaction.NewRedactor(redaction.DefaultConfig()),
		codeCache: cache.NewCache(cache.CacheConfig{DefaultTTL: 10 * time.Minute, MaxSize: 5000}),
		stopCh:    make(chan struct{}),
	}, nil
}

// redactedURL masks API keys embedded in an endpoint URL as key=value
// pairs (query params like ?apikey=...) before it reaches a log line.
// A key carried as a bare path segment is not masked.
func (p *Pool) redactedURL(url string) string {
	return p.redactor.RedactString(url)
}

// Start launches the background health-check loop.
func (p *Pool) Start(ctx context.Context) {
	go p.healthCheckLoop(ctx)
}

// Stop terminates the health-check loop.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// shuffledHealthy returns a copy of all the pool's endpoints, healthy
// or not, in random order; selectEndpoint walks it for the first
// healthy and rate-eligible one.
func (p *Pool) shuffledHealthy() []*endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	candidates := make([]*endpoint, len(p.endpoints))
	copy(candidates, p.endpoints)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates
}

// selectEndpoint picks the first shuffled endpoint that is healthy and
// not currently rate limited. If every healthy endpoint is momentarily
// rate limited it falls back to the first healthy endpoint regardless
// of rate (the caller's retry loop will re-check on the next attempt).
func (p *Pool) selectEndpoint() (*endpoint, error) {
	candidates := p.shuffledHealthy()

	var firstHealthy *endpoint
	for _, ep := range candidates {
		p.mu.RLock()
		healthy := ep.healthy
		p.mu.RUnlock()
		if !healthy {
			continue
		}
		if firstHealthy == nil {
			firstHealthy = ep
		}
		if ep.limiter == nil || ep.limiter.Allow() {
			return ep, nil
		}
	}
	if firstHealthy != nil {
		return firstHealthy, nil
	}
	return nil, fmt.Errorf("chainrpc: no healthy endpoints available")
}

func (p *Pool) markUnhealthy(ep *endpoint) {
	p.mu.Lock()
	ep.fails++
	if ep.fails >= p.config.MaxConsecutiveFails {
		ep.healthy = false
	}
	p.mu.Unlock()
	p.reportHealthyCount()
}

// markUnhealthyNow marks ep unhealthy immediately, bypassing the
// consecutive-failure counter: a provider-returned capacity/internal
// error code (see marksUnhealthy) means the endpoint itself reported
// it cannot serve the request right now, so failover to another
// endpoint shouldn't wait for repeated failures.
func (p *Pool) markUnhealthyNow(ep *endpoint) {
	p.mu.Lock()
	ep.fails++
	ep.healthy = false
	p.mu.Unlock()
	p.reportHealthyCount()
}

func (p *Pool) markHealthy(ep *endpoint, latency time.Duration) {
	p.mu.Lock()
	ep.fails = 0
	ep.healthy = true
	ep.lastLatency = latency
	ms := float64(latency.Milliseconds())
	if ep.avgLatency == 0 {
		ep.avgLatency = ms
	} else {
		ep.avgLatency = (ep.avgLatency*7 + ms*3) / 10
	}
	ep.lastCheck = time.Now()
	p.mu.Unlock()
	p.reportHealthyCount()
}

func (p *Pool) reportHealthyCount() {
	metrics.Global().SetRPCEndpointsHealthy(p.network, p.HealthyCount())
}

func (p *Pool) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	p.checkAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkAll(ctx)
		}
	}
}

func (p *Pool) checkAll(ctx context.Context) {
	p.mu.RLock()
	endpoints := make([]*endpoint, len(p.endpoints))
	copy(endpoints, p.endpoints)
	p.mu.RUnlock()

	for _, ep := range endpoints {
		p.checkOne(ctx, ep)
	}
}

func (p *Pool) checkOne(ctx context.Context, ep *endpoint) {
	ctx, cancel := context.WithTimeout(ctx, p.config.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	_, err := p.callRaw(ctx, ep, "eth_blockNumber", []interface{}{})
	latency := time.Since(start)
	if err != nil {
		p.log.WithError(err).WithField("endpoint", p.redactedURL(ep.cfg.URL)).Warn("health check failed")
		p.markUnhealthy(ep)
		return
	}
	p.markHealthy(ep, latency)
}

// Snapshot returns the current health state of every endpoint for
// diagnostics and tests.
func (p *Pool) Snapshot() []EndpointSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]EndpointSnapshot, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, EndpointSnapshot{
			URL:              ep.cfg.URL,
			Healthy:          ep.healthy,
			ConsecutiveFails: ep.fails,
			LastCheck:        ep.lastCheck,
			LastLatency:      ep.lastLatency,
			AvgLatencyMs:     ep.avgLatency,
		})
	}
	return out
}

// EndpointSnapshot is the read-only view of one endpoint's health.
type EndpointSnapshot struct {
	URL              string
	Healthy          bool
	ConsecutiveFails int
	LastCheck        time.Time
	LastLatency      time.Duration
	AvgLatencyMs     float64
}

// HealthyCount returns the number of endpoints currently marked
// healthy.
func (p *Pool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, ep := range p.endpoints {
		if ep.healthy {
			n++
		}
	}
	return n
}

// Call performs a JSON-RPC request, retrying across endpoints on
// failure up to MaxRetries times. Retries on a single endpoint use
// exponential backoff via backoff/v4; failover to a different
// endpoint happens immediately when an attempt marks it unhealthy.
func (p *Pool) Call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		ep, err := p.selectEndpoint()
		if err != nil {
			metrics.Global().RecordRPCRequest(p.network, method, "no_endpoint", time.Since(start))
			return nil, err
		}

		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
		var result []byte
		opErr := backoff.Retry(func() error {
			var callErr error
			result, callErr = p.callThroughBreaker(ctx, ep)(method, params)
			return callErr
		}, bo)

		if opErr == nil {
			p.markHealthy(ep, ep.lastLatency)
			metrics.Global().RecordRPCRequest(p.network, method, "ok", time.Since(start))
			return result, nil
		}

		lastErr = opErr
		switch {
		case marksUnhealthy(opErr):
			p.markUnhealthyNow(ep)
		case opErr == gobreaker.ErrOpenState:
			p.markUnhealthy(ep)
		}
		p.log.WithError(opErr).WithFields(logrus.Fields{
			"endpoint": p.redactedURL(ep.cfg.URL),
			"method":   method,
			"attempt":  attempt,
		}).Warn("rpc call failed, retrying with another endpoint")
	}

	metrics.Global().RecordRPCRequest(p.network, method, "error", time.Since(start))
	return nil, sentinelerrors.BlockchainError("rpc_call:"+method, fmt.Errorf("chainrpc: all retries exhausted: %w", lastErr))
}

func (p *Pool) callThroughBreaker(ctx context.Context, ep *endpoint) func(method string, params []interface{}) ([]byte, error) {
	return func(method string, params []interface{}) ([]byte, error) {
		return ep.breaker.Execute(func() ([]byte, error) {
			start := time.Now()
			b, err := p.callRaw(ctx, ep, method, params)
			ep.lastLatency = time.Since(start)
			return b, err
		})
	}
}
