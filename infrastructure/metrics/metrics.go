// Package metrics provides Prometheus metrics collection for the
// pipeline runtime: collector polling, the event/action queues, the
// token-movement detector cascade and the chain RPC pool.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/sentinel/infrastructure/runtime"
)

// Metrics holds all Prometheus collectors exposed by a running
// Sentinel process.
type Metrics struct {
	// Collector metrics
	CollectorPollsTotal   *prometheus.CounterVec
	CollectorPollDuration *prometheus.HistogramVec
	CollectorEventsTotal  *prometheus.CounterVec
	CollectorLastBlock    *prometheus.GaugeVec

	// Pipeline metrics
	EventsHandledTotal  *prometheus.CounterVec
	ActionsTakenTotal   *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	StageIdleSeconds    *prometheus.GaugeVec

	// Token-movement metrics
	AlertsRaisedTotal    *prometheus.CounterVec
	AlertsThrottledTotal *prometheus.CounterVec

	// Chain RPC metrics
	RPCRequestsTotal    *prometheus.CounterVec
	RPCRequestDuration  *prometheus.HistogramVec
	RPCEndpointsHealthy *prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Process health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
// against the default Prometheus registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry,
// for tests that need an isolated registerer.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CollectorPollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_collector_polls_total",
				Help: "Total number of collector poll iterations",
			},
			[]string{"network", "collector", "status"},
		),
		CollectorPollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_collector_poll_duration_seconds",
				Help:    "Time taken to poll one collector iteration",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"network", "collector"},
		),
		CollectorEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_collector_events_total",
				Help: "Total number of events emitted by a collector",
			},
			[]string{"network", "collector"},
		),
		CollectorLastBlock: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_collector_last_block",
				Help: "Last block number a collector has advanced its cursor to",
			},
			[]string{"network", "collector"},
		),

		EventsHandledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_events_handled_total",
				Help: "Total number of events dequeued and run through the strategy cascade",
			},
			[]string{"network"},
		),
		ActionsTakenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_actions_taken_total",
				Help: "Total number of actions dequeued and fanned out to executors",
			},
			[]string{"network"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_queue_depth",
				Help: "Current depth of a durable pipeline queue",
			},
			[]string{"network", "queue"},
		),
		StageIdleSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_stage_idle_seconds",
				Help: "Seconds since a pipeline stage last processed an item",
			},
			[]string{"network", "stage"},
		),

		AlertsRaisedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_raised_total",
				Help: "Total number of alerts raised by a detector",
			},
			[]string{"network", "detector", "severity"},
		),
		AlertsThrottledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_throttled_total",
				Help: "Total number of alerts dropped by dedup throttling",
			},
			[]string{"network"},
		),

		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_rpc_requests_total",
				Help: "Total number of chain RPC calls issued through the pool",
			},
			[]string{"network", "method", "status"},
		),
		RPCRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_rpc_request_duration_seconds",
				Help:    "Chain RPC call duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"network", "method"},
		),
		RPCEndpointsHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_rpc_endpoints_healthy",
				Help: "Current number of healthy endpoints in an RPC pool",
			},
			[]string{"network"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_errors_total",
				Help: "Total number of errors by component and operation",
			},
			[]string{"component", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_info",
				Help: "Build and environment information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.CollectorPollsTotal,
			m.CollectorPollDuration,
			m.CollectorEventsTotal,
			m.CollectorLastBlock,
			m.EventsHandledTotal,
			m.ActionsTakenTotal,
			m.QueueDepth,
			m.StageIdleSeconds,
			m.AlertsRaisedTotal,
			m.AlertsThrottledTotal,
			m.RPCRequestsTotal,
			m.RPCRequestDuration,
			m.RPCEndpointsHealthy,
			m.ErrorsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordCollectorPoll records the outcome and duration of one collector
// poll iteration.
func (m *Metrics) RecordCollectorPoll(network, collector, status string, duration time.Duration) {
	m.CollectorPollsTotal.WithLabelValues(network, collector, status).Inc()
	m.CollectorPollDuration.WithLabelValues(network, collector).Observe(duration.Seconds())
}

// RecordCollectorEvents increments the event counter for one collector.
func (m *Metrics) RecordCollectorEvents(network, collector string, n int) {
	m.CollectorEventsTotal.WithLabelValues(network, collector).Add(float64(n))
}

// SetCollectorLastBlock records the block number a collector's cursor
// has advanced to.
func (m *Metrics) SetCollectorLastBlock(network, collector string, block uint64) {
	m.CollectorLastBlock.WithLabelValues(network, collector).Set(float64(block))
}

// RecordEventHandled increments the handled-events counter for a network.
func (m *Metrics) RecordEventHandled(network string) {
	m.EventsHandledTotal.WithLabelValues(network).Inc()
}

// RecordActionTaken increments the taken-actions counter for a network.
func (m *Metrics) RecordActionTaken(network string) {
	m.ActionsTakenTotal.WithLabelValues(network).Inc()
}

// SetQueueDepth records a durable queue's current length.
func (m *Metrics) SetQueueDepth(network, queue string, depth int) {
	m.QueueDepth.WithLabelValues(network, queue).Set(float64(depth))
}

// SetStageIdleSeconds records how long a pipeline stage has been idle.
func (m *Metrics) SetStageIdleSeconds(network, stage string, idle time.Duration) {
	m.StageIdleSeconds.WithLabelValues(network, stage).Set(idle.Seconds())
}

// RecordAlert increments the alerts-raised counter for one detector.
func (m *Metrics) RecordAlert(network, detector, severity string) {
	m.AlertsRaisedTotal.WithLabelValues(network, detector, severity).Inc()
}

// RecordAlertThrottled increments the throttled-alerts counter.
func (m *Metrics) RecordAlertThrottled(network string) {
	m.AlertsThrottledTotal.WithLabelValues(network).Inc()
}

// RecordRPCRequest records the outcome and duration of one chain RPC call.
func (m *Metrics) RecordRPCRequest(network, method, status string, duration time.Duration) {
	m.RPCRequestsTotal.WithLabelValues(network, method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(network, method).Observe(duration.Seconds())
}

// SetRPCEndpointsHealthy records the current healthy-endpoint count for a pool.
func (m *Metrics) SetRPCEndpointsHealthy(network string, count int) {
	m.RPCEndpointsHealthy.WithLabelValues(network).Set(float64(count))
}

// RecordError records an error by component and operation.
func (m *Metrics) RecordError(component, operation string) {
	m.ErrorsTotal.WithLabelValues(component, operation).Inc()
}

// UpdateUptime updates the process uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, initializing it with a
// placeholder name if it hasn't been set up yet.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("sentinel")
	}
	return globalMetrics
}
