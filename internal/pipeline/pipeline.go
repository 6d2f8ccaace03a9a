// Package pipeline implements the runtime that wires collectors,
// strategies and executors together: startup, the per-collector
// driver goroutines, the strategy worker, the executor worker, the
// stats task, and shutdown. Its start/stop guard and overall shape are
// grounded on services/indexer/service.go; its ordered
// startup/shutdown hooks and in-flight operation tracking are
// grounded on system/framework/lifecycle (hooks.go, graceful.go).
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/sentinel/infrastructure/metrics"
	"github.com/R3E-Network/sentinel/internal/chainrpc"
	"github.com/R3E-Network/sentinel/internal/collectors"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/executors"
	"github.com/R3E-Network/sentinel/internal/statestore"
	"github.com/R3E-Network/sentinel/internal/strategies"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
	"github.com/R3E-Network/sentinel/system/framework/lifecycle"
)

// Supervisor is the pipeline runtime for one network.
type Supervisor struct {
	cfg   Config
	store *statestore.Store
	rpc   *chainrpc.Pool
	log   *logrus.Entry

	eventsQ  *statestore.Queue
	actionsQ *statestore.Queue

	collectors []collectors.Collector
	strategies []strategies.Strategy
	executors  []executors.Executor

	hooks *lifecycle.Hooks
	gs    *lifecycle.GracefulShutdown

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	statsMu       sync.Mutex
	eventsHandled int64
	actionsTaken  int64
	lastEventAt   time.Time
	lastActionAt  time.Time
}

// New constructs a supervisor, building every configured collector,
// strategy and executor from the plugin registries and opening the
// pipeline's state store and durable queues. priceOracle may be nil,
// in which case USD-denominated detector thresholds are inert.
func New(cfg Config, rpc *chainrpc.Pool, priceOracle tmctx.PriceOracle, log *logrus.Entry) (*Supervisor, error) {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "pipeline").WithField("network", cfg.Network)

	store, err := statestore.Open(cfg.StateDir + "/state.db")
	if err != nil {
		return nil, fmt.Errorf("pipeline: open state store: %w", err)
	}

	eventsQ, err := statestore.OpenQueue(cfg.QueueDir, cfg.GroupName, "events")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("pipeline: open events queue: %w", err)
	}
	actionsQ, err := statestore.OpenQueue(cfg.QueueDir, cfg.GroupName, "actions")
	if err != nil {
		store.Close()
		eventsQ.Close()
		return nil, fmt.Errorf("pipeline: open actions queue: %w", err)
	}

	s := &Supervisor{
		cfg:      cfg,
		store:    store,
		rpc:      rpc,
		log:      log,
		eventsQ:  eventsQ,
		actionsQ: actionsQ,
		hooks:    lifecycle.NewHooks(),
		gs:       lifecycle.NewGracefulShutdown(),
		stopCh:   make(chan struct{}),
	}

	deps := collectors.Dependencies{RPC: rpc, Store: store, Log: log}
	for _, spec := range cfg.Collectors {
		c, err := collectors.New(spec.Name, spec.Settings, deps)
		if err != nil {
			return nil, fmt.Errorf("pipeline: build collector %s: %w", spec.Name, err)
		}
		s.collectors = append(s.collectors, c)
	}
	for _, spec := range cfg.Strategies {
		st, err := strategies.New(spec.Name, spec.Settings, strategies.Dependencies{PriceOracle: priceOracle})
		if err != nil {
			return nil, fmt.Errorf("pipeline: build strategy %s: %w", spec.Name, err)
		}
		s.strategies = append(s.strategies, st)
	}
	for _, spec := range cfg.Executors {
		ex, err := executors.New(spec.Name, spec.Settings)
		if err != nil {
			return nil, fmt.Errorf("pipeline: build executor %s: %w", spec.Name, err)
		}
		s.executors = append(s.executors, ex)
	}

	return s, nil
}

// Start runs the pipeline's startup sequence: pre-start hooks, one
// driver goroutine per collector, the strategy worker, the executor
// worker, and the stats task.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.hooks.RunPreStart(ctx); err != nil {
		return fmt.Errorf("pipeline: pre-start hooks: %w", err)
	}

	for _, c := range s.collectors {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("pipeline: start collector %s: %w", c.Name(), err)
		}
		s.wg.Add(1)
		go s.collectorDriver(ctx, c)
	}

	s.wg.Add(1)
	go s.strategyWorker(ctx)

	s.wg.Add(1)
	go s.executorWorker(ctx)

	s.wg.Add(1)
	go s.statsTask(ctx)

	if err := s.hooks.RunPostStart(ctx); err != nil {
		return fmt.Errorf("pipeline: post-start hooks: %w", err)
	}

	s.log.Info("pipeline started")
	return nil
}

// collectorDriver drains one collector's event channel into the
// durable events queue until the collector closes it or shutdown is
// requested.
func (s *Supervisor) collectorDriver(ctx context.Context, c collectors.Collector) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case evt, ok := <-c.Events():
			if !ok {
				return
			}
			guard := lifecycle.NewOperationGuard(s.gs)
			if guard == nil {
				return
			}
			if err := s.eventsQ.Push(ctx, evt); err != nil {
				s.log.WithError(err).Error("push event to queue")
			}
			guard.Close()
		}
	}
}

// strategyWorker dequeues events and runs every configured strategy
// over each one, pushing any raised alerts onto the actions queue. An
// empty queue is polled every 200ms rather than blocking, so shutdown
// is always responsive.
func (s *Supervisor) strategyWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		var evt core.Event
		err := s.eventsQ.Pop(ctx, &evt)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		s.statsMu.Lock()
		s.eventsHandled++
		s.lastEventAt = time.Now()
		s.statsMu.Unlock()
		metrics.Global().RecordEventHandled(s.cfg.Network)

		for _, strat := range s.strategies {
			for _, alert := range strat.Process(evt) {
				action := core.Action{Kind: "alert", Alert: alert, CreatedAt: time.Now().UTC()}
				if err := s.actionsQ.Push(ctx, action); err != nil {
					s.log.WithError(err).Error("push action to queue")
				}
				metrics.Global().RecordAlert(s.cfg.Network, alert.Source, string(alert.Severity))
			}
		}
	}
}

// executorWorker dequeues actions and runs every configured executor
// against each one concurrently.
func (s *Supervisor) executorWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		var action core.Action
		err := s.actionsQ.Pop(ctx, &action)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		s.statsMu.Lock()
		s.actionsTaken++
		s.lastActionAt = time.Now()
		s.statsMu.Unlock()
		metrics.Global().RecordActionTaken(s.cfg.Network)

		var wg sync.WaitGroup
		for _, ex := range s.executors {
			wg.Add(1)
			go func(ex executors.Executor) {
				defer wg.Done()
				if err := ex.Execute(ctx, action); err != nil {
					s.log.WithError(err).WithField("executor", ex.Name()).Error("execute action")
				}
			}(ex)
		}
		wg.Wait()
	}
}

// Stop runs the shutdown sequence: stop every collector, signal the
// workers to exit, wait for in-flight operations to drain, run
// post-stop hooks, and close the queues and state store.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.hooks.RunPreStop(ctx); err != nil {
		s.log.WithError(err).Warn("pre-stop hooks")
	}

	for _, c := range s.collectors {
		c.Stop()
	}
	close(s.stopCh)

	s.gs.Shutdown()
	if err := s.gs.WaitWithTimeout(10 * time.Second); err != nil {
		s.log.WithError(err).Warn("timed out waiting for in-flight operations")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.log.Warn("timed out waiting for pipeline goroutines to exit")
	}

	if err := s.hooks.RunPostStop(ctx); err != nil {
		s.log.WithError(err).Warn("post-stop hooks")
	}

	s.eventsQ.Close()
	s.actionsQ.Close()
	s.store.Close()

	s.log.Info("pipeline stopped")
	return nil
}

// Hooks exposes the pipeline's lifecycle hooks so main() can register
// extra startup/shutdown behavior (e.g. metrics server lifecycle)
// without the pipeline package knowing about it.
func (s *Supervisor) Hooks() *lifecycle.Hooks { return s.hooks }
