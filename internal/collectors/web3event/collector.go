// Package web3event implements the generic web3 event collector:
// undecoded EVM logs matching a configured address/topic filter,
// surfaced to strategies that don't need the token-transfer shape.
package web3event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/sentinel/infrastructure/metrics"
	"github.com/R3E-Network/sentinel/infrastructure/utils"
	"github.com/R3E-Network/sentinel/internal/chainrpc"
	"github.com/R3E-Network/sentinel/internal/collectors"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/statestore"
)

// Config configures one network's generic web3 event collector.
type Config struct {
	Network      string
	PollInterval time.Duration
	BatchSize    uint64
	StartBlock   uint64
	Addresses    []string
	Topics       []string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
}

// Collector polls eth_getLogs for a configured filter and emits
// Web3LogEvent values without decoding them further.
type Collector struct {
	cfg   Config
	rpc   *chainrpc.Pool
	store *statestore.Store
	log   *logrus.Entry

	events  chan core.Event
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func init() {
	collectors.Register("web3_event", func(rawCfg map[string]interface{}, deps collectors.Dependencies) (collectors.Collector, error) {
		cfg, err := configFromMap(rawCfg)
		if err != nil {
			return nil, err
		}
		return New(cfg, deps), nil
	})
}

// New constructs a generic web3 event collector.
func New(cfg Config, deps collectors.Dependencies) *Collector {
	cfg.applyDefaults()
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Collector{
		cfg:    cfg,
		rpc:    deps.RPC,
		store:  deps.Store,
		log:    log.WithField("component", "web3-event-collector").WithField("network", cfg.Network),
		events: make(chan core.Event, 1024),
		stopCh: make(chan struct{}),
	}
}

// Name returns the collector's registered plugin name.
func (c *Collector) Name() string { return "web3_event" }

// Events returns the channel new log events are published on.
func (c *Collector) Events() <-chan core.Event { return c.events }

func (c *Collector) cursorKey() string {
	return fmt.Sprintf("%s:web3_event", c.cfg.Network)
}

// Start begins the polling loop in a background goroutine.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("web3 event collector for %s already running", c.cfg.Network)
	}
	c.running = true
	c.mu.Unlock()

	c.log.Info("starting web3 event collector")
	go c.pollLoop(ctx)
	return nil
}

// Stop terminates the polling loop.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Collector) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Collector) pollOnce(ctx context.Context) {
	pollStart := time.Now()
	status := "ok"
	emitted := 0
	defer func() {
		metrics.Global().RecordCollectorPoll(c.cfg.Network, c.Name(), status, time.Since(pollStart))
		if emitted > 0 {
			metrics.Global().RecordCollectorEvents(c.cfg.Network, c.Name(), emitted)
		}
	}()

	start, err := c.store.GetLastBlock(ctx, c.cursorKey())
	if err != nil {
		start = c.cfg.StartBlock
	} else {
		start++
	}

	height, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		c.log.WithError(err).Error("get block number")
		status = "error"
		return
	}
	if start > height {
		return
	}

	end := start + c.cfg.BatchSize - 1
	if end > height {
		end = height
	}

	logs, err := c.rpc.GetLogs(ctx, start, end, c.cfg.Addresses, c.cfg.Topics)
	if err != nil {
		c.log.WithError(err).Error("get logs, batch not advanced")
		status = "error"
		return
	}

	for _, lg := range logs {
		evt, err := decodeLog(c.cfg.Network, lg)
		if err != nil {
			c.log.WithError(err).WithField("tx", lg.TxHash).Warn("decode log, skipping")
			continue
		}
		c.emit(evt)
		emitted++
	}

	if err := c.store.SetLastBlock(ctx, c.cursorKey(), end); err != nil {
		c.log.WithError(err).Error("persist cursor")
	}
	metrics.Global().SetCollectorLastBlock(c.cfg.Network, c.Name(), end)
}

func decodeLog(network string, lg chainrpc.Log) (*core.Web3LogEvent, error) {
	blockNum, err := hexutil.DecodeUint64(lg.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("decode block number: %w", err)
	}
	logIndex, err := hexutil.DecodeUint64(lg.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("decode log index: %w", err)
	}
	return &core.Web3LogEvent{
		Network:     network,
		BlockNumber: blockNum,
		TxHash:      lg.TxHash,
		LogIndex:    int(logIndex),
		Address:     lg.Address,
		Topics:      lg.Topics,
		Data:        lg.Data,
	}, nil
}

func (c *Collector) emit(evt *core.Web3LogEvent) {
	event := core.Event{
		Kind:       core.EventKindWeb3Log,
		Web3Log:    evt,
		ID:         fmt.Sprintf("%s:%s:%d", evt.Network, evt.TxHash, evt.LogIndex),
		Network:    evt.Network,
		Source:     "web3_event",
		ObservedAt: time.Now().UTC(),
	}
	select {
	case c.events <- event:
	default:
		c.log.Warn("event channel full, dropping log event")
	}
}

func configFromMap(m map[string]interface{}) (Config, error) {
	cfg := Config{}
	cfg.Network = utils.ToString(m["network"])
	if cfg.Network == "" {
		return cfg, fmt.Errorf("web3_event: network is required")
	}
	cfg.PollInterval = time.Duration(utils.ToInt(m["poll_interval_seconds"], 0)) * time.Second
	cfg.BatchSize = uint64(utils.ToInt(m["batch_size"], 0))
	cfg.StartBlock = uint64(utils.ToInt(m["start_block"], 0))
	if raw, ok := m["addresses"].([]interface{}); ok {
		for _, a := range raw {
			if s := utils.ToString(a); s != "" {
				cfg.Addresses = append(cfg.Addresses, s)
			}
		}
	}
	if raw, ok := m["topics"].([]interface{}); ok {
		for _, t := range raw {
			if s := utils.ToString(t); s != "" {
				cfg.Topics = append(cfg.Topics, s)
			}
		}
	}
	cfg.Addresses = utils.Unique(cfg.Addresses)
	return cfg, nil
}
