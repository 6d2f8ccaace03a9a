// Package tokentransfer implements the token transfer collector:
// ERC20 Transfer logs plus native-currency value transfers, normalized
// to a single core.TokenTransferEvent shape. Its polling loop is
// grounded on services/indexer/syncer.go's ticker-driven
// syncLoop/syncBlocksForNetwork/syncBlockForNetwork structure.
package tokentransfer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
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

// transferEventTopic is keccak256("Transfer(address,address,uint256)"),
// the ERC20 Transfer event signature.
const transferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// Selectors that indicate an ERC20 transfer was triggered by a
// contract call rather than a direct EOA-to-EOA transfer, per spec's
// 4-byte-selector heuristic.
const (
	selectorTransfer     = "0xa9059cbb" // transfer(address,uint256)
	selectorTransferFrom = "0x23b872dd" // transferFrom(address,address,uint256)
)

// TokenConfig describes one ERC20 token to decode amounts for.
// When no tokens are configured, the collector fetches Transfer logs
// for every token and decodes them with DefaultDecimals and the bare
// address as the symbol; when tokens are configured, only their logs
// are fetched.
type TokenConfig struct {
	Address  string
	Symbol   string
	Decimals int
}

// Config configures one network's token transfer collector.
type Config struct {
	Network          string
	PollInterval     time.Duration
	BatchSize        uint64
	StartBlock       uint64
	IncludeNative    bool
	NativeSymbol     string
	NativeDecimals   int
	Tokens           []TokenConfig
	DefaultDecimals  int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.NativeSymbol == "" {
		c.NativeSymbol = "ETH"
	}
	if c.NativeDecimals == 0 {
		c.NativeDecimals = 18
	}
	if c.DefaultDecimals == 0 {
		c.DefaultDecimals = 18
	}
}

// Collector is the token transfer collector for a single network.
type Collector struct {
	cfg     Config
	rpc     *chainrpc.Pool
	store   *statestore.Store
	log     *logrus.Entry
	tokens  map[string]TokenConfig // normalized address -> config

	events  chan core.Event
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	pollMu          sync.Mutex
	emittedThisPoll int
}

// New constructs a token transfer collector. It implements
// collectors.Constructor via the package-level registration in init().
func New(cfg Config, deps collectors.Dependencies) *Collector {
	cfg.applyDefaults()
	tokens := make(map[string]TokenConfig, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens[core.NormalizeAddress(t.Address)] = t
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Collector{
		cfg:    cfg,
		rpc:    deps.RPC,
		store:  deps.Store,
		log:    log.WithField("component", "token-transfer-collector").WithField("network", cfg.Network),
		tokens: tokens,
		events: make(chan core.Event, 1024),
		stopCh: make(chan struct{}),
	}
}

func init() {
	collectors.Register("token_transfer", func(rawCfg map[string]interface{}, deps collectors.Dependencies) (collectors.Collector, error) {
		cfg, err := configFromMap(rawCfg)
		if err != nil {
			return nil, err
		}
		return New(cfg, deps), nil
	})
}

// Name returns the collector's registered plugin name.
func (c *Collector) Name() string { return "token_transfer" }

// Events returns the channel new transfer events are published on.
func (c *Collector) Events() <-chan core.Event { return c.events }

// Start begins the polling loop in a background goroutine.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("token transfer collector for %s already running", c.cfg.Network)
	}
	c.running = true
	c.mu.Unlock()

	c.log.Info("starting token transfer collector")
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

func (c *Collector) cursorKey() string {
	return fmt.Sprintf("%s:token_transfer", c.cfg.Network)
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

// pollOnce implements spec's six-step token transfer polling
// algorithm: load cursor, fetch chain height, compute batch range,
// fetch+decode ERC20 logs and native transfers for the range, emit
// events, advance and persist the cursor only once the whole range has
// been processed without a fatal (non-per-item) error.
func (c *Collector) pollOnce(ctx context.Context) {
	pollStart := time.Now()
	c.resetEmittedCount()
	status := "ok"
	defer func() {
		metrics.Global().RecordCollectorPoll(c.cfg.Network, c.Name(), status, time.Since(pollStart))
		if n := c.emittedCount(); n > 0 {
			metrics.Global().RecordCollectorEvents(c.cfg.Network, c.Name(), n)
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

	c.log.WithFields(logrus.Fields{"start": start, "end": end, "height": height}).Debug("polling token transfers")

	if err := c.collectERC20(ctx, start, end); err != nil {
		c.log.WithError(err).Error("collect erc20 transfers, batch not advanced")
		status = "error"
		return
	}

	if c.cfg.IncludeNative {
		if err := c.collectNative(ctx, start, end); err != nil {
			c.log.WithError(err).Error("collect native transfers, batch not advanced")
			status = "error"
			return
		}
	}

	if err := c.store.SetLastBlock(ctx, c.cursorKey(), end); err != nil {
		c.log.WithError(err).Error("persist cursor")
	}
	metrics.Global().SetCollectorLastBlock(c.cfg.Network, c.Name(), end)
}

func (c *Collector) resetEmittedCount() {
	c.pollMu.Lock()
	c.emittedThisPoll = 0
	c.pollMu.Unlock()
}

func (c *Collector) emittedCount() int {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.emittedThisPoll
}

func (c *Collector) collectERC20(ctx context.Context, start, end uint64) error {
	var addresses []string
	for addr := range c.tokens {
		addresses = append(addresses, addr)
	}

	logs, err := c.rpc.GetLogs(ctx, start, end, addresses, []string{transferEventTopic})
	if err != nil {
		return fmt.Errorf("get logs: %w", err)
	}

	for _, lg := range logs {
		evt, err := c.decodeERC20Log(ctx, lg)
		if err != nil {
			c.log.WithError(err).WithField("tx", lg.TxHash).Warn("decode transfer log, skipping")
			continue
		}
		c.emit(evt)
	}
	return nil
}

func (c *Collector) decodeERC20Log(ctx context.Context, lg chainrpc.Log) (*core.TokenTransferEvent, error) {
	if len(lg.Topics) != 3 {
		return nil, fmt.Errorf("unexpected topic count %d", len(lg.Topics))
	}
	from, err := topicToAddress(lg.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("decode from topic: %w", err)
	}
	to, err := topicToAddress(lg.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("decode to topic: %w", err)
	}

	rawAmount, err := hexToDecimalString(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}

	blockNum, err := hexutil.DecodeUint64(lg.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("decode block number: %w", err)
	}
	logIndex, err := hexutil.DecodeUint64(lg.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("decode log index: %w", err)
	}

	tokenCfg, known := c.tokens[core.NormalizeAddress(lg.Address)]
	decimals := c.cfg.DefaultDecimals
	symbol := lg.Address
	if known {
		decimals = tokenCfg.Decimals
		symbol = tokenCfg.Symbol
	}

	selector, hasContractInteraction := c.triggerSelector(ctx, lg.TxHash)
	toIsContract, _ := c.rpc.IsContract(ctx, to)

	return &core.TokenTransferEvent{
		Network:                c.cfg.Network,
		BlockNumber:            blockNum,
		TxHash:                 lg.TxHash,
		LogIndex:               int(logIndex),
		TokenAddress:           lg.Address,
		TokenSymbol:            symbol,
		TokenDecimals:          decimals,
		From:                   from,
		To:                     to,
		RawAmount:              rawAmount,
		Amount:                 decimalToFloat(rawAmount, decimals),
		IsNative:               false,
		HasContractInteraction: hasContractInteraction,
		TriggerSelector:        selector,
		ToIsContract:           toIsContract,
	}, nil
}

// triggerSelector fetches the originating transaction's input and
// classifies it against the transfer/transferFrom selector table.
// Failure to fetch the transaction degrades to "unknown trigger"
// rather than failing the whole transfer decode.
func (c *Collector) triggerSelector(ctx context.Context, txHash string) (selector string, hasContractInteraction bool) {
	tx, err := c.rpc.GetTransactionByHash(ctx, txHash)
	if err != nil || len(tx.Input) < 10 {
		return "", false
	}
	sel := strings.ToLower(tx.Input[:10])
	switch sel {
	case selectorTransfer, selectorTransferFrom:
		return sel, true
	default:
		return sel, sel != "0x00000000" && len(tx.Input) > 2
	}
}

func (c *Collector) collectNative(ctx context.Context, start, end uint64) error {
	for n := start; n <= end; n++ {
		block, err := c.rpc.GetBlockByNumber(ctx, n)
		if err != nil {
			return fmt.Errorf("get block %d: %w", n, err)
		}
		for _, tx := range block.Transactions {
			evt, err := c.decodeNativeTx(ctx, block, tx)
			if err != nil {
				c.log.WithError(err).WithField("tx", tx.Hash).Debug("skip native tx")
				continue
			}
			if evt != nil {
				c.emit(evt)
			}
		}
	}
	return nil
}

func (c *Collector) decodeNativeTx(ctx context.Context, block *chainrpc.Block, tx chainrpc.BlockTransaction) (*core.TokenTransferEvent, error) {
	rawAmount, err := hexToDecimalString(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if rawAmount == "0" {
		return nil, nil
	}

	// Per Open Question (d): native-transfer contract-interaction
	// detection is intentionally weaker than the ERC20 path — it only
	// checks whether calldata is present, not what selector it is.
	hasContractInteraction := tx.Input != "" && tx.Input != "0x"
	toIsContract, _ := c.rpc.IsContract(ctx, tx.To)

	return &core.TokenTransferEvent{
		Network:                c.cfg.Network,
		BlockNumber:            block.Number,
		BlockTime:              time.Unix(int64(block.Timestamp), 0).UTC(),
		TxHash:                 tx.Hash,
		LogIndex:               -1,
		TokenSymbol:            c.cfg.NativeSymbol,
		TokenDecimals:          c.cfg.NativeDecimals,
		From:                   tx.From,
		To:                     tx.To,
		RawAmount:              rawAmount,
		Amount:                 decimalToFloat(rawAmount, c.cfg.NativeDecimals),
		IsNative:               true,
		HasContractInteraction: hasContractInteraction,
		ToIsContract:           toIsContract,
	}, nil
}

func (c *Collector) emit(evt *core.TokenTransferEvent) {
	event := core.Event{
		Kind:          core.EventKindTokenTransfer,
		TokenTransfer: evt,
		ID:            fmt.Sprintf("%s:%s:%d", evt.Network, evt.TxHash, evt.LogIndex),
		Network:       evt.Network,
		Source:        "token_transfer",
		ObservedAt:    time.Now().UTC(),
	}
	select {
	case c.events <- event:
		c.pollMu.Lock()
		c.emittedThisPoll++
		c.pollMu.Unlock()
	default:
		c.log.Warn("event channel full, dropping transfer event")
	}
}

func topicToAddress(topic string) (string, error) {
	trimmed := strings.TrimPrefix(topic, "0x")
	if len(trimmed) != 64 {
		return "", fmt.Errorf("invalid topic length %d", len(trimmed))
	}
	return "0x" + trimmed[24:], nil
}

func hexToDecimalString(hex string) (string, error) {
	if hex == "" || hex == "0x" {
		return "0", nil
	}
	v, err := hexutil.DecodeBig(hex)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// decimalToFloat converts a base-10 integer string and a decimals
// count into a float64 for display/analytics. Precision loss beyond
// float64's ~15 significant digits is acceptable here: the analytic
// engine's thresholds operate at human scale, not wei precision.
func decimalToFloat(raw string, decimals int) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	divisor := 1.0
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}
	return f / divisor
}

// configFromMap builds a Config from a YAML-decoded settings section.
// Numeric/boolean fields go through utils.ToInt/ToBool rather than a
// bare type assertion since a YAML scalar can decode as int, int64 or
// float64 depending on how it's written, and settings overridden from
// a string-typed source (env var substitution) arrive as strings.
func configFromMap(m map[string]interface{}) (Config, error) {
	cfg := Config{}
	cfg.Network = utils.ToString(m["network"])
	if cfg.Network == "" {
		return cfg, fmt.Errorf("token_transfer: network is required")
	}
	cfg.PollInterval = time.Duration(utils.ToInt(m["poll_interval_seconds"], 0)) * time.Second
	cfg.BatchSize = uint64(utils.ToInt(m["batch_size"], 0))
	cfg.StartBlock = uint64(utils.ToInt(m["start_block"], 0))
	cfg.IncludeNative = utils.ToBool(m["include_native"], false)
	if v := utils.ToString(m["native_symbol"]); v != "" {
		cfg.NativeSymbol = v
	}
	if raw, ok := m["tokens"].([]interface{}); ok {
		for _, item := range raw {
			tm, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			cfg.Tokens = append(cfg.Tokens, TokenConfig{
				Address:  utils.ToString(tm["address"]),
				Symbol:   utils.ToString(tm["symbol"]),
				Decimals: utils.ToInt(tm["decimals"], 0),
			})
		}
	}
	return cfg, nil
}
