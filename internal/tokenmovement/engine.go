// Package tokenmovement implements the token-movement analytic
// engine: rolling per-token and per-address statistics, the
// whitelist/small-transfer/simple-transfer/dex-trade filter cascade,
// the significant-transfer/high-frequency/continuous-flow/
// periodic-transfer/multi-hop/wash-trading detector cascade, combined
// alerts for watched entities, and alert throttling/dedup. This is the
// modular implementation named authoritative by the corresponding
// Open Question decision recorded in DESIGN.md.
package tokenmovement

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/sentinel/infrastructure/metrics"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/detectors"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/filters"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

const recentTransfersPerAddress = 200

// memStats is the engine's in-memory implementation of
// tmctx.StatsStore: rolling per-(network,token) statistics and
// per-(network,address) activity, including a bounded ring buffer of
// recent transfers for the sequence-dependent detectors.
type memStats struct {
	mu      sync.Mutex
	tokens  map[string]*core.TokenStats
	addrs   map[string]*core.AddressStats
	history map[string][]*core.TokenTransferEvent
}

func newMemStats() *memStats {
	return &memStats{
		tokens:  make(map[string]*core.TokenStats),
		addrs:   make(map[string]*core.AddressStats),
		history: make(map[string][]*core.TokenTransferEvent),
	}
}

func tokenKey(network, token string) string  { return network + ":" + token }
func addrKey(network, addr string) string    { return network + ":" + addr }

func (m *memStats) TokenStats(network, token string) *core.TokenStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[tokenKey(network, token)]
}

func (m *memStats) AddressStats(network, address string) *core.AddressStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addrs[addrKey(network, address)]
}

func (m *memStats) RecentTransfers(network, address string, limit int) []*core.TokenTransferEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.history[addrKey(network, address)]
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]*core.TokenTransferEvent, len(hist))
	copy(out, hist)
	return out
}

// observe folds a new transfer into every rolling structure it
// touches: the token's amount distribution, both participants'
// address stats, and both participants' transfer history ring
// buffers.
func (m *memStats) observe(evt *core.TokenTransferEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tk := tokenKey(evt.Network, evt.TokenAddress)
	ts, ok := m.tokens[tk]
	if !ok {
		ts = &core.TokenStats{Network: evt.Network, TokenAddress: evt.TokenAddress, WindowSize: 500}
		m.tokens[tk] = ts
	}
	ts.Observe(evt.Amount)

	m.touchAddress(evt.Network, evt.From, evt, false)
	m.touchAddress(evt.Network, evt.To, evt, true)
}

func (m *memStats) touchAddress(network, address string, evt *core.TokenTransferEvent, inbound bool) {
	if address == "" {
		return
	}
	ak := addrKey(network, address)
	as, ok := m.addrs[ak]
	if !ok {
		as = &core.AddressStats{Network: network, Address: address, FirstSeenAt: evt.BlockTime}
		m.addrs[ak] = as
	}
	as.TransferCount++
	if inbound {
		as.TotalIn += evt.Amount
	} else {
		as.TotalOut += evt.Amount
	}
	as.LastSeenAt = evt.BlockTime

	hist := append(m.history[ak], evt)
	if len(hist) > recentTransfersPerAddress {
		hist = hist[len(hist)-recentTransfersPerAddress:]
	}
	m.history[ak] = hist
}

// Engine runs the full filter and detector cascade over a stream of
// token transfer events.
type Engine struct {
	cfg       tmctx.Config
	stats     *memStats
	filters   []tmctx.Filter
	detectors []tmctx.Detector
	oracle    tmctx.PriceOracle

	mu          sync.Mutex
	lastAlertAt map[string]time.Time

	watched       map[string]bool // addresses under combined-alert watch
	watchedTokens map[string]bool // token addresses under combined-alert watch
}

// SetPriceOracle wires a USD price source into the detector cascade.
// Without one, SignificantTransferUSDThreshold has no effect.
func (e *Engine) SetPriceOracle(oracle tmctx.PriceOracle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oracle = oracle
}

// New builds an engine with the standard filter/detector cascades in
// spec order.
func New(cfg tmctx.Config) *Engine {
	return &Engine{
		cfg:   cfg,
		stats: newMemStats(),
		filters: []tmctx.Filter{
			filters.Whitelist{},
			filters.SmallTransfer{},
			filters.SimpleTransfer{},
			filters.DexTrade{},
		},
		detectors: []tmctx.Detector{
			detectors.SignificantTransfer{},
			detectors.HighFrequency{},
			detectors.ContinuousFlow{},
			detectors.PeriodicTransfer{},
			detectors.MultiHop{},
			detectors.WashTrading{},
		},
		lastAlertAt:   make(map[string]time.Time),
		watched:       make(map[string]bool),
		watchedTokens: make(map[string]bool),
	}
}

// Watch adds an address to the watched-entity set: when the event
// touches a watched address and is also significant, a DEX trade, or a
// high-interest token, the engine raises an additional combined alert
// noting the entity is under watch.
func (e *Engine) Watch(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watched[core.NormalizeAddress(address)] = true
}

// WatchToken adds a token address to the watched-entity set, the
// token-side counterpart to Watch.
func (e *Engine) WatchToken(tokenAddress string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchedTokens[core.NormalizeAddress(tokenAddress)] = true
}

// Process runs one transfer event through the filter cascade, then
// (unless filtered) the detector cascade, updating rolling stats
// first so detectors see the current event in their own history.
// Returns the throttled, deduplicated set of alerts to raise.
func (e *Engine) Process(evt *core.TokenTransferEvent) []core.Alert {
	if evt.BlockTime.IsZero() {
		evt.BlockTime = time.Now().UTC()
	}

	e.mu.Lock()
	oracle := e.oracle
	isWatchedFrom := e.watched[core.NormalizeAddress(evt.From)]
	isWatchedTo := e.watched[core.NormalizeAddress(evt.To)]
	isWatchedToken := e.watchedTokens[core.NormalizeAddress(evt.TokenAddress)]
	e.mu.Unlock()

	ctx := &tmctx.Context{
		Event:  evt,
		Stats:  e.stats,
		Config: e.cfg,
		Oracle: oracle,

		IsWatchedFrom:       isWatchedFrom,
		IsWatchedTo:         isWatchedTo,
		IsWatchedToken:      isWatchedToken,
		IsHighInterestToken: e.cfg.HighInterestTokens[core.NormalizeAddress(evt.TokenAddress)],
	}

	// Classified up front so the simple-transfer filter (which runs
	// before the detector cascade) can consult it; the
	// significant_transfer detector reasserts the same value once it
	// runs.
	ctx.IsSignificantTransfer, _, _ = detectors.ClassifySignificant(ctx)

	for _, f := range e.filters {
		if filtered, _ := f.ShouldFilter(ctx); filtered {
			e.stats.observe(evt)
			return nil
		}
	}

	e.stats.observe(evt)

	var raised []*core.Alert
	for _, d := range e.detectors {
		raised = append(raised, d.Detect(ctx)...)
	}

	raised = append(raised, e.combinedWatchedEntityAlerts(ctx, raised)...)

	return e.throttle(raised)
}

// combinedWatchedEntityAlerts raises one extra alert when the event
// touches a watched address/token and is also significant, a DEX
// trade, or a high-interest token. A watched entity merely tripping an
// unrelated detector (e.g. high_frequency or periodic_transfer) is
// intentionally not alerted here; that noise control is the point of
// gating on the three verdict flags rather than on "any alert fired".
func (e *Engine) combinedWatchedEntityAlerts(ctx *tmctx.Context, raised []*core.Alert) []*core.Alert {
	if !ctx.Watched() {
		return nil
	}
	if !ctx.IsSignificantTransfer && !ctx.IsDexTrade && !ctx.IsHighInterestToken {
		return nil
	}

	triggering := ""
	message := "a watched entity was involved in a significant transfer, DEX trade or high-interest token transfer"
	if len(raised) > 0 {
		triggering = raised[0].Title
		message = "a watched address triggered " + triggering
	}

	evt := ctx.Event
	return []*core.Alert{{
		Title:    "Watched Entity Activity",
		Message:  message,
		Severity: core.SeverityHigh,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"triggering_alert":        triggering,
			"is_significant_transfer": ctx.IsSignificantTransfer,
			"is_dex_trade":            ctx.IsDexTrade,
			"is_high_interest_token":  ctx.IsHighInterestToken,
		},
	}}
}

// throttle assigns IDs/timestamps and drops alerts whose dedup
// signature was already raised within ThrottleWindowSeconds.
func (e *Engine) throttle(alerts []*core.Alert) []core.Alert {
	if len(alerts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	window := time.Duration(e.cfg.ThrottleWindowSeconds) * time.Second
	now := time.Now().UTC()

	var out []core.Alert
	for _, a := range alerts {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		sig := a.DedupSignature()
		if last, ok := e.lastAlertAt[sig]; ok && now.Sub(last) < window {
			metrics.Global().RecordAlertThrottled(a.Chain)
			continue
		}
		e.lastAlertAt[sig] = now
		a.ID = uuid.New().String()
		out = append(out, *a)
	}
	return out
}
