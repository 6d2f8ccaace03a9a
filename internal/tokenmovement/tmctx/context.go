// Package tmctx holds the shared types the token-movement filter and
// detector cascades are built against, kept in their own package so
// internal/tokenmovement/filters and internal/tokenmovement/detectors
// can depend on them without importing the engine that wires them
// together.
package tmctx

import "github.com/R3E-Network/sentinel/internal/core"

// StatsStore is the rolling-state accessor filters and detectors read
// from. The engine owns the concrete implementation and the mutation
// side; filters/detectors only read.
type StatsStore interface {
	TokenStats(network, token string) *core.TokenStats
	AddressStats(network, address string) *core.AddressStats
	// RecentTransfers returns up to limit of the most recent transfers
	// involving address on network, newest last.
	RecentTransfers(network, address string, limit int) []*core.TokenTransferEvent
}

// PriceOracle resolves a token symbol's current price in USD. The
// engine treats a nil oracle as "USD-denominated detectors disabled".
type PriceOracle interface {
	USDPrice(symbol string) (float64, bool)
}

// AvgBlockTime is the per-chain average block time table the
// high-frequency detector converts block counts into time windows
// with. Unknown chains fall back to DefaultBlockTime.
var AvgBlockTime = map[string]float64{
	"ethereum":  15,
	"bsc":       3,
	"polygon":   2,
	"optimism":  2,
	"arbitrum":  0.25,
	"avalanche": 2,
	"fantom":    1,
	"cronos":    6,
	"gnosis":    5,
}

// DefaultBlockTime is used for chains absent from AvgBlockTime.
const DefaultBlockTime = 15.0

// BlockTimeFor returns the average block time in seconds for a chain.
func BlockTimeFor(network string) float64 {
	if t, ok := AvgBlockTime[network]; ok {
		return t
	}
	return DefaultBlockTime
}

// Config bundles all the tunable thresholds for the filter and
// detector cascades. Every field has a sensible default applied by
// DefaultConfig so a partially-specified YAML config still works.
type Config struct {
	// Whitelist: addresses exempted from all detectors, unless the
	// event touches a watched address/token or has contract
	// interaction (see filters.Whitelist).
	WhitelistedAddresses map[string]bool

	// Small-transfer filter: once a token has at least MinStatsCount
	// prior samples, transfers below SmallTransferThreshold times the
	// token's rolling average are filtered (see filters.SmallTransfer).
	// SmallTransferThreshold is a ratio, not an absolute amount.
	SmallTransferThreshold float64
	MinStatsCount          int

	// Simple-transfer filter: a transfer between two likely-EOA
	// addresses with no contract interaction is filtered unless it was
	// already classified significant (see filters.SimpleTransfer).
	RequireSignificantForSimpleTransfer bool

	// Dex-trade filter: addresses known to be DEX routers/pools (used
	// both as heuristic (a) and as the contract-likelihood fallback for
	// heuristic (b)); swaps through them can optionally be filtered out
	// or exclusively kept, depending on OnlyDexTrades/FilterDexTrades
	// (see filters.DexTrade).
	DexAddresses         map[string]bool
	OnlyDexTrades        bool
	FilterDexTrades      bool
	CommonDexTokenSymbols map[string]bool

	// Watched tokens: like WhitelistedAddresses/DexAddresses but keyed
	// by token address, consulted for the watched-token escape hatch
	// and "is_watched_token" verdict.
	WatchedTokens map[string]bool

	// High-interest tokens: tokens worth flagging purely by identity
	// (e.g. a closely-tracked governance or bridge asset), independent
	// of any single transfer's size. Empty by default; operator
	// configured.
	HighInterestTokens map[string]bool

	// Significant-transfer detector. Thresholds resolve per network,
	// then per token within that network, then fall back to the
	// network-wide "DEFAULT" entry in SignificantTransferThresholds,
	// and only then to the built-in SignificantTransferThreshold /
	// SignificantTransferStablecoinThreshold pair.
	SignificantTransferThresholds          map[string]map[string]float64 // network -> token address (or "DEFAULT") -> threshold
	SignificantTransferThreshold           float64
	SignificantTransferStablecoinThreshold float64
	StablecoinSymbols                      map[string]bool
	StablecoinAddresses                    map[string]map[string]bool // network -> token address -> true
	ContractInteractionMultiplier          float64

	// SignificantTransferUSDThreshold flags a transfer whose USD
	// equivalent (resolved through the configured PriceOracle) clears
	// this value, independent of the token-native-unit threshold
	// above. Zero disables USD-denominated significance.
	SignificantTransferUSDThreshold float64

	// High-frequency detector: at least HighFrequencyCountThreshold
	// transfers for one address within HighFrequencyWindowBlocks blocks.
	HighFrequencyCountThreshold int
	HighFrequencyWindowBlocks   int

	// Continuous-flow detector: net in/out flow is summed over the
	// trailing ContinuousFlowWindowHours only, skipped unless the
	// address's whole recorded history holds at least
	// ContinuousFlowMinTransfers transfers and the total volume within
	// the window clears ContinuousFlowSignificantThreshold.
	ContinuousFlowRatioThreshold       float64
	ContinuousFlowMinTransfers         int
	ContinuousFlowSignificantThreshold float64
	ContinuousFlowWindowHours          float64

	// Periodic-transfer detector.
	PeriodicTransferCVThreshold float64
	PeriodicTransferMinSamples  int

	// Multi-hop/arbitrage detector.
	MultiHopMinTransfers int
	MultiHopMinAddresses int
	MultiHopMinTokens    int

	// Wash-trading detector: back-and-forth transfers are only counted
	// within the trailing WashTradingWindowHours.
	WashTradingBackAndForthThreshold int
	WashTradingWindowHours           float64

	// Alert throttling: the same dedup signature is suppressed for
	// this long after first being raised.
	ThrottleWindowSeconds int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		WhitelistedAddresses: map[string]bool{},
		DexAddresses:         map[string]bool{},
		WatchedTokens:        map[string]bool{},
		HighInterestTokens:   map[string]bool{},
		StablecoinSymbols: map[string]bool{
			"USDT": true, "USDC": true, "DAI": true, "BUSD": true, "TUSD": true,
		},
		StablecoinAddresses: map[string]map[string]bool{},
		CommonDexTokenSymbols: map[string]bool{
			"ETH": true, "WETH": true, "BTC": true, "WBTC": true, "BNB": true, "WBNB": true,
			"MATIC": true, "WMATIC": true, "AVAX": true, "WAVAX": true,
			"USDT": true, "USDC": true, "DAI": true, "BUSD": true, "TUSD": true, "FRAX": true,
			"USDP": true, "GUSD": true, "LUSD": true, "MIM": true,
			"UNI": true, "SUSHI": true, "AAVE": true, "CRV": true, "BAL": true, "COMP": true,
			"MKR": true, "SNX": true, "YFI": true, "1INCH": true,
			"STETH": true, "WSTETH": true, "RETH": true, "CBETH": true, "SFRXETH": true,
		},

		SmallTransferThreshold:              0.1,
		MinStatsCount:                       100,
		RequireSignificantForSimpleTransfer: true,

		SignificantTransferThresholds:          map[string]map[string]float64{},
		SignificantTransferThreshold:           100.0,
		SignificantTransferStablecoinThreshold: 5000.0,
		ContractInteractionMultiplier:          0.5,

		HighFrequencyCountThreshold: 10,
		HighFrequencyWindowBlocks:   100,

		ContinuousFlowRatioThreshold:       0.7,
		ContinuousFlowMinTransfers:         5,
		ContinuousFlowSignificantThreshold: 100.0,
		ContinuousFlowWindowHours:          24,

		PeriodicTransferCVThreshold: 0.25,
		PeriodicTransferMinSamples:  4,

		MultiHopMinTransfers: 3,
		MultiHopMinAddresses: 3,
		MultiHopMinTokens:    1,

		WashTradingBackAndForthThreshold: 3,
		WashTradingWindowHours:           24,

		ThrottleWindowSeconds: 300,
	}
}

// Context is passed to every filter and detector for one event. The
// Is* verdict fields are the Go equivalent of the shared context dict
// the original strategy threads through its filter/detector cascade:
// IsWatched* is populated by the engine before the filter cascade
// runs; IsDexTrade/IsSignificantTransfer/IsHighInterestToken are
// written by whichever filter or detector classifies them, and read by
// later stages in the same Process call (notably the watched-entity
// combined alert).
type Context struct {
	Event  *core.TokenTransferEvent
	Stats  StatsStore
	Config Config
	Oracle PriceOracle // nil when no price oracle is configured

	IsWatchedFrom  bool
	IsWatchedTo    bool
	IsWatchedToken bool

	IsDexTrade            bool
	IsSignificantTransfer bool
	IsHighInterestToken   bool
}

// Watched reports whether the event touches a watched address or
// token, the escape hatch every noise-reducing filter checks first.
func (c *Context) Watched() bool {
	return c.IsWatchedFrom || c.IsWatchedTo || c.IsWatchedToken
}

// Filter decides whether an event should be excluded from the
// detector cascade.
type Filter interface {
	Name() string
	ShouldFilter(ctx *Context) (bool, string)
}

// Detector inspects an event (and the rolling stats alongside it) and
// raises zero or more alerts.
type Detector interface {
	Name() string
	Detect(ctx *Context) []*core.Alert
}
