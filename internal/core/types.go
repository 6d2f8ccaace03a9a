// Package core defines the shared data model that flows between
// collectors, strategies and executors: events, actions, alerts and
// the small value types the rest of the pipeline is built from.
package core

import (
	"math"
	"strings"
	"time"
)

// EventKind discriminates the tagged union of Event variants a
// collector can emit.
type EventKind string

const (
	EventKindTokenTransfer EventKind = "token_transfer"
	EventKindWeb3Log       EventKind = "web3_log"
)

// Event is a tagged union: exactly one of TokenTransfer or Web3Log is
// non-nil, selected by Kind. New variants are added by extending Kind
// and adding a field, never by reusing an existing field for a
// different meaning.
type Event struct {
	Kind         EventKind
	TokenTransfer *TokenTransferEvent
	Web3Log       *Web3LogEvent

	ID          string
	Network     string
	Source      string
	ObservedAt  time.Time
}

// TokenTransferEvent represents a single ERC20 Transfer log or a
// native-currency value transfer normalized to the same shape.
type TokenTransferEvent struct {
	Network             string
	BlockNumber         uint64
	BlockTime           time.Time
	TxHash              string
	LogIndex            int // -1 for native transfers, which have no log index
	TokenAddress        string // empty for native transfers
	TokenSymbol         string
	TokenDecimals       int
	From                string
	To                  string
	RawAmount           string // decimal string, arbitrary precision
	Amount              float64
	IsNative            bool
	HasContractInteraction bool
	TriggerSelector     string // 4-byte selector that produced this transfer, if known
	ToIsContract        bool   // eth_getCode-backed: To has deployed bytecode
}

// Web3LogEvent is an opaque, undecoded EVM log surfaced by the generic
// collector for strategies that don't need the token-transfer shape.
type Web3LogEvent struct {
	Network     string
	BlockNumber uint64
	BlockTime   time.Time
	TxHash      string
	LogIndex    int
	Address     string
	Topics      []string
	Data        string
}

// NormalizeAddress lowercases an address for comparison purposes while
// leaving the caller's original (possibly checksummed) value untouched
// in the event it came from.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Severity is the alert severity scale strategies report on.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is produced by a strategy when it detects something worth
// surfacing. Title/Source/Chain/From/TxHash feed the dedup signature.
type Alert struct {
	ID        string
	Title     string
	Message   string
	Severity  Severity
	Source    string // strategy name that raised it
	Chain     string
	From      string
	TxHash    string
	CreatedAt time.Time
	Metadata  map[string]interface{}
}

// DedupSignature returns the alert's identity for throttling purposes:
// title:chain:from:tx when all four are present, falling back to
// title:source:severity otherwise.
func (a Alert) DedupSignature() string {
	if a.Title != "" && a.Chain != "" && a.From != "" && a.TxHash != "" {
		return strings.Join([]string{a.Title, a.Chain, a.From, a.TxHash}, ":")
	}
	return strings.Join([]string{a.Title, a.Source, string(a.Severity)}, ":")
}

// Action is what an executor is asked to perform in response to one
// or more alerts. The distilled spec leaves wire formats for external
// notifiers out of scope; Action is the boundary executors see.
type Action struct {
	ID        string
	Kind      string
	Alert     Alert
	CreatedAt time.Time
}

// EndpointState is a snapshot of one RPC endpoint's health, exported
// for diagnostics and tests.
type EndpointState struct {
	URL              string
	Healthy          bool
	ConsecutiveFails int
	LastCheck        time.Time
	LastLatency      time.Duration
	AvgLatencyMs     float64
}

// BlockCursor tracks how far a collector has advanced for one
// (network, collector) pair.
type BlockCursor struct {
	Network       string
	CollectorName string
	LastBlock     uint64
	UpdatedAt     time.Time
}

// TokenStats is the rolling statistics window the token-movement
// engine keeps per (network, token) pair.
type TokenStats struct {
	Network       string
	TokenAddress  string
	Count         int
	Mean          float64
	M2            float64 // Welford's running sum of squared deviations
	Window        []float64
	WindowSize    int
	LastUpdatedAt time.Time
}

// StdDev returns the population standard deviation of the current
// window using Welford's algorithm state.
func (s *TokenStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	variance := s.M2 / float64(s.Count)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Observe folds a new amount into the rolling window and running
// mean/variance accumulators, evicting the oldest sample once the
// window is full.
func (s *TokenStats) Observe(amount float64) {
	if s.WindowSize <= 0 {
		s.WindowSize = 100
	}
	s.Window = append(s.Window, amount)
	if len(s.Window) > s.WindowSize {
		evicted := s.Window[0]
		s.Window = s.Window[1:]
		s.removeSample(evicted)
	}
	s.addSample(amount)
	s.LastUpdatedAt = time.Now()
}

func (s *TokenStats) addSample(x float64) {
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	delta2 := x - s.Mean
	s.M2 += delta * delta2
}

func (s *TokenStats) removeSample(x float64) {
	if s.Count <= 1 {
		s.Count = 0
		s.Mean = 0
		s.M2 = 0
		return
	}
	s.Count--
	delta := x - s.Mean
	s.Mean -= delta / float64(s.Count)
	delta2 := x - s.Mean
	s.M2 -= delta * delta2
	if s.M2 < 0 {
		s.M2 = 0
	}
}

// AddressStats is the rolling per-address activity window used by the
// high-frequency and continuous-flow detectors.
type AddressStats struct {
	Network        string
	Address        string
	TransferCount  int
	TotalIn        float64
	TotalOut       float64
	LastSeenBlocks []uint64
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
}
