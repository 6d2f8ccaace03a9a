// Package priceoracle adapts the Chainlink datafeed service to the
// token-movement engine's PriceOracle interface, which only deals in
// synchronous symbol-to-USD lookups and has no notion of context
// cancellation.
package priceoracle

import (
	"context"
	"time"

	"github.com/R3E-Network/sentinel/infrastructure/datafeed"
)

// ChainlinkOracle resolves USD prices through a Chainlink datafeed
// service, bounding every lookup with a fixed timeout so a stalled RPC
// endpoint can't block the detector cascade.
type ChainlinkOracle struct {
	svc     *datafeed.Service
	timeout time.Duration
}

// New wraps svc as a tmctx.PriceOracle. svc is owned by the caller.
func New(svc *datafeed.Service) *ChainlinkOracle {
	return &ChainlinkOracle{svc: svc, timeout: 5 * time.Second}
}

// USDPrice resolves symbol's current USD price.
func (o *ChainlinkOracle) USDPrice(symbol string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	return o.svc.USDPrice(ctx, symbol)
}
