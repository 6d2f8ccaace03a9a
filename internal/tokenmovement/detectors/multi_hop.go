package detectors

import (
	"fmt"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// MultiHop flags arbitrage/layering-style activity: a chain of at
// least MultiHopMinTransfers transfers touching at least
// MultiHopMinAddresses distinct addresses and MultiHopMinTokens
// distinct tokens, where funds eventually return to the address that
// originated the chain.
type MultiHop struct{}

func (MultiHop) Name() string { return "multi_hop" }

func (MultiHop) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	cfg := ctx.Config

	recent := ctx.Stats.RecentTransfers(evt.Network, evt.To, 50)
	if len(recent) < cfg.MultiHopMinTransfers {
		return nil
	}

	addresses := map[string]bool{evt.From: true, evt.To: true}
	tokens := map[string]bool{evt.TokenAddress: true}
	circular := false
	hops := 1

	for _, t := range recent {
		if t.TxHash == evt.TxHash {
			continue
		}
		if t.From != evt.To {
			continue
		}
		hops++
		addresses[t.To] = true
		tokens[t.TokenAddress] = true
		if t.To == evt.From {
			circular = true
		}
	}

	if !circular || hops < cfg.MultiHopMinTransfers {
		return nil
	}
	if len(addresses) < cfg.MultiHopMinAddresses {
		return nil
	}
	if len(tokens) < cfg.MultiHopMinTokens {
		return nil
	}

	return []*core.Alert{{
		Title:    "Multi-Hop Circular Transfer (Possible Arbitrage)",
		Message:  fmt.Sprintf("detected a %d-hop circular transfer chain starting and ending at %s across %d addresses", hops, evt.From, len(addresses)),
		Severity: core.SeverityHigh,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"hops":             hops,
			"distinct_addresses": len(addresses),
			"distinct_tokens":    len(tokens),
		},
		CreatedAt: time.Now().UTC(),
	}}
}
