// Package detectors implements the token-movement detector cascade:
// significant-transfer, high-frequency, continuous-flow,
// periodic-transfer, multi-hop/arbitrage and wash-trading.
package detectors

import (
	"fmt"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// SignificantTransfer flags any single transfer whose amount clears
// the configured threshold. Stablecoins get a higher absolute
// threshold (large stablecoin amounts are common and less notable per
// unit value); a transfer involving contract interaction is held to a
// lower bar since it's more likely to be part of an automated flow.
//
// Its verdict is written into the shared context (IsSignificantTransfer)
// for the simple-transfer filter and the watched-entity combined alert
// to consult. Because detectors run after the filter cascade, the
// engine calls ClassifySignificant for the current event before the
// filters run; Detect then writes the same value again.
type SignificantTransfer struct{}

func (SignificantTransfer) Name() string { return "significant_transfer" }

// resolveThreshold implements the configured-threshold resolution
// chain: per-network-per-token threshold, then the network's "DEFAULT"
// entry, then the built-in regular/stablecoin pair.
func resolveThreshold(cfg tmctx.Config, evt *core.TokenTransferEvent, stablecoin bool) float64 {
	if byToken, ok := cfg.SignificantTransferThresholds[evt.Network]; ok {
		tokenKey := core.NormalizeAddress(evt.TokenAddress)
		if tokenKey != "" {
			if t, ok := byToken[tokenKey]; ok {
				return t
			}
		}
		if t, ok := byToken["DEFAULT"]; ok {
			return t
		}
	}
	if stablecoin {
		return cfg.SignificantTransferStablecoinThreshold
	}
	return cfg.SignificantTransferThreshold
}

func isStablecoin(cfg tmctx.Config, evt *core.TokenTransferEvent) bool {
	if cfg.StablecoinSymbols[evt.TokenSymbol] {
		return true
	}
	byToken, ok := cfg.StablecoinAddresses[evt.Network]
	if !ok {
		return false
	}
	return byToken[core.NormalizeAddress(evt.TokenAddress)]
}

// ClassifySignificant resolves whether ctx.Event clears the
// significant-transfer threshold, without building an alert. Exported
// so the engine can classify an event before the filter cascade runs:
// the simple-transfer filter's drop decision depends on this verdict,
// and the filter cascade runs ahead of the detector cascade.
func ClassifySignificant(ctx *tmctx.Context) (significant bool, threshold float64, usdValue float64) {
	evt := ctx.Event
	stablecoin := isStablecoin(ctx.Config, evt)
	threshold = resolveThreshold(ctx.Config, evt, stablecoin)
	if (evt.HasContractInteraction || evt.ToIsContract) && ctx.Config.ContractInteractionMultiplier > 0 {
		threshold *= ctx.Config.ContractInteractionMultiplier
	}

	significant = evt.Amount >= threshold
	if ctx.Oracle != nil && ctx.Config.SignificantTransferUSDThreshold > 0 {
		if price, ok := ctx.Oracle.USDPrice(evt.TokenSymbol); ok {
			usdValue = evt.Amount * price
			if usdValue >= ctx.Config.SignificantTransferUSDThreshold {
				significant = true
			}
		}
	}
	return significant, threshold, usdValue
}

func (SignificantTransfer) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	significant, threshold, usdValue := ClassifySignificant(ctx)
	ctx.IsSignificantTransfer = significant
	if !significant {
		return nil
	}

	severity := core.SeverityMedium
	if evt.Amount >= threshold*5 {
		severity = core.SeverityHigh
	}

	metadata := map[string]interface{}{
		"amount":    evt.Amount,
		"threshold": threshold,
		"to":        evt.To,
		"token":     evt.TokenSymbol,
	}
	if usdValue > 0 {
		metadata["usd_value"] = usdValue
	}

	return []*core.Alert{{
		Title:    "Significant Token Transfer",
		Message:  fmt.Sprintf("%s transferred %.4f %s from %s to %s", evt.TxHash, evt.Amount, evt.TokenSymbol, evt.From, evt.To),
		Severity: severity,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: metadata,
		CreatedAt: time.Now().UTC(),
	}}
}
