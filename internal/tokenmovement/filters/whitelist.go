// Package filters implements the token-movement filter cascade:
// whitelist, small-transfer, simple-transfer and dex-trade, applied in
// that order before any detector runs.
package filters

import "github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"

// Whitelist filters any event where the sender or recipient is on the
// configured whitelist, regardless of amount, unless the event touches
// a watched address/token or has contract interaction.
type Whitelist struct{}

func (Whitelist) Name() string { return "whitelist" }

func (Whitelist) ShouldFilter(ctx *tmctx.Context) (bool, string) {
	// Always process transfers involving watched addresses/tokens.
	if ctx.Watched() {
		return false, ""
	}
	// Always process transfers with contract interaction: likely
	// arbitrage or a DEX trade, not the noise this filter targets.
	if ctx.Event.HasContractInteraction {
		return false, ""
	}
	if ctx.Config.WhitelistedAddresses[ctx.Event.From] || ctx.Config.WhitelistedAddresses[ctx.Event.To] {
		return true, "whitelisted address"
	}
	return false, ""
}
