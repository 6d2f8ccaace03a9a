package filters

import "github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"

// SimpleTransfer filters ordinary EOA-to-EOA transfers with no
// contract interaction that haven't already been classified
// significant; such transfers are the baseline "normal use" traffic
// the detectors are not meant to flag. Unlike the other filters, the
// drop decision isn't a threshold of its own: it defers entirely to
// whatever significant_transfer has already written into the shared
// context for this event.
type SimpleTransfer struct{}

func (SimpleTransfer) Name() string { return "simple_transfer" }

func (SimpleTransfer) ShouldFilter(ctx *tmctx.Context) (bool, string) {
	if ctx.Watched() {
		return false, ""
	}

	evt := ctx.Event
	if evt.HasContractInteraction {
		return false, ""
	}

	// Neither endpoint looks like a contract: evt.ToIsContract is the
	// eth_getCode-backed signal (Open Question (b)); there's no
	// equivalent "from" lookup, so a likely-EOA transfer is one where
	// the recipient at least isn't a known contract.
	isLikelyEOATransfer := !evt.ToIsContract

	if isLikelyEOATransfer && ctx.Config.RequireSignificantForSimpleTransfer && !ctx.IsSignificantTransfer {
		return true, "simple transfer between likely EOAs, not significant"
	}
	return false, ""
}
