package filters

import "github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"

// SmallTransfer filters transfers that are small relative to a
// token's own rolling average, once enough samples exist to trust
// that average. A flat absolute threshold can't tell a whale token's
// "small" transfer from a micro-cap token's large one; the ratio
// against the token's own history can.
type SmallTransfer struct{}

func (SmallTransfer) Name() string { return "small_transfer" }

func (SmallTransfer) ShouldFilter(ctx *tmctx.Context) (bool, string) {
	if ctx.Watched() {
		return false, ""
	}

	stats := ctx.Stats.TokenStats(ctx.Event.Network, ctx.Event.TokenAddress)
	if stats == nil || stats.Count < ctx.Config.MinStatsCount {
		return false, ""
	}

	if ctx.Event.Amount < stats.Mean*ctx.Config.SmallTransferThreshold {
		return true, "below small transfer threshold relative to token average"
	}
	return false, ""
}
