package detectors

import (
	"fmt"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// WashTrading flags a pair of addresses that repeatedly send tokens
// back and forth to each other, a pattern consistent with wash
// trading or fabricated volume rather than genuine transfers.
type WashTrading struct{}

func (WashTrading) Name() string { return "wash_trading" }

func (WashTrading) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	windowStart := evt.BlockTime.Add(-time.Duration(ctx.Config.WashTradingWindowHours * float64(time.Hour)))

	backAndForth := 0
	for _, t := range ctx.Stats.RecentTransfers(evt.Network, evt.From, 0) {
		if t.BlockTime.Before(windowStart) {
			continue
		}
		if t.To == evt.To {
			backAndForth++
		}
	}
	for _, t := range ctx.Stats.RecentTransfers(evt.Network, evt.To, 0) {
		if t.BlockTime.Before(windowStart) {
			continue
		}
		if t.To == evt.From {
			backAndForth++
		}
	}

	if backAndForth < ctx.Config.WashTradingBackAndForthThreshold {
		return nil
	}

	return []*core.Alert{{
		Title: "Potential Wash Trading Detected",
		Message: fmt.Sprintf("detected %d transfers back and forth between %s and %s within %.0f hours",
			backAndForth, evt.From, evt.To, ctx.Config.WashTradingWindowHours),
		Severity: core.SeverityHigh,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"back_and_forth_count": backAndForth,
			"counterparty":         evt.To,
			"window_hours":         ctx.Config.WashTradingWindowHours,
		},
		CreatedAt: time.Now().UTC(),
	}}
}
