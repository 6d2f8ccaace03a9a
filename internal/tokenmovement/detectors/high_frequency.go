package detectors

import (
	"fmt"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// HighFrequency flags an address that has moved tokens at least
// HighFrequencyCountThreshold times within a window of
// HighFrequencyWindowBlocks blocks, converted to wall-clock time via
// the chain's average block time so the window means the same thing
// across chains with very different block times.
type HighFrequency struct{}

func (HighFrequency) Name() string { return "high_frequency" }

func (HighFrequency) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	windowSeconds := float64(ctx.Config.HighFrequencyWindowBlocks) * tmctx.BlockTimeFor(evt.Network)
	cutoff := evt.BlockTime.Add(-time.Duration(windowSeconds) * time.Second)

	recent := ctx.Stats.RecentTransfers(evt.Network, evt.From, 1000)
	count := 0
	for _, t := range recent {
		if t.BlockTime.After(cutoff) {
			count++
		}
	}

	if count < ctx.Config.HighFrequencyCountThreshold {
		return nil
	}

	return []*core.Alert{{
		Title:    "High-Frequency Token Movement",
		Message:  fmt.Sprintf("address %s made %d transfers in the last ~%.0fs window", evt.From, count, windowSeconds),
		Severity: core.SeverityMedium,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"transfer_count": count,
			"window_seconds": windowSeconds,
		},
		CreatedAt: time.Now().UTC(),
	}}
}
