package detectors

import (
	"fmt"
	"math"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// PeriodicTransfer flags an address whose transfer intervals are
// unusually regular (low coefficient of variation), characteristic of
// a scheduled bot rather than a human.
type PeriodicTransfer struct{}

func (PeriodicTransfer) Name() string { return "periodic_transfer" }

func (PeriodicTransfer) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	recent := ctx.Stats.RecentTransfers(evt.Network, evt.From, ctx.Config.PeriodicTransferMinSamples+10)
	if len(recent) < ctx.Config.PeriodicTransferMinSamples {
		return nil
	}

	intervals := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		d := recent[i].BlockTime.Sub(recent[i-1].BlockTime).Seconds()
		if d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) < ctx.Config.PeriodicTransferMinSamples-1 {
		return nil
	}

	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))
	if mean == 0 {
		return nil
	}

	variance := 0.0
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))
	cv := math.Sqrt(variance) / mean

	if cv > ctx.Config.PeriodicTransferCVThreshold {
		return nil
	}

	return []*core.Alert{{
		Title:    "Periodic Token Transfer Pattern",
		Message:  fmt.Sprintf("address %s transfers at regular ~%.0fs intervals (cv=%.3f)", evt.From, mean, cv),
		Severity: core.SeverityLow,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"mean_interval_seconds": mean,
			"coefficient_of_variation": cv,
		},
		CreatedAt: time.Now().UTC(),
	}}
}
