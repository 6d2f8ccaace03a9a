package detectors

import (
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// ContinuousFlow flags an address whose transfers within the trailing
// window are overwhelmingly one-directional (almost all-in or almost
// all-out), which is characteristic of a collection or distribution
// hub rather than organic two-way activity. A short run of lopsided
// transfers (fewer than 10 in the window) is reported as a
// short-term-consecutive pattern; a longer one is reported as
// long-term-biased.
type ContinuousFlow struct{}

func (ContinuousFlow) Name() string { return "continuous_flow" }

func (ContinuousFlow) Detect(ctx *tmctx.Context) []*core.Alert {
	evt := ctx.Event
	address := evt.From

	// min_transactions gates on the total known history, before any
	// window filtering, matching the detector this is grounded on.
	history := ctx.Stats.RecentTransfers(evt.Network, address, 0)
	if len(history) < ctx.Config.ContinuousFlowMinTransfers {
		return nil
	}

	windowStart := evt.BlockTime.Add(-time.Duration(ctx.Config.ContinuousFlowWindowHours * float64(time.Hour)))

	var totalInflow, totalOutflow float64
	var inflowCount, outflowCount int
	tokenSymbols := map[string]bool{}

	for _, t := range history {
		if t.BlockTime.Before(windowStart) {
			continue
		}
		switch {
		case strings.EqualFold(t.To, address):
			totalInflow += t.Amount
			inflowCount++
		case strings.EqualFold(t.From, address):
			totalOutflow += t.Amount
			outflowCount++
		}
		if t.TokenSymbol != "" {
			tokenSymbols[t.TokenSymbol] = true
		}
	}

	netFlow := totalInflow - totalOutflow
	totalVolume := totalInflow + totalOutflow
	if totalVolume < ctx.Config.ContinuousFlowSignificantThreshold {
		return nil
	}

	flowRatio := 0.0
	if totalVolume > 0 {
		flowRatio = netFlow / totalVolume
	}
	if absFloat(flowRatio) < ctx.Config.ContinuousFlowRatioThreshold {
		return nil
	}

	isInflow := flowRatio > 0
	flowType := "Outflow"
	if isInflow {
		flowType = "Inflow"
	}

	patternType := "short_term_consecutive"
	if inflowCount+outflowCount >= 10 {
		patternType = "long_term_biased"
	}

	severity := core.SeverityLow
	switch {
	case absFloat(netFlow) > ctx.Config.ContinuousFlowSignificantThreshold*10:
		severity = core.SeverityHigh
	case absFloat(netFlow) > ctx.Config.ContinuousFlowSignificantThreshold:
		severity = core.SeverityMedium
	}

	symbols := make([]string, 0, len(tokenSymbols))
	for s := range tokenSymbols {
		symbols = append(symbols, s)
	}
	symbolList := "tokens"
	if len(symbols) > 0 {
		symbolList = strings.Join(symbols, ", ")
	}

	var title, message string
	if patternType == "short_term_consecutive" {
		recentCount := outflowCount
		recentAmount := totalOutflow
		if isInflow {
			recentCount = inflowCount
			recentAmount = totalInflow
		}
		title = fmt.Sprintf("Short-term Consecutive %s Pattern", flowType)
		message = fmt.Sprintf("address %s shows %d consecutive %s transactions of %s totaling %.2f",
			address, recentCount, strings.ToLower(flowType), symbolList, recentAmount)
	} else {
		title = fmt.Sprintf("Consistent %s Pattern Detected", flowType)
		message = fmt.Sprintf("address %s shows consistent %s pattern (%.1f%% of activity) of %s across %d transactions, net %s: %.2f",
			address, strings.ToLower(flowType), absFloat(flowRatio)*100, symbolList, inflowCount+outflowCount, strings.ToLower(flowType), absFloat(netFlow))
	}

	return []*core.Alert{{
		Title:    title,
		Message:  message,
		Severity: severity,
		Source:   "token_movement",
		Chain:    evt.Network,
		From:     evt.From,
		TxHash:   evt.TxHash,
		Metadata: map[string]interface{}{
			"flow_type":     flowType,
			"pattern_type":  patternType,
			"flow_ratio":    flowRatio,
			"total_inflow":  totalInflow,
			"total_outflow": totalOutflow,
			"net_flow":      netFlow,
			"inflow_count":  inflowCount,
			"outflow_count": outflowCount,
			"window_hours":  ctx.Config.ContinuousFlowWindowHours,
			"token_symbols": symbols,
		},
		CreatedAt: time.Now().UTC(),
	}}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
