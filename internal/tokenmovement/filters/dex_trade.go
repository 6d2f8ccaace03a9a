package filters

import (
	"math"

	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// DexTrade classifies whether a transfer is likely part of a DEX
// trade, and, depending on configuration, either filters DEX trades
// out (to reduce noise) or keeps only DEX trades (for arbitrage
// detection). The classification is always written into the shared
// context, since the watched-entity combined alert and other
// consumers need it regardless of whether this filter drops anything.
type DexTrade struct{}

func (DexTrade) Name() string { return "dex_trade" }

var commonSwapAmounts = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000}

func roundToDigits(v float64, digits int) float64 {
	mult := math.Pow(10, float64(digits))
	return math.Round(v*mult) / mult
}

func isRoundNumber(v float64) bool {
	if v == math.Trunc(v) {
		return true
	}
	if math.Abs(v-roundToDigits(v, 1)) < 0.01 {
		return true
	}
	if math.Abs(v-roundToDigits(v, -1)) < 1 {
		return true
	}
	return false
}

func isCommonAmount(v float64) bool {
	for _, amt := range commonSwapAmounts {
		if amt <= 0 {
			continue
		}
		if math.Abs(v-amt)/amt < 0.05 {
			return true
		}
	}
	return false
}

// isLikelyDexTrade implements the three heuristics: (a) either address
// is a known DEX router/pool, (b) contract interaction plus a
// likely-contract counterparty, (c) an amount that is both round and
// near a common swap size, or a token commonly paired on DEXes moved in
// an amount that is either.
func isLikelyDexTrade(ctx *tmctx.Context) bool {
	evt := ctx.Event

	if ctx.Config.DexAddresses[evt.From] || ctx.Config.DexAddresses[evt.To] {
		return true
	}

	if evt.HasContractInteraction && evt.ToIsContract {
		return true
	}

	value := evt.Amount
	roundNumber := isRoundNumber(value)
	commonAmount := isCommonAmount(value)
	commonToken := evt.TokenSymbol != "" && ctx.Config.CommonDexTokenSymbols[evt.TokenSymbol]

	return (roundNumber && commonAmount) || (commonToken && (roundNumber || commonAmount))
}

func (DexTrade) ShouldFilter(ctx *tmctx.Context) (bool, string) {
	isDexTrade := isLikelyDexTrade(ctx)
	ctx.IsDexTrade = isDexTrade

	if ctx.Watched() {
		return false, ""
	}

	if ctx.Config.OnlyDexTrades && !isDexTrade {
		return true, "not a dex trade"
	}
	if ctx.Config.FilterDexTrades && isDexTrade {
		return true, "dex trade"
	}
	return false, ""
}
