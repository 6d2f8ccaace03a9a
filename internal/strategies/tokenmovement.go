package strategies

import (
	"github.com/R3E-Network/sentinel/infrastructure/utils"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// TokenMovement wraps the token-movement analytic engine as a
// Strategy. Per the Open Question decision recorded in DESIGN.md, this
// modular engine is the sole token-movement implementation exposed to
// the pipeline, with a single flat config schema.
type TokenMovement struct {
	engine *tokenmovement.Engine
}

func init() {
	Register("token_movement", func(rawCfg map[string]interface{}, deps Dependencies) (Strategy, error) {
		cfg := configFromMap(rawCfg)
		tm := &TokenMovement{engine: tokenmovement.New(cfg)}
		if deps.PriceOracle != nil {
			tm.engine.SetPriceOracle(deps.PriceOracle)
		}
		if watch, ok := rawCfg["watched_addresses"].([]interface{}); ok {
			for _, a := range watch {
				if s := utils.ToString(a); s != "" {
					tm.engine.Watch(s)
				}
			}
		}
		if watch, ok := rawCfg["watched_tokens"].([]interface{}); ok {
			for _, a := range watch {
				if s := utils.ToString(a); s != "" {
					tm.engine.WatchToken(s)
				}
			}
		}
		return tm, nil
	})
}

// Name returns the strategy's registered plugin name.
func (t *TokenMovement) Name() string { return "token_movement" }

// Process dispatches token transfer events into the analytic engine;
// all other event kinds are ignored by this strategy.
func (t *TokenMovement) Process(evt core.Event) []core.Alert {
	if evt.Kind != core.EventKindTokenTransfer || evt.TokenTransfer == nil {
		return nil
	}
	return t.engine.Process(evt.TokenTransfer)
}

func configFromMap(m map[string]interface{}) tmctx.Config {
	cfg := tmctx.DefaultConfig()
	if v, ok := m["significant_transfer_threshold"].(float64); ok {
		cfg.SignificantTransferThreshold = v
	}
	if v, ok := m["significant_transfer_stablecoin_threshold"].(float64); ok {
		cfg.SignificantTransferStablecoinThreshold = v
	}
	if v, ok := m["small_transfer_threshold"].(float64); ok {
		cfg.SmallTransferThreshold = v
	}
	if v, ok := m["min_stats_count"]; ok {
		cfg.MinStatsCount = utils.ToInt(v, cfg.MinStatsCount)
	}
	if v, ok := m["require_significant_for_simple_transfer"].(bool); ok {
		cfg.RequireSignificantForSimpleTransfer = v
	}
	if v, ok := m["only_dex_trades"].(bool); ok {
		cfg.OnlyDexTrades = v
	}
	if v, ok := m["filter_dex_trades"].(bool); ok {
		cfg.FilterDexTrades = v
	}
	if v, ok := m["high_frequency_count_threshold"]; ok {
		cfg.HighFrequencyCountThreshold = utils.ToInt(v, cfg.HighFrequencyCountThreshold)
	}
	if v, ok := m["high_frequency_window_blocks"]; ok {
		cfg.HighFrequencyWindowBlocks = utils.ToInt(v, cfg.HighFrequencyWindowBlocks)
	}
	if v, ok := m["continuous_flow_ratio_threshold"].(float64); ok {
		cfg.ContinuousFlowRatioThreshold = v
	}
	if v, ok := m["continuous_flow_min_transfers"]; ok {
		cfg.ContinuousFlowMinTransfers = utils.ToInt(v, cfg.ContinuousFlowMinTransfers)
	}
	if v, ok := m["continuous_flow_significant_threshold"].(float64); ok {
		cfg.ContinuousFlowSignificantThreshold = v
	}
	if v, ok := m["continuous_flow_window_hours"].(float64); ok {
		cfg.ContinuousFlowWindowHours = v
	}
	if v, ok := m["periodic_transfer_cv_threshold"].(float64); ok {
		cfg.PeriodicTransferCVThreshold = v
	}
	if v, ok := m["wash_trading_back_and_forth_threshold"]; ok {
		cfg.WashTradingBackAndForthThreshold = utils.ToInt(v, cfg.WashTradingBackAndForthThreshold)
	}
	if v, ok := m["wash_trading_window_hours"].(float64); ok {
		cfg.WashTradingWindowHours = v
	}
	if v, ok := m["throttle_window_seconds"]; ok {
		cfg.ThrottleWindowSeconds = utils.ToInt(v, cfg.ThrottleWindowSeconds)
	}
	if v, ok := m["significant_transfer_usd_threshold"].(float64); ok {
		cfg.SignificantTransferUSDThreshold = v
	}
	if raw, ok := m["whitelisted_addresses"].([]interface{}); ok {
		for _, a := range raw {
			if s := utils.ToString(a); s != "" {
				cfg.WhitelistedAddresses[s] = true
			}
		}
	}
	if raw, ok := m["dex_addresses"].([]interface{}); ok {
		for _, a := range raw {
			if s := utils.ToString(a); s != "" {
				cfg.DexAddresses[s] = true
			}
		}
	}
	if raw, ok := m["high_interest_tokens"].([]interface{}); ok {
		for _, a := range raw {
			if s := utils.ToString(a); s != "" {
				cfg.HighInterestTokens[core.NormalizeAddress(s)] = true
			}
		}
	}
	// significant_transfer_thresholds: {"ethereum": {"DEFAULT": 50, "0xtoken...": 10}}
	if raw, ok := m["significant_transfer_thresholds"].(map[string]interface{}); ok {
		for network, perNetwork := range raw {
			byToken, ok := perNetwork.(map[string]interface{})
			if !ok {
				continue
			}
			resolved := make(map[string]float64, len(byToken))
			for token, v := range byToken {
				if f, ok := v.(float64); ok {
					key := token
					if key != "DEFAULT" {
						key = core.NormalizeAddress(key)
					}
					resolved[key] = f
				}
			}
			cfg.SignificantTransferThresholds[network] = resolved
		}
	}
	return cfg
}
