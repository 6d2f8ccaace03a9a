package tokentransfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConfigFromMap_MixedNumericTypes covers a YAML-decoded settings
// map where integer fields arrive as plain int (the common case) and
// as float64 (as they would via a JSON round trip or a templated
// config value), exercising utils.ToInt's type coercion rather than a
// bare type assertion.
func TestConfigFromMap_MixedNumericTypes(t *testing.T) {
	raw := map[string]interface{}{
		"network":               "ethereum",
		"poll_interval_seconds": float64(20),
		"batch_size":            100,
		"start_block":           int64(500),
		"include_native":        "true",
		"tokens": []interface{}{
			map[string]interface{}{"address": "0xabc", "symbol": "USDC", "decimals": float64(6)},
		},
	}

	cfg, err := configFromMap(raw)
	require.NoError(t, err)
	require.Equal(t, "ethereum", cfg.Network)
	require.Equal(t, 20*time.Second, cfg.PollInterval)
	require.Equal(t, uint64(100), cfg.BatchSize)
	require.Equal(t, uint64(500), cfg.StartBlock)
	require.True(t, cfg.IncludeNative)
	require.Len(t, cfg.Tokens, 1)
	require.Equal(t, "USDC", cfg.Tokens[0].Symbol)
	require.Equal(t, 6, cfg.Tokens[0].Decimals)
}

func TestConfigFromMap_RequiresNetwork(t *testing.T) {
	_, err := configFromMap(map[string]interface{}{})
	require.Error(t, err)
}
