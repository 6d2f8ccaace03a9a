package strategies

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFromMap_AppliesOverridesAndCoercesTypes(t *testing.T) {
	raw := map[string]interface{}{
		"significant_transfer_threshold": 50.0,
		"high_frequency_count_threshold": float64(10), // as it would arrive via a JSON round trip
		"throttle_window_seconds":        "300",
		"whitelisted_addresses":          []interface{}{"0xAAA"},
		"dex_addresses":                  []interface{}{"0xBBB"},
	}

	cfg := configFromMap(raw)
	require.Equal(t, 50.0, cfg.SignificantTransferThreshold)
	require.Equal(t, 10, cfg.HighFrequencyCountThreshold)
	require.Equal(t, 300, cfg.ThrottleWindowSeconds)
	require.True(t, cfg.WhitelistedAddresses["0xAAA"])
	require.True(t, cfg.DexAddresses["0xBBB"])
}

func TestConfigFromMap_DefaultsWhenEmpty(t *testing.T) {
	cfg := configFromMap(map[string]interface{}{})
	require.Greater(t, cfg.SignificantTransferThreshold, 0.0)
}
