package web3event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigFromMap_DedupesAddresses(t *testing.T) {
	raw := map[string]interface{}{
		"network":               "polygon",
		"poll_interval_seconds": float64(5),
		"addresses":             []interface{}{"0xAAA", "0xBBB", "0xAAA"},
		"topics":                []interface{}{"0xtopic1"},
	}

	cfg, err := configFromMap(raw)
	require.NoError(t, err)
	require.Equal(t, "polygon", cfg.Network)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Len(t, cfg.Addresses, 2)
	require.Equal(t, []string{"0xtopic1"}, cfg.Topics)
}

func TestConfigFromMap_RequiresNetwork(t *testing.T) {
	_, err := configFromMap(map[string]interface{}{})
	require.Error(t, err)
}
