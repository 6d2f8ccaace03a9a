package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
networks:
  - network: ethereum
    rpc:
      endpoints:
        - url: https://rpc.example.com
          rate_limit_rps: 5
    collectors:
      - name: token_transfer
        enabled: true
      - name: web3event
        enabled: false
    strategies:
      - name: token_movement
        enabled: true
    executors:
      - name: logger
        enabled: true
logging:
  level: debug
  format: text
metrics:
  enabled: true
  listen_addr: ":9100"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Networks, 1)

	net := cfg.Networks[0]
	require.Equal(t, "ethereum", net.Network)
	require.Len(t, net.RPC.Endpoints, 1)
	require.Equal(t, "https://rpc.example.com", net.RPC.Endpoints[0].URL)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9100", cfg.Metrics.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_NoNetworks(t *testing.T) {
	path := writeTempConfig(t, "networks: []\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingNetworkName(t *testing.T) {
	path := writeTempConfig(t, `
networks:
  - rpc:
      endpoints:
        - url: https://rpc.example.com
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingEndpoints(t *testing.T) {
	path := writeTempConfig(t, `
networks:
  - network: ethereum
    rpc:
      endpoints: []
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOrDefault_FallsBackOnError(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Equal(t, DefaultSentinelConfig(), cfg)
}

func TestLoadOrDefault_EmptyPathUsesDefault(t *testing.T) {
	cfg := LoadOrDefault("")
	require.Equal(t, DefaultSentinelConfig(), cfg)
}

func TestLoadOrDefault_UsesFileWhenPresent(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg := LoadOrDefault(path)
	require.Equal(t, "ethereum", cfg.Networks[0].Network)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestDefaultSentinelConfig(t *testing.T) {
	cfg := DefaultSentinelConfig()
	require.Len(t, cfg.Networks, 1)
	require.NotEmpty(t, cfg.Networks[0].RPC.Endpoints)
	require.True(t, cfg.Metrics.Enabled)
}

func TestEnabledFilters(t *testing.T) {
	net := NetworkSettings{
		Collectors: []PluginEntry{
			{Name: "token_transfer", Enabled: true},
			{Name: "web3event", Enabled: false},
		},
		Strategies: []PluginEntry{
			{Name: "token_movement", Enabled: true},
		},
		Executors: []PluginEntry{
			{Name: "logger", Enabled: false},
		},
	}

	collectors := net.EnabledCollectors()
	require.Len(t, collectors, 1)
	require.Equal(t, "token_transfer", collectors[0].Name)

	strategies := net.EnabledStrategies()
	require.Len(t, strategies, 1)
	require.Equal(t, "token_movement", strategies[0].Name)

	require.Empty(t, net.EnabledExecutors())
}
