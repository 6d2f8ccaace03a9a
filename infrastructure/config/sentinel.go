package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PluginEntry names one configured collector, strategy or executor.
// Disabled entries are parsed but skipped when building a pipeline.
type PluginEntry struct {
	Name     string                 `yaml:"name"`
	Enabled  bool                   `yaml:"enabled"`
	Settings map[string]interface{} `yaml:"settings,omitempty"`
}

// EndpointSettings configures one RPC endpoint in a network's pool.
type EndpointSettings struct {
	URL            string  `yaml:"url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `yaml:"rate_limit_burst,omitempty"`
}

// RPCSettings configures a network's chainrpc.Pool.
type RPCSettings struct {
	Endpoints           []EndpointSettings `yaml:"endpoints"`
	HealthCheckInterval string             `yaml:"health_check_interval,omitempty"`
	HealthCheckTimeout  string             `yaml:"health_check_timeout,omitempty"`
	RequestTimeout      string             `yaml:"request_timeout,omitempty"`
	MaxRetries          int                `yaml:"max_retries,omitempty"`
	MaxConsecutiveFails int                `yaml:"max_consecutive_fails,omitempty"`
}

// NetworkSettings configures one pipeline.Supervisor instance.
type NetworkSettings struct {
	Network            string        `yaml:"network"`
	RPC                RPCSettings   `yaml:"rpc"`
	StateDir           string        `yaml:"state_dir,omitempty"`
	QueueDir           string        `yaml:"queue_dir,omitempty"`
	GroupName          string        `yaml:"group_name,omitempty"`
	StatsInterval      string        `yaml:"stats_interval,omitempty"`
	StaleWarnThreshold string        `yaml:"stale_warn_threshold,omitempty"`
	Collectors         []PluginEntry `yaml:"collectors,omitempty"`
	Strategies         []PluginEntry `yaml:"strategies,omitempty"`
	Executors          []PluginEntry `yaml:"executors,omitempty"`
}

// EnabledCollectors returns only the enabled collector entries.
func (n NetworkSettings) EnabledCollectors() []PluginEntry { return filterEnabled(n.Collectors) }

// EnabledStrategies returns only the enabled strategy entries.
func (n NetworkSettings) EnabledStrategies() []PluginEntry { return filterEnabled(n.Strategies) }

// EnabledExecutors returns only the enabled executor entries.
func (n NetworkSettings) EnabledExecutors() []PluginEntry { return filterEnabled(n.Executors) }

func filterEnabled(entries []PluginEntry) []PluginEntry {
	var out []PluginEntry
	for _, e := range entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// LoggingSettings configures infrastructure/logging.
type LoggingSettings struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsSettings configures the Prometheus metrics HTTP listener.
type MetricsSettings struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// DatafeedSettings configures the optional Chainlink price oracle used
// by USD-denominated detector thresholds.
type DatafeedSettings struct {
	Enabled  bool   `yaml:"enabled"`
	RPCURL   string `yaml:"rpc_url,omitempty"`
	Network  string `yaml:"network,omitempty"`
	CacheTTL string `yaml:"cache_ttl,omitempty"`
}

// SentinelConfig is the top-level configuration tree: one supervisor
// per configured network plus process-wide ambient settings.
type SentinelConfig struct {
	Networks []NetworkSettings `yaml:"networks"`
	Logging  LoggingSettings   `yaml:"logging,omitempty"`
	Metrics  MetricsSettings   `yaml:"metrics,omitempty"`
	Datafeed DatafeedSettings  `yaml:"datafeed,omitempty"`
}

// Load reads and parses a Sentinel YAML configuration file.
func Load(path string) (*SentinelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg SentinelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Networks) == 0 {
		return nil, fmt.Errorf("config: at least one network must be configured")
	}
	for i, n := range cfg.Networks {
		if n.Network == "" {
			return nil, fmt.Errorf("config: networks[%d]: network name is required", i)
		}
		if len(n.RPC.Endpoints) == 0 {
			return nil, fmt.Errorf("config: networks[%d] (%s): at least one RPC endpoint is required", i, n.Network)
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns a minimal
// single-network default suitable for local experimentation.
func LoadOrDefault(path string) *SentinelConfig {
	if path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultSentinelConfig()
}

// DefaultSentinelConfig returns a single-network Ethereum config with
// the token-transfer collector, token-movement strategy and logging
// executor enabled against the public Ankr endpoint.
func DefaultSentinelConfig() *SentinelConfig {
	return &SentinelConfig{
		Networks: []NetworkSettings{{
			Network: "ethereum",
			RPC: RPCSettings{
				Endpoints: []EndpointSettings{
					{URL: "https://rpc.ankr.com/eth", RateLimitRPS: 5, RateLimitBurst: 10},
				},
			},
			StateDir: "./data/ethereum/state",
			QueueDir: "./data/ethereum/queues",
			Collectors: []PluginEntry{
				{Name: "token_transfer", Enabled: true, Settings: map[string]interface{}{
					"network": "ethereum",
				}},
			},
			Strategies: []PluginEntry{
				{Name: "token_movement", Enabled: true},
			},
			Executors: []PluginEntry{
				{Name: "logger", Enabled: true},
			},
		}},
		Logging: LoggingSettings{Level: "info", Format: "json"},
		Metrics: MetricsSettings{Enabled: true, ListenAddr: ":9090"},
	}
}
