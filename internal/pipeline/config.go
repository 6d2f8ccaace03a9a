package pipeline

import "time"

// PluginSpec names one configured collector, strategy or executor and
// carries its settings section, mirroring
// infrastructure/config.PluginEntry's "enabled[] + <name>.*" shape.
type PluginSpec struct {
	Name     string
	Settings map[string]interface{}
}

// Config configures one pipeline instance: the plugins it runs and
// its queue/stats housekeeping.
type Config struct {
	Network            string
	StateDir           string
	QueueDir           string
	GroupName          string
	StatsInterval      time.Duration
	StaleWarnThreshold time.Duration

	Collectors []PluginSpec
	Strategies []PluginSpec
	Executors  []PluginSpec
}

func (c *Config) applyDefaults() {
	if c.GroupName == "" {
		c.GroupName = c.Network
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 30 * time.Second
	}
	if c.StaleWarnThreshold <= 0 {
		c.StaleWarnThreshold = 60 * time.Second
	}
}
