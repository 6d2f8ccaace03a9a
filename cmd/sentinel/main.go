// Command sentinel runs the blockchain observability pipeline: one
// supervisor per configured network, each polling its chain over a
// multi-provider RPC pool, running configured strategies over the
// events it collects, and dispatching any raised alerts to configured
// executors.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/sentinel/infrastructure/config"
	"github.com/R3E-Network/sentinel/infrastructure/datafeed"
	"github.com/R3E-Network/sentinel/infrastructure/logging"
	"github.com/R3E-Network/sentinel/infrastructure/metrics"
	"github.com/R3E-Network/sentinel/internal/chainrpc"
	"github.com/R3E-Network/sentinel/internal/pipeline"
	"github.com/R3E-Network/sentinel/internal/priceoracle"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"

	_ "github.com/R3E-Network/sentinel/internal/collectors/tokentransfer"
	_ "github.com/R3E-Network/sentinel/internal/collectors/web3event"
	_ "github.com/R3E-Network/sentinel/internal/executors/logexec"
	_ "github.com/R3E-Network/sentinel/internal/strategies"
)

func main() {
	if err := run(); err != nil {
		logging.Default().WithError(err).Error("sentinel exited with error")
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()
	configPath := os.Getenv("SENTINEL_CONFIG")
	if p := flag.Arg(0); p != "" {
		configPath = p
	}
	cfg := config.LoadOrDefault(configPath)

	log := logging.New("sentinel", cfg.Logging.Level, cfg.Logging.Format)
	logging.InitDefault("sentinel", cfg.Logging.Level, cfg.Logging.Format)

	var oracle tmctx.PriceOracle
	if cfg.Datafeed.Enabled {
		svc, err := datafeed.NewService(datafeed.ServiceConfig{
			RPCURL:   cfg.Datafeed.RPCURL,
			Network:  cfg.Datafeed.Network,
			CacheTTL: config.ParseDurationOrDefault(cfg.Datafeed.CacheTTL, 30*time.Second),
		})
		if err != nil {
			return fmt.Errorf("sentinel: build datafeed service: %w", err)
		}
		defer svc.Close()
		oracle = priceoracle.New(svc)
	}

	startTime := time.Now()
	var m *metrics.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled && metrics.Enabled() {
		m = metrics.Init("sentinel")
		addr := cfg.Metrics.ListenAddr
		if addr == "" {
			addr = ":9090"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		log.WithField("addr", addr).Info("metrics server listening")
	}
	if m != nil {
		go reportUptime(m, startTime)
	}

	supervisors := make([]*pipeline.Supervisor, 0, len(cfg.Networks))
	pools := make([]*chainrpc.Pool, 0, len(cfg.Networks))

	for _, ns := range cfg.Networks {
		entry := log.WithField("network", ns.Network)

		poolCfg := chainrpc.DefaultPoolConfig()
		for _, ep := range ns.RPC.Endpoints {
			poolCfg.Endpoints = append(poolCfg.Endpoints, chainrpc.EndpointConfig{
				URL:            ep.URL,
				RateLimitRPS:   ep.RateLimitRPS,
				RateLimitBurst: ep.RateLimitBurst,
			})
		}
		if d, ok := parseDuration(ns.RPC.HealthCheckInterval); ok {
			poolCfg.HealthCheckInterval = d
		}
		if d, ok := parseDuration(ns.RPC.HealthCheckTimeout); ok {
			poolCfg.HealthCheckTimeout = d
		}
		if d, ok := parseDuration(ns.RPC.RequestTimeout); ok {
			poolCfg.RequestTimeout = d
		}
		if ns.RPC.MaxRetries > 0 {
			poolCfg.MaxRetries = ns.RPC.MaxRetries
		}
		if ns.RPC.MaxConsecutiveFails > 0 {
			poolCfg.MaxConsecutiveFails = ns.RPC.MaxConsecutiveFails
		}

		pool, err := chainrpc.NewPool(poolCfg, entry)
		if err != nil {
			return fmt.Errorf("sentinel: build RPC pool for %s: %w", ns.Network, err)
		}
		pools = append(pools, pool)
		pool.Start(context.Background())

		pcfg := pipeline.Config{
			Network:   ns.Network,
			StateDir:  ns.StateDir,
			QueueDir:  ns.QueueDir,
			GroupName: ns.GroupName,
		}
		if d, ok := parseDuration(ns.StatsInterval); ok {
			pcfg.StatsInterval = d
		}
		if d, ok := parseDuration(ns.StaleWarnThreshold); ok {
			pcfg.StaleWarnThreshold = d
		}
		for _, c := range ns.EnabledCollectors() {
			pcfg.Collectors = append(pcfg.Collectors, pipeline.PluginSpec{Name: c.Name, Settings: c.Settings})
		}
		for _, s := range ns.EnabledStrategies() {
			pcfg.Strategies = append(pcfg.Strategies, pipeline.PluginSpec{Name: s.Name, Settings: s.Settings})
		}
		for _, e := range ns.EnabledExecutors() {
			pcfg.Executors = append(pcfg.Executors, pipeline.PluginSpec{Name: e.Name, Settings: e.Settings})
		}

		sup, err := pipeline.New(pcfg, pool, oracle, entry)
		if err != nil {
			return fmt.Errorf("sentinel: build pipeline for %s: %w", ns.Network, err)
		}
		supervisors = append(supervisors, sup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, sup := range supervisors {
		if err := sup.Start(ctx); err != nil {
			return fmt.Errorf("sentinel: start pipeline: %w", err)
		}
	}
	log.WithField("networks", len(supervisors)).Info("sentinel running")

	<-ctx.Done()
	log.WithField("component", "sentinel").Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	for _, sup := range supervisors {
		if err := sup.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("pipeline shutdown error")
		}
	}
	for _, pool := range pools {
		pool.Stop()
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func reportUptime(m *metrics.Metrics, startTime time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.UpdateUptime(startTime)
	}
}

func parseDuration(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d := config.ParseDurationOrDefault(raw, 0)
	return d, d > 0
}
