package datafeed

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/R3E-Network/sentinel/infrastructure/fallback"
)

const priceCacheKey = "all_prices"

// Service provides price feed data from Chainlink.
type Service struct {
	client   *Client
	fallback *fallback.Handler
	cacheTTL time.Duration
}

// ServiceConfig holds configuration for the datafeed service.
type ServiceConfig struct {
	RPCURL   string
	Network  string
	CacheTTL time.Duration
}

// NewService creates a new datafeed service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	client, err := NewClient(cfg.RPCURL, cfg.Network)
	if err != nil {
		return nil, err
	}

	fbCfg := fallback.DefaultConfig()
	fbCfg.MaxAttempts = 1

	return &Service{
		client:   client,
		fallback: fallback.NewHandler(fbCfg),
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// Close closes the service.
func (s *Service) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// GetAllPrices returns a fresh cache-TTL-bounded batch of prices. A
// fetch failure falls back to the last successfully fetched batch,
// kept for ten cache TTLs, rather than surfacing the error to the caller: a
// momentarily unreachable feed shouldn't make every USD-denominated
// detector go blind.
func (s *Service) GetAllPrices(ctx context.Context) (*BatchPriceData, error) {
	if cached, ok := s.fallback.GetCache(priceCacheKey); ok {
		if data := cached.(*BatchPriceData); time.Since(data.FetchedAt) < s.cacheTTL {
			return data, nil
		}
	}

	result := s.fallback.Execute(ctx,
		func(ctx context.Context) (interface{}, error) { return s.client.FetchAllPrices(ctx) },
		func(ctx context.Context) (interface{}, error) {
			if cached, ok := s.fallback.GetCache(priceCacheKey); ok {
				return cached, nil
			}
			return nil, fmt.Errorf("datafeed: no cached prices available")
		},
	)
	if result.Err != nil {
		return nil, result.Err
	}

	data := result.Value.(*BatchPriceData)
	if result.Source == "primary" {
		s.fallback.SetCache(priceCacheKey, data, s.cacheTTL*10)
	}
	return data, nil
}

// USDPrice returns the last cached price of symbol expressed in USD,
// fetching fresh data if the cache has expired. symbol is the feed's
// base asset, e.g. "ETH" for the "ETH/USD" feed.
func (s *Service) USDPrice(ctx context.Context, symbol string) (float64, bool) {
	data, err := s.GetAllPrices(ctx)
	if err != nil {
		return 0, false
	}
	for _, p := range data.Prices {
		if p.Quote != "USD" || !strings.EqualFold(p.Base, symbol) {
			continue
		}
		f, _ := new(big.Float).SetInt(p.Price).Float64()
		for i := 0; i < p.Decimals; i++ {
			f /= 10
		}
		return f, true
	}
	return 0, false
}

// GetFeedCount returns the number of configured feeds.
func (s *Service) GetFeedCount() int {
	return len(s.client.GetFeeds())
}

// FormatPrice formats a price with proper decimals.
func FormatPrice(price int64, decimals int) string {
	if decimals <= 0 {
		return fmt.Sprintf("%d", price)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	whole := price / divisor
	frac := price % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	return fmt.Sprintf(format, whole, frac)
}
