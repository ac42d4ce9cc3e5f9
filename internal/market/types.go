package market

import (
	"context"
	"errors"
	"time"
)

// ErrFetchFailed is the only error the gateway surfaces to its callers.
var ErrFetchFailed = errors.New("fetch failed")

var DefaultIDs = []string{
	"bitcoin",
	"ethereum",
	"binancecoin",
	"solana",
	"cardano",
	"ripple",
	"polkadot",
	"avalanche-2",
}

type Record struct {
	ID                       string     `json:"id"`
	Symbol                   string     `json:"symbol"`
	Name                     string     `json:"name"`
	CurrentPrice             float64    `json:"current_price"`
	MarketCap                float64    `json:"market_cap"`
	MarketCapRank            int        `json:"market_cap_rank"`
	TotalVolume              float64    `json:"total_volume"`
	High24h                  float64    `json:"high_24h"`
	Low24h                   float64    `json:"low_24h"`
	PriceChangePercentage24h float64    `json:"price_change_percentage_24h"`
	Sparkline                *Sparkline `json:"sparkline_in_7d,omitempty"`
}

type Sparkline struct {
	Price []float64 `json:"price"`
}

type Provider interface {
	FetchMarkets(ctx context.Context, ids []string) ([]byte, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
