package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const DefaultCacheTTL = 60 * time.Second

type Gateway struct {
	provider Provider
	cache    Cache
	ids      []string
	key      string
	ttl      time.Duration
}

// NewGateway fronts provider with a response cache. The tracked id list is
// copied and fixed for the lifetime of the gateway.
func NewGateway(provider Provider, cache Cache, ids []string, currency string, ttl time.Duration) *Gateway {
	if len(ids) == 0 {
		ids = DefaultIDs
	}
	if currency == "" {
		currency = "usd"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	fixed := append([]string(nil), ids...)
	return &Gateway{
		provider: provider,
		cache:    cache,
		ids:      fixed,
		key:      fmt.Sprintf("markets:%s:%s", strings.ToLower(currency), strings.Join(fixed, ",")),
		ttl:      ttl,
	}
}

func (g *Gateway) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Raw returns the upstream JSON array exactly as received. cached reports
// whether the payload came from the cache.
func (g *Gateway) Raw(ctx context.Context) (json.RawMessage, bool, error) {
	if g.provider == nil {
		hlog.Errorf("error fetching crypto data: market provider not configured")
		return nil, false, ErrFetchFailed
	}

	hit, ok, err := g.cache.Get(ctx, g.key)
	if err != nil {
		hlog.Warnf("gateway cache get error: %v", err)
	} else if ok {
		return json.RawMessage(hit), true, nil
	}

	body, err := g.provider.FetchMarkets(ctx, g.ids)
	if err != nil {
		hlog.Errorf("error fetching crypto data: %v", err)
		return nil, false, ErrFetchFailed
	}
	if !isJSONArray(body) {
		hlog.Errorf("error fetching crypto data: upstream body is not a json array")
		return nil, false, ErrFetchFailed
	}

	if err := g.cache.Set(ctx, g.key, body, g.ttl); err != nil {
		hlog.Warnf("gateway cache set error: %v", err)
	}
	return json.RawMessage(body), false, nil
}

func (g *Gateway) MarketData(ctx context.Context) ([]Record, error) {
	raw, _, err := g.Raw(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode market data: %w", err)
	}
	return out, nil
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false
	}
	return json.Valid(trimmed)
}
