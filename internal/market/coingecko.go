package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

type CoinGeckoProvider struct {
	baseURL  string
	currency string
	apiKey   string
	client   *http.Client
}

type CoinGeckoOption func(*CoinGeckoProvider)

func WithBaseURL(u string) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithCurrency(c string) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		if c != "" {
			p.currency = strings.ToLower(c)
		}
	}
}

func WithAPIKey(key string) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.apiKey = key
	}
}

// NewCoinGeckoProvider builds the upstream client. A zero timeout leaves
// requests unbounded.
func NewCoinGeckoProvider(timeout time.Duration, opts ...CoinGeckoOption) *CoinGeckoProvider {
	if timeout < 0 {
		timeout = 0
	}
	p := &CoinGeckoProvider{
		baseURL:  DefaultBaseURL,
		currency: "usd",
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *CoinGeckoProvider) Currency() string {
	return p.currency
}

func (p *CoinGeckoProvider) FetchMarkets(ctx context.Context, ids []string) ([]byte, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("ids is empty")
	}

	u, err := url.Parse(p.baseURL + "/coins/markets")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("vs_currency", p.currency)
	q.Set("ids", strings.Join(ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "24h")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request coingecko: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("coingecko api error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read coingecko: %w", err)
	}
	return body, nil
}
