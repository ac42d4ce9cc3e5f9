package market_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crypto-dashboard/internal/market"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	ids   []string
	body  []byte
	err   error
}

func (f *fakeProvider) FetchMarkets(_ context.Context, ids []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = ids
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const payload = `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":50000,"market_cap_rank":1,"sparkline_in_7d":{"price":[1,2,3]}}]`

func TestGateway_CachesWithinWindow(t *testing.T) {
	p := &fakeProvider{body: []byte(payload)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := market.NewGateway(p, market.NewMemoryCacheWithClock(clock.Now), nil, "usd", 60*time.Second)

	raw, cached, err := g.Raw(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Errorf("first call should not be served from cache")
	}
	if string(raw) != payload {
		t.Errorf("payload must pass through unmodified, got %s", raw)
	}

	clock.Advance(59 * time.Second)
	raw, cached, err = g.Raw(context.Background())
	if err != nil || !cached {
		t.Fatalf("expected cached payload, cached=%v err=%v", cached, err)
	}
	if string(raw) != payload {
		t.Errorf("cached payload differs: %s", raw)
	}
	if p.Calls() != 1 {
		t.Errorf("expected 1 upstream call inside the window, got %d", p.Calls())
	}

	clock.Advance(2 * time.Second)
	if _, cached, _ = g.Raw(context.Background()); cached {
		t.Errorf("expired entry must not be served")
	}
	if p.Calls() != 2 {
		t.Errorf("expected refetch after window, got %d calls", p.Calls())
	}
}

func TestGateway_SendsFixedIDs(t *testing.T) {
	p := &fakeProvider{body: []byte("[]")}
	g := market.NewGateway(p, nil, nil, "", 0)
	if _, _, err := g.Raw(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.ids) != len(market.DefaultIDs) {
		t.Fatalf("expected %d ids, got %v", len(market.DefaultIDs), p.ids)
	}
	for i, id := range market.DefaultIDs {
		if p.ids[i] != id {
			t.Errorf("id %d: want %s, got %s", i, id, p.ids[i])
		}
	}
}

func TestGateway_FailureIsOpaqueAndNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("coingecko api error: 500")}
	g := market.NewGateway(p, nil, []string{"bitcoin"}, "usd", time.Minute)

	_, _, err := g.Raw(context.Background())
	if !errors.Is(err, market.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	p.mu.Lock()
	p.err = nil
	p.body = []byte(payload)
	p.mu.Unlock()

	if _, cached, err := g.Raw(context.Background()); err != nil || cached {
		t.Errorf("failure must not be cached, cached=%v err=%v", cached, err)
	}
	if p.Calls() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", p.Calls())
	}
}

func TestGateway_RejectsNonArrayBody(t *testing.T) {
	p := &fakeProvider{body: []byte(`{"status":{"error_code":429}}`)}
	g := market.NewGateway(p, nil, nil, "usd", time.Minute)
	if _, _, err := g.Raw(context.Background()); !errors.Is(err, market.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed for object body, got %v", err)
	}
}

func TestGateway_MarketDataDecodes(t *testing.T) {
	p := &fakeProvider{body: []byte(payload)}
	g := market.NewGateway(p, nil, nil, "usd", time.Minute)
	recs, err := g.MarketData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "bitcoin" || recs[0].CurrentPrice != 50000 {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].Sparkline == nil || len(recs[0].Sparkline.Price) != 3 {
		t.Errorf("sparkline not decoded: %+v", recs[0].Sparkline)
	}
}

func TestGateway_NilProviderIsOpaque(t *testing.T) {
	g := market.NewGateway(nil, nil, nil, "usd", time.Minute)
	if _, _, err := g.Raw(context.Background()); !errors.Is(err, market.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed without a provider, got %v", err)
	}
	if _, err := g.MarketData(context.Background()); !errors.Is(err, market.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed from MarketData, got %v", err)
	}
}
