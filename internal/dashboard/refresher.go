package dashboard

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"crypto-dashboard/internal/market"
	"crypto-dashboard/internal/store"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultHighlightTTL = time.Second
)

type Source interface {
	MarketData(ctx context.Context) ([]market.Record, error)
}

// Recorder persists refresh outcomes. *store.Store satisfies it.
type Recorder interface {
	InsertAssetSnapshots(items []store.AssetSnapshot) error
	InsertRefreshRun(run store.RefreshRun) error
}

type Config struct {
	Interval     time.Duration
	Enabled      bool
	HighlightTTL time.Duration
	// DiscardStale drops results of refreshes that resolve after a newer one
	// has already been applied.
	DiscardStale bool
}

type State struct {
	Quotes     []AssetQuote `json:"quotes"`
	LastUpdate time.Time    `json:"last_update"`
	ChangedIDs []string     `json:"changed_ids"`
	IsLoading  bool         `json:"is_loading"`
	Error      string       `json:"error,omitempty"`
}

// ShowFailure reports whether the view has nothing to show but an error.
func (s State) ShowFailure() bool {
	return len(s.Quotes) == 0 && s.Error != ""
}

func (s State) IsChanged(id string) bool {
	return slices.Contains(s.ChangedIDs, id)
}

type Option func(*Refresher)

func WithRecorder(rec Recorder) Option {
	return func(r *Refresher) { r.recorder = rec }
}

func WithCatalog(cat *Catalog) Option {
	return func(r *Refresher) {
		if cat != nil {
			r.catalog = cat
		}
	}
}

// WithRand replaces the perturbation source; fn must return values in [0,1).
func WithRand(fn func() float64) Option {
	return func(r *Refresher) {
		if fn != nil {
			r.rand = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

type Refresher struct {
	source   Source
	cfg      Config
	catalog  *Catalog
	recorder Recorder
	rand     func() float64
	now      func() time.Time

	mu         sync.Mutex
	quotes     []AssetQuote
	lastUpdate time.Time
	changed    map[string]struct{}
	loading    bool
	lastErr    string
	prevPrices map[string]float64
	issued     uint64
	applied    uint64
	timers     map[*time.Timer]struct{}
	closed     bool

	schedMu sync.Mutex
	baseCtx context.Context
	stopCh  chan struct{}
}

func NewRefresher(source Source, cfg Config, opts ...Option) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.HighlightTTL <= 0 {
		cfg.HighlightTTL = DefaultHighlightTTL
	}
	r := &Refresher{
		source:     source,
		cfg:        cfg,
		catalog:    DefaultCatalog(),
		rand:       rand.Float64,
		now:        time.Now,
		changed:    make(map[string]struct{}),
		loading:    true,
		prevPrices: make(map[string]float64),
		timers:     make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh runs one poll cycle. Failures are kept in the state and never
// returned.
func (r *Refresher) Refresh(ctx context.Context) {
	r.mu.Lock()
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	if r.source == nil {
		r.fail(seq, "market source not configured")
		return
	}

	records, err := r.source.MarketData(ctx)
	if err != nil {
		hlog.Errorf("error loading crypto data: %v", err)
		r.fail(seq, err.Error())
		return
	}

	r.mu.Lock()
	if r.cfg.DiscardStale && seq < r.applied {
		r.mu.Unlock()
		hlog.Debugf("dashboard refresh %d discarded, %d already applied", seq, r.applied)
		return
	}

	prior := make(map[string]float64, len(r.quotes))
	for _, q := range r.quotes {
		prior[q.ID] = q.WinRate
	}

	quotes := make([]AssetQuote, 0, len(records))
	for i, rec := range records {
		winRate := r.catalog.SeedWinRate(rec.ID)
		if prev, ok := prior[rec.ID]; ok {
			winRate = PerturbWinRate(prev, r.rand())
		}
		quotes = append(quotes, buildQuote(rec, i, winRate, r.catalog))
	}

	changed := make(map[string]struct{})
	for _, q := range quotes {
		if prev, ok := r.prevPrices[q.ID]; ok && prev != q.Price {
			changed[q.ID] = struct{}{}
		}
		r.prevPrices[q.ID] = q.Price
	}

	ts := r.now()
	r.quotes = quotes
	r.lastUpdate = ts
	r.changed = changed
	r.loading = false
	r.lastErr = ""
	if seq > r.applied {
		r.applied = seq
	}
	r.scheduleClearLocked()
	snapshot := cloneQuotes(quotes)
	r.mu.Unlock()

	r.record(ts, snapshot, changed, "")
}

func (r *Refresher) fail(seq uint64, msg string) {
	r.mu.Lock()
	if r.cfg.DiscardStale && seq < r.applied {
		r.mu.Unlock()
		return
	}
	if msg == "" {
		msg = "Error loading data"
	}
	r.lastErr = msg
	r.loading = false
	r.mu.Unlock()

	r.record(r.now(), nil, nil, msg)
}

// scheduleClearLocked arms a one-shot timer that empties the changed set. The
// timer fires even if later refreshes published a newer set.
func (r *Refresher) scheduleClearLocked() {
	if r.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(r.cfg.HighlightTTL, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.timers, t)
		if r.closed {
			return
		}
		r.changed = make(map[string]struct{})
	})
	r.timers[t] = struct{}{}
}

func (r *Refresher) record(ts time.Time, quotes []AssetQuote, changed map[string]struct{}, errMsg string) {
	if r.recorder == nil {
		return
	}
	if errMsg == "" && len(quotes) > 0 {
		items := make([]store.AssetSnapshot, 0, len(quotes))
		for _, q := range quotes {
			_, isChanged := changed[q.ID]
			items = append(items, store.AssetSnapshot{
				TS:        ts.Unix(),
				AssetID:   q.ID,
				Symbol:    q.Symbol,
				Price:     q.Price,
				ChangePct: q.ChangePct24h,
				WinRate:   q.WinRate,
				MarketCap: q.MarketCap,
				Volume:    q.Volume24h,
				Changed:   isChanged,
			})
		}
		if err := r.recorder.InsertAssetSnapshots(items); err != nil {
			hlog.Errorf("insert asset snapshots error: %v", err)
		}
	}
	run := store.RefreshRun{
		TS:           ts.Unix(),
		OK:           errMsg == "",
		Error:        errMsg,
		QuoteCount:   len(quotes),
		ChangedCount: len(changed),
	}
	if err := r.recorder.InsertRefreshRun(run); err != nil {
		hlog.Errorf("insert refresh run error: %v", err)
	}
}

// Start issues the initial refresh and, when enabled, the periodic schedule.
func (r *Refresher) Start(ctx context.Context) {
	r.schedMu.Lock()
	r.baseCtx = ctx
	r.schedMu.Unlock()

	go r.Refresh(ctx)
	if r.cfg.Enabled {
		r.SetEnabled(true)
	}
}

// SetEnabled starts or cancels the periodic schedule. In-flight refreshes and
// published data are left alone.
func (r *Refresher) SetEnabled(on bool) {
	r.schedMu.Lock()
	defer r.schedMu.Unlock()

	if !on {
		if r.stopCh != nil {
			close(r.stopCh)
			r.stopCh = nil
		}
		return
	}
	if r.stopCh != nil {
		return
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	ctx := r.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	stop := make(chan struct{})
	r.stopCh = stop
	go r.loop(ctx, stop)
}

func (r *Refresher) Enabled() bool {
	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	return r.stopCh != nil
}

func (r *Refresher) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// overlapping refreshes are allowed; a slow upstream must not
			// delay the next tick
			go r.Refresh(ctx)
		}
	}
}

// Close tears the refresher down: the schedule is cancelled and pending
// highlight timers are stopped.
func (r *Refresher) Close() {
	r.SetEnabled(false)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for t := range r.timers {
		t.Stop()
	}
	clear(r.timers)
}

func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.changed))
	for id := range r.changed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return State{
		Quotes:     cloneQuotes(r.quotes),
		LastUpdate: r.lastUpdate,
		ChangedIDs: ids,
		IsLoading:  r.loading,
		Error:      r.lastErr,
	}
}

func cloneQuotes(in []AssetQuote) []AssetQuote {
	out := make([]AssetQuote, len(in))
	for i, q := range in {
		out[i] = q.clone()
	}
	return out
}
