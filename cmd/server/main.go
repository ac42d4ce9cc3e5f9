package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-dashboard/internal/api"
	"crypto-dashboard/internal/config"
	"crypto-dashboard/internal/dashboard"
	"crypto-dashboard/internal/market"
	"crypto-dashboard/internal/store"
	"crypto-dashboard/internal/terminal"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/redis/go-redis/v9"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/app.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		hlog.Fatalf("config error: %v", err)
	}
	hlog.SetLevel(parseLevel(cfg.Log.Level))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		hlog.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			hlog.Errorf("store close error: %v", err)
		}
	}()

	provider := market.NewCoinGeckoProvider(
		time.Duration(cfg.Market.TimeoutMs)*time.Millisecond,
		market.WithBaseURL(cfg.Market.BaseURL),
		market.WithCurrency(cfg.Market.Currency),
		market.WithAPIKey(cfg.Market.APIKey),
	)

	var cache market.Cache = market.NewMemoryCache()
	if cfg.Market.Cache.Backend == "redis" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Market.Cache.Redis.Addr,
			Password: cfg.Market.Cache.Redis.Password,
			DB:       cfg.Market.Cache.Redis.DB,
		})
		defer rc.Close()
		redisCache := market.NewRedisCache(rc, cfg.Market.Cache.Redis.Prefix)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			hlog.Warnf("redis unavailable at %s, requests will go upstream: %v", cfg.Market.Cache.Redis.Addr, err)
		}
		cancel()
		cache = redisCache
	}

	gw := market.NewGateway(provider, cache, cfg.Market.IDs, provider.Currency(),
		time.Duration(cfg.Market.CacheTTLSec)*time.Second)

	var source dashboard.Source = gw
	if cfg.Dashboard.Source == "http" {
		source = market.NewHTTPSource(cfg.Dashboard.SourceURL,
			time.Duration(cfg.Dashboard.SourceTimeout)*time.Millisecond)
	}

	ref := dashboard.NewRefresher(source, dashboard.Config{
		Interval:     time.Duration(cfg.Dashboard.IntervalMs) * time.Millisecond,
		Enabled:      cfg.Dashboard.Enabled,
		HighlightTTL: time.Duration(cfg.Dashboard.HighlightMs) * time.Millisecond,
		DiscardStale: cfg.Dashboard.DiscardStale,
	}, dashboard.WithRecorder(st))
	defer ref.Close()

	feed := terminal.NewFeed(nil, time.Duration(cfg.Terminal.CadenceMs)*time.Millisecond, time.Now())
	narrator := terminal.NewNarrator(terminal.Config{
		Enabled:    cfg.Terminal.Narrator.Enabled,
		Model:      cfg.Terminal.Narrator.Model,
		APIKey:     cfg.Terminal.Narrator.APIKey,
		BaseURL:    cfg.Terminal.Narrator.BaseURL,
		ByAzure:    cfg.Terminal.Narrator.ByAzure,
		APIVersion: cfg.Terminal.Narrator.APIVersion,
		TimeoutMs:  cfg.Terminal.Narrator.TimeoutMs,
	})

	api.RegisterRoutes(h, gw, ref, st, feed, narrator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	h.OnRun = append(h.OnRun, func(context.Context) error {
		if cfg.Dashboard.Source != "http" {
			ref.Start(ctx)
			return nil
		}
		// the http source reads this server's own /api/crypto, so the first
		// refresh waits until the listener accepts connections
		go func() {
			local := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
			if err := waitForListener(ctx, local, 10*time.Second); err != nil {
				hlog.Warnf("listener not ready, starting refresher anyway: %v", err)
			}
			ref.Start(ctx)
		}()
		return nil
	})

	hlog.Infof("server starting on %s (log.level=%s, source=%s, cache=%s)",
		addr, cfg.Log.Level, cfg.Dashboard.Source, cfg.Market.Cache.Backend)
	h.Spin()
}

func waitForListener(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func parseLevel(s string) hlog.Level {
	switch s {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "notice":
		return hlog.LevelNotice
	case "warn":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	case "fatal":
		return hlog.LevelFatal
	default:
		return hlog.LevelInfo
	}
}
