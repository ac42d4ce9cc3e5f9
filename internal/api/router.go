package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crypto-dashboard/internal/dashboard"
	"crypto-dashboard/internal/market"
	"crypto-dashboard/internal/store"
	"crypto-dashboard/internal/terminal"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type ScheduleRequest struct {
	Enabled *bool `json:"enabled"`
}

type QuoteView struct {
	dashboard.AssetQuote
	Display dashboard.Display `json:"display"`
	Changed bool              `json:"changed"`
}

func RegisterRoutes(h *server.Hertz, gw *market.Gateway, ref *dashboard.Refresher, st *store.Store, feed *terminal.Feed, narrator *terminal.Narrator) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(200, map[string]bool{"ok": true})
	})

	h.GET("/api/crypto", func(ctx context.Context, c *app.RequestContext) {
		if gw == nil {
			c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "Failed to fetch cryptocurrency data",
			})
			return
		}
		payload, cached, err := gw.Raw(ctx)
		if err != nil {
			if !errors.Is(err, market.ErrFetchFailed) {
				hlog.Errorf("market gateway error: %v", err)
			}
			c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "Failed to fetch cryptocurrency data",
			})
			return
		}
		if cached {
			c.Response.Header.Set("X-Cache", "HIT")
		} else {
			c.Response.Header.Set("X-Cache", "MISS")
		}
		c.Data(http.StatusOK, "application/json", payload)
	})

	h.GET("/api/v1/dashboard", func(_ context.Context, c *app.RequestContext) {
		if ref == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "dashboard not configured",
			})
			return
		}
		q, err := dashboard.ParseQuery(c.Query("q"), c.Query("filter"), c.Query("sort"), c.Query("order"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, dashboardBody(ref.State(), q))
	})

	h.POST("/api/v1/dashboard/reload", func(ctx context.Context, c *app.RequestContext) {
		if ref == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "dashboard not configured",
			})
			return
		}
		ref.Refresh(ctx)
		c.JSON(http.StatusOK, dashboardBody(ref.State(), dashboard.Query{}))
	})

	h.POST("/api/v1/dashboard/schedule", func(_ context.Context, c *app.RequestContext) {
		if ref == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "dashboard not configured",
			})
			return
		}
		var req ScheduleRequest
		if err := c.BindJSON(&req); err != nil || req.Enabled == nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}
		ref.SetEnabled(*req.Enabled)
		hlog.Infof("dashboard schedule enabled=%v", *req.Enabled)
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"enabled": ref.Enabled(),
		})
	})

	h.GET("/api/v1/snapshots", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		limit, offset, err := parsePage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.QueryAssetSnapshots(c.Query("id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.GET("/api/v1/refreshes", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		limit, offset, err := parsePage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.QueryRefreshRuns(limit, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.GET("/api/v1/terminal", func(_ context.Context, c *app.RequestContext) {
		if feed == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "terminal feed not configured",
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"lines": feed.Lines(time.Now()),
		})
	})

	h.GET("/api/v1/terminal/insight", func(ctx context.Context, c *app.RequestContext) {
		var quotes []dashboard.AssetQuote
		if ref != nil {
			quotes = ref.State().Quotes
		}
		line, mode, err := narrator.Narrate(ctx, quotes)
		if err != nil {
			hlog.Warnf("narrator fallback: %v", err)
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":   true,
			"mode": mode,
			"line": line,
		})
	})
}

func dashboardBody(s dashboard.State, q dashboard.Query) map[string]any {
	quotes := q.Apply(s.Quotes)
	views := make([]QuoteView, 0, len(quotes))
	for _, aq := range quotes {
		views = append(views, QuoteView{
			AssetQuote: aq,
			Display:    dashboard.DisplayOf(aq),
			Changed:    s.IsChanged(aq.ID),
		})
	}
	changed := s.ChangedIDs
	if changed == nil {
		changed = []string{}
	}
	var lastUpdate any
	if !s.LastUpdate.IsZero() {
		lastUpdate = s.LastUpdate.Format(time.RFC3339)
	}
	return map[string]any{
		"ok":           true,
		"quotes":       views,
		"last_update":  lastUpdate,
		"changed_ids":  changed,
		"is_loading":   s.IsLoading,
		"error":        s.Error,
		"show_failure": s.ShowFailure(),
	}
}

func parsePage(c *app.RequestContext) (int, int, error) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseOffset(c.Query("offset"))
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
