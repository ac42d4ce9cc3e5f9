package dashboard

import (
	"slices"
	"strings"

	"crypto-dashboard/internal/market"
)

type AssetQuote struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	ChangePct24h float64   `json:"change_pct_24h"`
	Rank         int       `json:"rank"`
	MarketCap    float64   `json:"market_cap"`
	Volume24h    float64   `json:"volume_24h"`
	High24h      float64   `json:"high_24h"`
	Low24h       float64   `json:"low_24h"`
	PriceHistory []float64 `json:"price_history"`
	WinRate      float64   `json:"win_rate"`
	Colors       [2]string `json:"colors"`
}

func (q AssetQuote) clone() AssetQuote {
	q.PriceHistory = slices.Clone(q.PriceHistory)
	return q
}

// buildQuote merges one upstream record with the simulated fields. winRate is
// already resolved by the caller.
func buildQuote(rec market.Record, index int, winRate float64, cat *Catalog) AssetQuote {
	rank := rec.MarketCapRank
	if rank <= 0 {
		rank = index + 1
	}
	high := rec.High24h
	if high == 0 {
		high = rec.CurrentPrice
	}
	low := rec.Low24h
	if low == 0 {
		low = rec.CurrentPrice
	}
	history := []float64{rec.CurrentPrice}
	if rec.Sparkline != nil && rec.Sparkline.Price != nil {
		history = slices.Clone(rec.Sparkline.Price)
	}
	return AssetQuote{
		ID:           rec.ID,
		Name:         rec.Name,
		Symbol:       strings.ToUpper(rec.Symbol),
		Price:        rec.CurrentPrice,
		ChangePct24h: rec.PriceChangePercentage24h,
		Rank:         rank,
		MarketCap:    rec.MarketCap,
		Volume24h:    rec.TotalVolume,
		High24h:      high,
		Low24h:       low,
		PriceHistory: history,
		WinRate:      winRate,
		Colors:       cat.Colors(rec.ID),
	}
}
