package dashboard

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

func FormatPrice(price float64) string {
	switch {
	case price >= 1000:
		return "$" + humanize.FormatFloat("#,###.##", price)
	case price >= 1:
		return fmt.Sprintf("$%.2f", price)
	default:
		return fmt.Sprintf("$%.4f", price)
	}
}

func FormatLargeNumber(n float64) string {
	switch {
	case n >= 1e12:
		return fmt.Sprintf("$%.2fT", n/1e12)
	case n >= 1e9:
		return fmt.Sprintf("$%.2fB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("$%.2fM", n/1e6)
	default:
		return "$" + humanize.Commaf(n)
	}
}

func FormatChange(change float64) string {
	sign := ""
	if change >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, change)
}

type Display struct {
	Price     string `json:"price"`
	Change    string `json:"change"`
	MarketCap string `json:"market_cap"`
	Volume    string `json:"volume_24h"`
	High      string `json:"high_24h"`
	Low       string `json:"low_24h"`
}

func DisplayOf(q AssetQuote) Display {
	return Display{
		Price:     FormatPrice(q.Price),
		Change:    FormatChange(q.ChangePct24h),
		MarketCap: FormatLargeNumber(q.MarketCap),
		Volume:    FormatLargeNumber(q.Volume24h),
		High:      FormatPrice(q.High24h),
		Low:       FormatPrice(q.Low24h),
	}
}
