package dashboard

import (
	"fmt"
	"sort"
	"strings"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterGainers Filter = "gainers"
	FilterLosers  Filter = "losers"
	FilterHighWin Filter = "high-win"
)

type SortField string

const (
	SortRank    SortField = "rank"
	SortPrice   SortField = "price"
	SortChange  SortField = "change"
	SortWinRate SortField = "win_rate"
)

const highWinThreshold = 70.0

type Query struct {
	Search string
	Filter Filter
	Sort   SortField
	Desc   bool
}

// ParseQuery validates raw request parameters. Empty values select the
// defaults: no search, all assets, rank ascending.
func ParseQuery(search, filter, sortField, order string) (Query, error) {
	q := Query{Search: strings.TrimSpace(search), Filter: FilterAll, Sort: SortRank}

	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", "all":
	case "gainers":
		q.Filter = FilterGainers
	case "losers":
		q.Filter = FilterLosers
	case "high-win", "hig-win":
		q.Filter = FilterHighWin
	default:
		return Query{}, fmt.Errorf("invalid filter: %q", filter)
	}

	switch strings.TrimSpace(sortField) {
	case "", "rank":
	case "price":
		q.Sort = SortPrice
	case "change":
		q.Sort = SortChange
	case "win_rate", "winRate":
		q.Sort = SortWinRate
	default:
		return Query{}, fmt.Errorf("invalid sort: %q", sortField)
	}

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return Query{}, fmt.Errorf("invalid order: %q", order)
	}
	return q, nil
}

// Apply returns a filtered, sorted copy of quotes.
func (q Query) Apply(quotes []AssetQuote) []AssetQuote {
	needle := strings.ToLower(q.Search)
	out := make([]AssetQuote, 0, len(quotes))
	for _, c := range quotes {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Symbol), needle) {
			continue
		}
		switch q.Filter {
		case FilterGainers:
			if c.ChangePct24h <= 0 {
				continue
			}
		case FilterLosers:
			if c.ChangePct24h >= 0 {
				continue
			}
		case FilterHighWin:
			if c.WinRate < highWinThreshold {
				continue
			}
		}
		out = append(out, c.clone())
	}

	key := sortKey(q.Sort)
	sort.SliceStable(out, func(i, j int) bool {
		if q.Desc {
			return key(out[i]) > key(out[j])
		}
		return key(out[i]) < key(out[j])
	})
	return out
}

func sortKey(f SortField) func(AssetQuote) float64 {
	switch f {
	case SortPrice:
		return func(c AssetQuote) float64 { return c.Price }
	case SortChange:
		return func(c AssetQuote) float64 { return c.ChangePct24h }
	case SortWinRate:
		return func(c AssetQuote) float64 { return c.WinRate }
	default:
		return func(c AssetQuote) float64 { return float64(c.Rank) }
	}
}
