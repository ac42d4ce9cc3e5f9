package dashboard

const (
	DefaultWinRate = 60.0
	MinWinRate     = 40.0
	MaxWinRate     = 90.0
)

var DefaultColors = [2]string{"#6366f1", "#8b5cf6"}

// Catalog is the static per-asset decoration data. It is built once and never
// mutated.
type Catalog struct {
	colors map[string][2]string
	seeds  map[string]float64
}

func NewCatalog(colors map[string][2]string, seeds map[string]float64) *Catalog {
	c := &Catalog{
		colors: make(map[string][2]string, len(colors)),
		seeds:  make(map[string]float64, len(seeds)),
	}
	for k, v := range colors {
		c.colors[k] = v
	}
	for k, v := range seeds {
		c.seeds[k] = v
	}
	return c
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		map[string][2]string{
			"bitcoin":     {"#f7931a", "#ff9500"},
			"ethereum":    {"#627eea", "#8b9aff"},
			"binancecoin": {"#f3ba2f", "#fcd435"},
			"solana":      {"#14f195", "#9945ff"},
			"cardano":     {"#0033ad", "#0066ff"},
			"ripple":      {"#23292f", "#346aa9"},
			"polkadot":    {"#e6007a", "#ff0080"},
			"avalanche-2": {"#e84142", "#ff6b6b"},
		},
		map[string]float64{
			"bitcoin":     68.5,
			"ethereum":    72.3,
			"binancecoin": 65.8,
			"solana":      78.9,
			"cardano":     55.2,
			"ripple":      62.1,
			"polkadot":    59.4,
			"avalanche-2": 71.5,
		},
	)
}

func (c *Catalog) Colors(id string) [2]string {
	if v, ok := c.colors[id]; ok {
		return v
	}
	return DefaultColors
}

func (c *Catalog) SeedWinRate(id string) float64 {
	if v, ok := c.seeds[id]; ok && v != 0 {
		return v
	}
	return DefaultWinRate
}

// PerturbWinRate moves rate by (r-0.5) for r in [0,1) and clamps the result.
func PerturbWinRate(rate, r float64) float64 {
	return clamp(rate+(r-0.5), MinWinRate, MaxWinRate)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
