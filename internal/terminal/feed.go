package terminal

import (
	"time"
)

const DefaultCadence = 2 * time.Second

var DefaultScript = []string{
	"[SYSTEM] Opening connection to blockchain nodes...",
	"[AI] Scanning Ethereum network...",
	"[BOT] Analyzing market volume...",
	"[SYSTEM] Bullish pattern detected on BTC",
	"[AI] Computing support levels...",
	"[BOT] Support identified at $42,000",
	"[SYSTEM] Watching whale orders...",
	"[AI] Tuning dynamic stop loss...",
	"[BOT] Running hedge strategy...",
	"[SYSTEM] Refreshing technical indicators...",
	"[AI] RSI oversold on ETH",
	"[BOT] Preparing entry signal...",
	"[SYSTEM] Checking market liquidity...",
	"[AI] Bullish divergence confirmed",
	"[BOT] Optimizing risk/reward ratio...",
	"[SYSTEM] Syncing with exchange APIs...",
	"[AI] Reading market sentiment...",
	"[BOT] Take profit set at $48,500",
}

// Feed replays a fixed script one line per cadence. Once every line has been
// shown the next tick empties the window and the script starts over.
type Feed struct {
	script  []string
	cadence time.Duration
	start   time.Time
}

func NewFeed(script []string, cadence time.Duration, start time.Time) *Feed {
	if len(script) == 0 {
		script = DefaultScript
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Feed{
		script:  append([]string(nil), script...),
		cadence: cadence,
		start:   start,
	}
}

func (f *Feed) Lines(now time.Time) []string {
	elapsed := now.Sub(f.start)
	if elapsed < 0 {
		return []string{}
	}
	ticks := int64(elapsed / f.cadence)
	visible := int(ticks % int64(len(f.script)+1))
	return append([]string{}, f.script[:visible]...)
}
