package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"crypto-dashboard/internal/dashboard"
)

// maxLineLen counts runes.
const maxLineLen = 140

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Narrator writes one "[AI]" terminal line about the current board.
type Narrator struct {
	enabled        bool
	model          generator
	modelName      string
	disabledReason string
}

func NewNarrator(cfg Config) *Narrator {
	if !cfg.Enabled {
		return &Narrator{disabledReason: "disabled by config"}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		hlog.Warnf("narrator disabled: missing api key or model")
		return &Narrator{disabledReason: "api_key or model missing"}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		hlog.Errorf("narrator init error: %v", err)
		return &Narrator{disabledReason: "init failed"}
	}
	return &Narrator{enabled: true, model: cm, modelName: cfg.Model}
}

// NewNarratorWithModel wires an already built chat model.
func NewNarratorWithModel(m generator, name string) *Narrator {
	if m == nil {
		return &Narrator{disabledReason: "not configured"}
	}
	return &Narrator{enabled: true, model: m, modelName: name}
}

func (n *Narrator) Enabled() bool {
	return n != nil && n.enabled && n.model != nil
}

type boardLine struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Change  float64 `json:"change_pct_24h"`
	WinRate float64 `json:"win_rate"`
}

// Narrate returns an LLM line, or FallbackLine when the model is disabled or
// fails. mode is "llm" or "fallback".
func (n *Narrator) Narrate(ctx context.Context, quotes []dashboard.AssetQuote) (line string, mode string, err error) {
	if !n.Enabled() {
		return FallbackLine(quotes), "fallback", nil
	}
	if len(quotes) == 0 {
		return FallbackLine(quotes), "fallback", nil
	}

	board := make([]boardLine, 0, len(quotes))
	for _, q := range quotes {
		board = append(board, boardLine{Symbol: q.Symbol, Price: q.Price, Change: q.ChangePct24h, WinRate: q.WinRate})
	}
	payload, _ := json.Marshal(board)

	system := `You write a single status line for a trading bot terminal.
Output ONE line, at most 100 characters, no quotes, no markdown.
Mention at most two symbols from the board. Never give financial advice.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Board: %s", string(payload))),
	}
	resp, err := n.model.Generate(ctx, messages)
	if err != nil {
		logLLMError(err)
		return FallbackLine(quotes), "fallback", err
	}
	out := sanitizeLine(resp.Content)
	if out == "" {
		return FallbackLine(quotes), "fallback", fmt.Errorf("empty narrator output")
	}
	return out, "llm", nil
}

func sanitizeLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	text = strings.Trim(text, "\"'`")
	if text == "" {
		return ""
	}
	if !strings.HasPrefix(text, "[") {
		text = "[AI] " + text
	}
	if runes := []rune(text); len(runes) > maxLineLen {
		text = string(runes[:maxLineLen]) + "..."
	}
	return text
}

// FallbackLine names the biggest 24h mover on the board.
func FallbackLine(quotes []dashboard.AssetQuote) string {
	if len(quotes) == 0 {
		return "[SYSTEM] Waiting for market data..."
	}
	top := quotes[0]
	for _, q := range quotes[1:] {
		if math.Abs(q.ChangePct24h) > math.Abs(top.ChangePct24h) {
			top = q
		}
	}
	word := "Momentum"
	if top.ChangePct24h < 0 {
		word = "Selling pressure"
	}
	return fmt.Sprintf("[AI] %s detected on %s (%s 24h)", word, top.Symbol, dashboard.FormatChange(top.ChangePct24h))
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		hlog.Errorf("narrator api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	hlog.Errorf("narrator error: %v", err)
}
