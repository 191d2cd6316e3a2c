package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polytrader/internal/feeds"
	"polytrader/internal/strategy"
)

const (
	GammaBaseURL = "https://gamma-api.polymarket.com"
	ClobBaseURL  = "https://clob.polymarket.com"
)

// PolymarketConfig configures the public Polymarket source.
type PolymarketConfig struct {
	GammaURL  string
	ClobURL   string
	SeriesID  string
	UserAgent string
	Timeout   time.Duration
	// MetaTTL bounds how long token metadata from a listing is trusted.
	MetaTTL time.Duration
}

// Polymarket reads markets from Gamma and prices from the public CLOB. It
// cannot place orders.
type Polymarket struct {
	gamma    *feeds.JSONClient
	clob     *feeds.JSONClient
	seriesID string
	meta     *Cache[tokenMeta]
	now      func() time.Time
}

// tokenMeta is what a listing tells us about how to quote a market.
type tokenMeta struct {
	yesToken  string
	noToken   string
	liquidity *float64
	// Gamma's outcomePrices, used when token ids are missing or the CLOB
	// has no price.
	fallbackYes *float64
	fallbackNo  *float64
}

// NewPolymarket creates the public Polymarket source.
func NewPolymarket(cfg PolymarketConfig) *Polymarket {
	if cfg.GammaURL == "" {
		cfg.GammaURL = GammaBaseURL
	}
	if cfg.ClobURL == "" {
		cfg.ClobURL = ClobBaseURL
	}
	if cfg.MetaTTL <= 0 {
		cfg.MetaTTL = time.Hour
	}
	var headers http.Header
	if cfg.UserAgent != "" {
		headers = http.Header{"User-Agent": {cfg.UserAgent}}
	}
	opts := []feeds.Option{feeds.WithTimeout(cfg.Timeout), feeds.WithRateLimit(10, 5)}
	return &Polymarket{
		gamma:    feeds.NewJSONClient(cfg.GammaURL, headers, opts...),
		clob:     feeds.NewJSONClient(cfg.ClobURL, headers, opts...),
		seriesID: cfg.SeriesID,
		meta:     NewCache[tokenMeta](cfg.MetaTTL),
		now:      time.Now,
	}
}

func (p *Polymarket) Name() string { return "polymarket" }

func (p *Polymarket) SupportsExecution() bool { return false }

type gammaEvent struct {
	ID        string        `json:"id"`
	StartTime string        `json:"startTime"`
	Tags      []gammaTag    `json:"tags"`
	Markets   []gammaMarket `json:"markets"`
}

type gammaTag struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

type gammaMarket struct {
	ID             string          `json:"id"`
	Question       string          `json:"question"`
	ClobTokenIDs   json.RawMessage `json:"clobTokenIds"`
	Outcomes       string          `json:"outcomes"`
	OutcomePrices  string          `json:"outcomePrices"`
	LiquidityNum   *jsonFloat      `json:"liquidityNum"`
	Liquidity      *jsonFloat      `json:"liquidity"`
	EndDate        string          `json:"endDate"`
	EventStartTime string          `json:"eventStartTime"`
}

// ListMarkets returns up to limit markets embedded in active, open events.
func (p *Polymarket) ListMarkets(ctx context.Context, limit int) ([]strategy.Market, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	if p.seriesID != "" {
		params.Set("series_id", p.seriesID)
	}

	var events []gammaEvent
	if err := p.gamma.Get(ctx, "/events", params, &events); err != nil {
		return nil, fmt.Errorf("listing polymarket events: %w", err)
	}

	var out []strategy.Market
	meta := make(map[string]tokenMeta)
	for _, ev := range events {
		category := ""
		if len(ev.Tags) > 0 {
			category = ev.Tags[0].Label
			if category == "" {
				category = ev.Tags[0].Slug
			}
		}
		for _, gm := range ev.Markets {
			if gm.ID == "" || gm.Question == "" {
				continue
			}
			m := strategy.Market{
				ID:        gm.ID,
				Question:  gm.Question,
				Category:  category,
				StartTime: parseTime(gm.EventStartTime),
				CloseTime: parseTime(gm.EndDate),
				Outcomes:  strategy.DefaultOutcomes,
			}
			if m.StartTime.IsZero() {
				m.StartTime = parseTime(ev.StartTime)
			}
			if labels := parseStringArray(gm.Outcomes); len(labels) == 2 {
				m.Outcomes = labels
			}
			out = append(out, m)
			meta[gm.ID] = gm.tokenMeta()
		}
	}
	p.meta.Replace(meta)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	slog.Info("listed polymarket markets", "events", len(events), "markets", len(out))
	return out, nil
}

func (gm gammaMarket) tokenMeta() tokenMeta {
	var tm tokenMeta
	if ids := parseTokenIDs(gm.ClobTokenIDs); len(ids) >= 2 {
		tm.yesToken, tm.noToken = ids[0], ids[1]
	}
	switch {
	case gm.LiquidityNum != nil:
		tm.liquidity = ptr(float64(*gm.LiquidityNum))
	case gm.Liquidity != nil:
		tm.liquidity = ptr(float64(*gm.Liquidity))
	}
	if prices := parseStringArray(gm.OutcomePrices); len(prices) >= 2 {
		yes, errYes := parsePrice(prices[0])
		no, errNo := parsePrice(prices[1])
		if errYes == nil && errNo == nil {
			tm.fallbackYes, tm.fallbackNo = &yes, &no
		}
	}
	return tm
}

// Quotes prices each market's YES and NO tokens on the CLOB, falling back
// to Gamma's outcome prices. Only markets from a listing within MetaTTL can
// be quoted.
func (p *Polymarket) Quotes(ctx context.Context, ids []string) ([]strategy.Quote, error) {
	if p.meta.Len() == 0 {
		slog.Warn("no listed polymarket markets to quote", "requested", len(ids))
		return nil, nil
	}
	now := p.now().UTC()
	out := make([]strategy.Quote, 0, len(ids))
	for _, id := range ids {
		tm, ok := p.meta.Get(id)
		if !ok {
			continue
		}
		yes, no, ok := p.price(ctx, id, tm)
		if !ok {
			continue
		}
		out = append(out, strategy.Quote{
			MarketID:     id,
			YesPrice:     strategy.Clamp(yes, 0, 1),
			NoPrice:      strategy.Clamp(no, 0, 1),
			LiquidityUSD: tm.liquidity,
			Timestamp:    now,
		})
	}
	return out, nil
}

func (p *Polymarket) price(ctx context.Context, id string, tm tokenMeta) (float64, float64, bool) {
	if tm.yesToken != "" && tm.noToken != "" {
		yes, errYes := p.clobPrice(ctx, tm.yesToken)
		no, errNo := p.clobPrice(ctx, tm.noToken)
		if errYes == nil && errNo == nil {
			return yes, no, true
		}
		slog.Debug("clob price unavailable", "market", id, "yes_error", errYes, "no_error", errNo)
	}
	if tm.fallbackYes != nil && tm.fallbackNo != nil {
		return *tm.fallbackYes, *tm.fallbackNo, true
	}
	return 0, 0, false
}

func (p *Polymarket) clobPrice(ctx context.Context, token string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", token)
	params.Set("side", "buy")

	var resp struct {
		Price json.RawMessage `json:"price"`
	}
	if err := p.clob.Get(ctx, "/price", params, &resp); err != nil {
		return 0, err
	}
	return parsePrice(strings.Trim(string(resp.Price), `"`))
}

func (p *Polymarket) PlaceOrder(context.Context, strategy.Order) (strategy.Fill, error) {
	return strategy.Fill{}, fmt.Errorf("polymarket public: %w", ErrExecutionUnsupported)
}

// parsePrice reads a decimal price string exactly before converting.
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing price %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// parseTokenIDs accepts clobTokenIds as a JSON array or as a string holding
// a JSON array.
func parseTokenIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return parseStringArray(s)
}

func parseStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05-07", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// jsonFloat handles both numeric and string JSON values.
type jsonFloat float64

func (j *jsonFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = jsonFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = jsonFloat(f)
	return nil
}
