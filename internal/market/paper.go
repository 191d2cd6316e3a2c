package market

import (
	"context"
	"fmt"
	"time"

	"polytrader/internal/strategy"
)

// Paper is an in-memory venue with fixed demo markets. Orders fill in full
// at the quoted price of the chosen side.
type Paper struct {
	markets []strategy.Market
	quotes  map[string]strategy.Quote
	now     func() time.Time
}

// NewPaper creates the demo venue.
func NewPaper() *Paper {
	return &Paper{
		markets: []strategy.Market{
			{ID: "demo-1", Question: "Will it rain tomorrow?", Category: "weather", Outcomes: strategy.DefaultOutcomes},
			{ID: "demo-2", Question: "Will Team A win?", Category: "sports", Outcomes: strategy.DefaultOutcomes},
		},
		quotes: map[string]strategy.Quote{
			"demo-1": {MarketID: "demo-1", YesPrice: 0.40, NoPrice: 0.60, LiquidityUSD: ptr(1000.0)},
			"demo-2": {MarketID: "demo-2", YesPrice: 0.55, NoPrice: 0.45, LiquidityUSD: ptr(500.0)},
		},
		now: time.Now,
	}
}

// NewPaperWith creates a paper venue over the given markets and quotes.
func NewPaperWith(markets []strategy.Market, quotes []strategy.Quote) *Paper {
	p := &Paper{markets: markets, quotes: make(map[string]strategy.Quote, len(quotes)), now: time.Now}
	for _, q := range quotes {
		p.quotes[q.MarketID] = q
	}
	return p
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) SupportsExecution() bool { return true }

func (p *Paper) ListMarkets(_ context.Context, limit int) ([]strategy.Market, error) {
	if limit <= 0 || limit > len(p.markets) {
		limit = len(p.markets)
	}
	return append([]strategy.Market(nil), p.markets[:limit]...), nil
}

func (p *Paper) Quotes(_ context.Context, ids []string) ([]strategy.Quote, error) {
	out := make([]strategy.Quote, 0, len(ids))
	now := p.now().UTC()
	for _, id := range ids {
		q, ok := p.quotes[id]
		if !ok {
			continue
		}
		q.Timestamp = now
		out = append(out, q)
	}
	return out, nil
}

func (p *Paper) PlaceOrder(_ context.Context, o strategy.Order) (strategy.Fill, error) {
	q, ok := p.quotes[o.MarketID]
	if !ok {
		return strategy.Fill{}, fmt.Errorf("paper: no quote for market %s", o.MarketID)
	}
	return strategy.Fill{
		Order:          o,
		FilledFraction: o.FractionOfBankroll,
		AvgPrice:       q.PriceFor(o.Side),
		Timestamp:      p.now().UTC(),
	}, nil
}
