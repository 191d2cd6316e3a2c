package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// CoinGeckoBaseURL is the free-tier CoinGecko API.
const CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// PricePoint is a timestamped price from a market chart.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// CoinGeckoClient reads spot prices and historical market charts.
type CoinGeckoClient struct {
	c *JSONClient
}

// NewCoinGeckoClient creates a CoinGecko client. The free tier is tightly
// rate limited, so the default limiter is conservative.
func NewCoinGeckoClient(opts ...Option) *CoinGeckoClient {
	opts = append([]Option{WithRateLimit(0.5, 2)}, opts...)
	return &CoinGeckoClient{c: NewJSONClient(CoinGeckoBaseURL, nil, opts...)}
}

// SpotUSD returns the current USD price of coinID (e.g. "bitcoin").
func (g *CoinGeckoClient) SpotUSD(ctx context.Context, coinID string) (float64, error) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")

	var resp map[string]map[string]float64
	if err := g.c.Get(ctx, "/simple/price", params, &resp); err != nil {
		return 0, fmt.Errorf("coingecko simple price %s: %w", coinID, err)
	}
	px, ok := resp[coinID]["usd"]
	if !ok || !(px > 0) {
		return 0, fmt.Errorf("coingecko simple price %s: %w: no usd price", coinID, ErrUnavailable)
	}
	return px, nil
}

// MarketChart returns the USD price history of coinID over the last days,
// oldest first. CoinGecko picks hourly granularity for 2-90 days.
func (g *CoinGeckoClient) MarketChart(ctx context.Context, coinID string, days int) ([]PricePoint, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))
	if days > 90 {
		params.Set("interval", "daily")
	}

	var resp struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := g.c.Get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", params, &resp); err != nil {
		return nil, fmt.Errorf("coingecko market chart %s: %w", coinID, err)
	}

	out := make([]PricePoint, 0, len(resp.Prices))
	for _, row := range resp.Prices {
		if len(row) < 2 || !finite(row[1]) || row[1] <= 0 {
			continue
		}
		out = append(out, PricePoint{Time: time.UnixMilli(int64(row[0])).UTC(), Price: row[1]})
	}
	return out, nil
}
