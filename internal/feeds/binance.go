package feeds

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

// BinanceBaseURL is the public Binance spot API.
const BinanceBaseURL = "https://api.binance.com"

// Candle is one kline bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// BinanceClient reads public klines; no authentication is needed.
type BinanceClient struct {
	c *JSONClient
}

// NewBinanceClient creates a Binance market data client.
func NewBinanceClient(opts ...Option) *BinanceClient {
	return &BinanceClient{c: NewJSONClient(BinanceBaseURL, nil, opts...)}
}

// Klines returns up to limit candles for symbol at the given interval
// ("1m", "1h", ...), oldest first. Rows that cannot be parsed or have a
// non-positive close are dropped.
func (b *BinanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := b.c.Get(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	return parseKlines(rows), nil
}

func parseKlines(rows [][]any) []Candle {
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var vals [6]float64
		ok := true
		for i := 0; i < 6 && ok; i++ {
			vals[i], ok = toFloat(row[i])
		}
		if !ok {
			continue
		}
		o, h, l, c := vals[1], vals[2], vals[3], vals[4]
		if !finite(o, h, l, c) || c <= 0 {
			continue
		}
		out = append(out, Candle{
			OpenTime: time.UnixMilli(int64(vals[0])).UTC(),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
			Volume:   vals[5],
		})
	}
	return out
}

// toFloat accepts a JSON number or a numeric string.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
