// Package market lists tradable binary markets and their quotes from a
// venue. Only the paper venue accepts orders; the others are read-only.
package market

import (
	"context"
	"errors"
	"strings"

	"polytrader/internal/strategy"
)

// ErrExecutionUnsupported is returned when an order is sent to a read-only
// venue. It is a configuration error, never retried.
var ErrExecutionUnsupported = errors.New("venue does not support order execution")

// Source is a market venue.
type Source interface {
	Name() string
	ListMarkets(ctx context.Context, limit int) ([]strategy.Market, error)
	// Quotes returns a quote per id where one is available; ids without a
	// price are omitted.
	Quotes(ctx context.Context, ids []string) ([]strategy.Quote, error)
	PlaceOrder(ctx context.Context, o strategy.Order) (strategy.Fill, error)
	SupportsExecution() bool
}

// FilterByQuestion keeps markets whose question contains query, ignoring
// case. An empty query keeps everything.
func FilterByQuestion(markets []strategy.Market, query string) []strategy.Market {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return markets
	}
	out := make([]strategy.Market, 0, len(markets))
	for _, m := range markets {
		if strings.Contains(strings.ToLower(m.Question), query) {
			out = append(out, m)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
