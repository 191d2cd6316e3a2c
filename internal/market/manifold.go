package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonnyspicer/mango"

	"polytrader/internal/strategy"
)

// manifoldSearcher is the part of the mango client the source needs.
type manifoldSearcher interface {
	SearchMarkets(req mango.SearchMarketsRequest) (*[]mango.FullMarket, error)
}

type manifoldQuote struct {
	probability float64
	liquidity   float64
}

// Manifold lists open binary Manifold markets by liquidity. Quotes are the
// market probability, with liquidity reported in mana. It cannot place
// orders.
type Manifold struct {
	client manifoldSearcher
	quotes *Cache[manifoldQuote]
	now    func() time.Time
}

// NewManifold creates a Manifold source. A nil client uses the default
// mango client instance.
func NewManifold(client *mango.Client) *Manifold {
	if client == nil {
		client = mango.DefaultClientInstance()
	}
	return newManifold(client)
}

func newManifold(client manifoldSearcher) *Manifold {
	return &Manifold{client: client, quotes: NewCache[manifoldQuote](time.Hour), now: time.Now}
}

func (s *Manifold) Name() string { return "manifold" }

func (s *Manifold) SupportsExecution() bool { return false }

func (s *Manifold) ListMarkets(_ context.Context, limit int) ([]strategy.Market, error) {
	markets, err := s.client.SearchMarkets(mango.SearchMarketsRequest{
		Filter:       "open",
		ContractType: "BINARY",
		Sort:         "liquidity",
		Limit:        int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("searching binary markets: %w", err)
	}
	if markets == nil {
		return nil, nil
	}

	result := make([]strategy.Market, 0, len(*markets))
	quotes := make(map[string]manifoldQuote, len(*markets))
	for _, m := range *markets {
		if m.IsResolved || string(m.OutcomeType) != string(mango.Binary) {
			continue
		}
		result = append(result, fullMarketToMarket(m))
		quotes[m.Id] = manifoldQuote{probability: m.Probability, liquidity: m.TotalLiquidity}
	}
	s.quotes.Replace(quotes)

	slog.Info("scanned manifold binary markets", "count", len(result))
	return result, nil
}

func (s *Manifold) Quotes(_ context.Context, ids []string) ([]strategy.Quote, error) {
	now := s.now().UTC()
	out := make([]strategy.Quote, 0, len(ids))
	for _, id := range ids {
		q, ok := s.quotes.Get(id)
		if !ok {
			continue
		}
		p := strategy.Clamp(q.probability, 0, 1)
		out = append(out, strategy.Quote{
			MarketID:     id,
			YesPrice:     p,
			NoPrice:      1 - p,
			LiquidityUSD: ptr(q.liquidity),
			Timestamp:    now,
		})
	}
	return out, nil
}

func (s *Manifold) PlaceOrder(context.Context, strategy.Order) (strategy.Fill, error) {
	return strategy.Fill{}, fmt.Errorf("manifold: %w", ErrExecutionUnsupported)
}

func fullMarketToMarket(m mango.FullMarket) strategy.Market {
	var closeTime time.Time
	if m.CloseTime > 0 {
		closeTime = time.UnixMilli(m.CloseTime).UTC()
	}
	return strategy.Market{
		ID:        m.Id,
		Question:  m.Question,
		Category:  "manifold",
		CloseTime: closeTime,
		Outcomes:  strategy.DefaultOutcomes,
	}
}
