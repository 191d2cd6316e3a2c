package strategy

import "time"

// Side is the outcome a position is taken on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// DefaultOutcomes is used when a venue does not label its outcomes.
var DefaultOutcomes = []string{"YES", "NO"}

// Market is a binary-outcome contract as listed by a venue. It is immutable
// once fetched; the ID is stable across polls.
type Market struct {
	ID       string
	Question string
	Category string
	// StartTime and CloseTime bound the contract's active interval. The zero
	// value means the venue did not provide one.
	StartTime time.Time
	CloseTime time.Time
	Outcomes  []string
}

// OutcomeLabels returns the market's ordered outcome pair, falling back to
// YES/NO.
func (m Market) OutcomeLabels() []string {
	if len(m.Outcomes) == 2 {
		return m.Outcomes
	}
	return DefaultOutcomes
}

// HasInterval reports whether both interval bounds are known.
func (m Market) HasInterval() bool {
	return !m.StartTime.IsZero() && !m.CloseTime.IsZero()
}

// Quote is the market-implied pricing for one poll cycle. Prices are implied
// probabilities in [0,1] and need not sum to 1.
type Quote struct {
	MarketID string
	YesPrice float64
	NoPrice  float64
	// LiquidityUSD is nil when the venue does not report liquidity.
	LiquidityUSD *float64
	Timestamp    time.Time
}

// PriceFor returns the quoted price of the given side.
func (q Quote) PriceFor(side Side) float64 {
	if side == SideYes {
		return q.YesPrice
	}
	return q.NoPrice
}

// FairValue is a model estimate of the probability that a market resolves YES.
type FairValue struct {
	MarketID   string
	PYes       float64
	Confidence float64 // 0..1, model-specific meaning
	Rationale  string
}

// Opportunity is a sized decision to take one side of a market.
type Opportunity struct {
	Market            Market
	Quote             Quote
	FairValue         FairValue
	Side              Side
	Edge              float64
	SuggestedFraction float64
}

// Params are the thresholds applied by FindOpportunity.
type Params struct {
	MinEdge             float64
	MaxPositionFraction float64
	KellyFraction       float64
	MinLiquidityUSD     float64
}

// Order is an instruction to buy one side of a market, sized as a fraction
// of bankroll. LimitPrice is nil for market orders.
type Order struct {
	MarketID           string
	Side               Side
	FractionOfBankroll float64
	LimitPrice         *float64
	CreatedAt          time.Time
}

// NewOrder builds an order from an opportunity, limited at the quoted price
// of the chosen side.
func NewOrder(o Opportunity, now time.Time) Order {
	limit := o.Quote.PriceFor(o.Side)
	return Order{
		MarketID:           o.Market.ID,
		Side:               o.Side,
		FractionOfBankroll: o.SuggestedFraction,
		LimitPrice:         &limit,
		CreatedAt:          now,
	}
}

// Fill is the terminal record of an execution attempt.
type Fill struct {
	Order          Order
	FilledFraction float64
	AvgPrice       float64
	Timestamp      time.Time
}
