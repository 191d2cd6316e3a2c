package strategy

import (
	"fmt"
	"log/slog"
)

// TieSide is taken when both sides show exactly the same edge. Buying NO on
// a tie matches the historical decisions recorded in the journal.
const TieSide = SideNo

// FindOpportunity decides whether a quoted market offers an exploitable edge
// against the fair value, and sizes it. It returns false when any gate
// rejects the market: liquidity below the floor, or the better side's edge
// below MinEdge.
func FindOpportunity(m Market, q Quote, fv FairValue, p Params) (Opportunity, bool) {
	if q.LiquidityUSD != nil && *q.LiquidityUSD < p.MinLiquidityUSD {
		return Opportunity{}, false
	}

	edgeYes := fv.PYes - q.YesPrice
	edgeNo := (1 - fv.PYes) - q.NoPrice

	side := SideYes
	edge := edgeYes
	pSide := fv.PYes
	if edgeNo > edgeYes || (edgeNo == edgeYes && TieSide == SideNo) {
		side = SideNo
		edge = edgeNo
		pSide = 1 - fv.PYes
	}

	if edge < p.MinEdge {
		return Opportunity{}, false
	}

	raw := Kelly(pSide, q.PriceFor(side))
	sized := Clamp(raw*p.KellyFraction, 0, p.MaxPositionFraction)

	slog.Debug("opportunity found",
		"market", m.ID,
		"side", side,
		"edge", edge,
		"kelly", raw,
		"sized", sized,
	)

	return Opportunity{
		Market:            m,
		Quote:             q,
		FairValue:         fv,
		Side:              side,
		Edge:              edge,
		SuggestedFraction: sized,
	}, true
}

// String renders the opportunity the way the cycle log prints it.
func (o Opportunity) String() string {
	return fmt.Sprintf("%s %s edge=%.3f sized=%.3f implied_yes=%.3f fv_yes=%.3f (%s)",
		o.Market.ID, o.Side, o.Edge, o.SuggestedFraction, o.Quote.YesPrice, o.FairValue.PYes, o.Market.Question)
}
