package strategy

import (
	"math"
	"testing"
)

func defaultParams() Params {
	return Params{
		MinEdge:             0.08,
		MaxPositionFraction: 0.06,
		KellyFraction:       0.25,
		MinLiquidityUSD:     200,
	}
}

func liquidity(v float64) *float64 { return &v }

func TestFindOpportunity_YesScenario(t *testing.T) {
	m := Market{ID: "m1", Question: "Will it rain?"}
	q := Quote{MarketID: "m1", YesPrice: 0.40, NoPrice: 0.60}
	fv := FairValue{MarketID: "m1", PYes: 0.55, Confidence: 0.5}

	opp, ok := FindOpportunity(m, q, fv, defaultParams())
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != SideYes {
		t.Errorf("expected YES, got %s", opp.Side)
	}
	if math.Abs(opp.Edge-0.15) > 1e-9 {
		t.Errorf("expected edge 0.15, got %f", opp.Edge)
	}
	// kelly(0.55, 0.40) = 0.25; * 0.25 = 0.0625, capped at 0.06.
	want := Clamp(Kelly(0.55, 0.40)*0.25, 0, 0.06)
	if math.Abs(opp.SuggestedFraction-want) > 1e-12 {
		t.Errorf("expected fraction %f, got %f", want, opp.SuggestedFraction)
	}
	if opp.SuggestedFraction != 0.06 {
		t.Errorf("expected cap 0.06, got %f", opp.SuggestedFraction)
	}
}

func TestFindOpportunity_NoSide(t *testing.T) {
	q := Quote{YesPrice: 0.70, NoPrice: 0.30}
	fv := FairValue{PYes: 0.50}

	opp, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams())
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != SideNo {
		t.Errorf("expected NO, got %s", opp.Side)
	}
	if math.Abs(opp.Edge-0.20) > 1e-9 {
		t.Errorf("expected edge 0.20, got %f", opp.Edge)
	}
}

func TestFindOpportunity_TieGoesToNo(t *testing.T) {
	// Both edges are exactly 0.25.
	q := Quote{YesPrice: 0.25, NoPrice: 0.25}
	fv := FairValue{PYes: 0.5}

	opp, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams())
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != SideNo {
		t.Errorf("expected tie to resolve to NO, got %s", opp.Side)
	}
}

func TestFindOpportunity_RejectsBelowMinEdge(t *testing.T) {
	q := Quote{YesPrice: 0.50, NoPrice: 0.50}
	fv := FairValue{PYes: 0.55}

	if _, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams()); ok {
		t.Error("expected no opportunity for edge 0.05 < 0.08")
	}
}

func TestFindOpportunity_LiquidityGate(t *testing.T) {
	q := Quote{YesPrice: 0.05, NoPrice: 0.95, LiquidityUSD: liquidity(199.99)}
	fv := FairValue{PYes: 0.99}

	if _, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams()); ok {
		t.Error("expected liquidity gate to reject regardless of edge")
	}

	q.LiquidityUSD = liquidity(200)
	if _, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams()); !ok {
		t.Error("expected liquidity at the floor to pass")
	}

	q.LiquidityUSD = nil
	if _, ok := FindOpportunity(Market{ID: "m"}, q, fv, defaultParams()); !ok {
		t.Error("expected unknown liquidity to pass")
	}
}

func TestFindOpportunity_FractionAlwaysWithinCap(t *testing.T) {
	p := defaultParams()
	p.MinEdge = -1 // let every pair through
	for yes := 0.0; yes <= 1.0; yes += 0.05 {
		for fvYes := 0.0; fvYes <= 1.0; fvYes += 0.05 {
			q := Quote{YesPrice: yes, NoPrice: 1 - yes}
			opp, ok := FindOpportunity(Market{ID: "m"}, q, FairValue{PYes: fvYes}, p)
			if !ok {
				continue
			}
			if opp.SuggestedFraction < 0 || opp.SuggestedFraction > p.MaxPositionFraction {
				t.Fatalf("fraction %f outside [0, %f] for yes=%f fv=%f",
					opp.SuggestedFraction, p.MaxPositionFraction, yes, fvYes)
			}
		}
	}
}
