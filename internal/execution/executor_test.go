package execution

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"polytrader/internal/config"
	"polytrader/internal/db"
	"polytrader/internal/market"
	"polytrader/internal/risk"
	"polytrader/internal/strategy"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}
	return database
}

func newRisk() *risk.Manager {
	return risk.NewManager(config.RiskConfig{MaxDailyLossFraction: 0.10, MaxOpenPositions: 20})
}

func demoOpportunity(t *testing.T, venue *market.Paper, id string, side strategy.Side, fraction float64) strategy.Opportunity {
	t.Helper()
	markets, _ := venue.ListMarkets(context.Background(), 0)
	quotes, _ := venue.Quotes(context.Background(), []string{id})
	if len(quotes) != 1 {
		t.Fatalf("no quote for %s", id)
	}
	for _, m := range markets {
		if m.ID == id {
			return strategy.Opportunity{Market: m, Quote: quotes[0], Side: side, Edge: 0.1, SuggestedFraction: fraction}
		}
	}
	t.Fatalf("no market %s", id)
	return strategy.Opportunity{}
}

func TestExecute_PaperFillsAndJournals(t *testing.T) {
	database := openMemory(t)
	venue := market.NewPaper()
	e := NewExecutor(venue, newRisk(), database)

	opps := []strategy.Opportunity{
		demoOpportunity(t, venue, "demo-1", strategy.SideYes, 0.04),
		demoOpportunity(t, venue, "demo-2", strategy.SideNo, 0.03),
	}
	results, err := e.Execute(context.Background(), "cycle-1", opps)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("%s failed: %v", r.Opportunity.Market.ID, r.Error)
		}
	}
	if got := results[0].Fill.AvgPrice; got != 0.40 {
		t.Errorf("demo-1 YES avg price = %v, want 0.40", got)
	}
	if got := results[1].Fill.AvgPrice; got != 0.45 {
		t.Errorf("demo-2 NO avg price = %v, want 0.45", got)
	}

	var count int
	var total float64
	if err := database.QueryRow(`SELECT COUNT(*), SUM(fraction) FROM fills WHERE cycle_id = 'cycle-1'`).Scan(&count, &total); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("journaled fills = %d, want 2", count)
	}
	if total < 0.0699 || total > 0.0701 {
		t.Errorf("journaled fraction = %v, want 0.07", total)
	}

	var limit float64
	if err := database.QueryRow(`SELECT limit_price FROM fills WHERE market_id = 'demo-2'`).Scan(&limit); err != nil {
		t.Fatal(err)
	}
	if limit != 0.45 {
		t.Errorf("limit price = %v, want 0.45", limit)
	}
}

func TestExecute_RiskGateLimitsSecondBatch(t *testing.T) {
	database := openMemory(t)
	venue := market.NewPaper()
	e := NewExecutor(venue, newRisk(), database)
	ctx := context.Background()

	if _, err := e.Execute(ctx, "c1", []strategy.Opportunity{
		demoOpportunity(t, venue, "demo-1", strategy.SideYes, 0.06),
	}); err != nil {
		t.Fatal(err)
	}

	// demo-1 was already traded today and demo-2 would push past 0.10.
	results, err := e.Execute(ctx, "c2", []strategy.Opportunity{
		demoOpportunity(t, venue, "demo-1", strategy.SideYes, 0.01),
		demoOpportunity(t, venue, "demo-2", strategy.SideNo, 0.05),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestExecute_ReadOnlyVenue(t *testing.T) {
	database := openMemory(t)
	e := NewExecutor(readOnlyVenue{}, newRisk(), database)

	opp := strategy.Opportunity{
		Market:            strategy.Market{ID: "m1"},
		Quote:             strategy.Quote{MarketID: "m1", YesPrice: 0.3, NoPrice: 0.7},
		Side:              strategy.SideYes,
		SuggestedFraction: 0.02,
	}
	_, err := e.Execute(context.Background(), "c1", []strategy.Opportunity{opp})
	if !errors.Is(err, market.ErrExecutionUnsupported) {
		t.Fatalf("err = %v, want ErrExecutionUnsupported", err)
	}
}

type readOnlyVenue struct{}

func (readOnlyVenue) Name() string { return "readonly" }

func (readOnlyVenue) PlaceOrder(context.Context, strategy.Order) (strategy.Fill, error) {
	return strategy.Fill{}, market.ErrExecutionUnsupported
}

type flakyVenue struct{ calls int }

func (v *flakyVenue) Name() string { return "flaky" }

func (v *flakyVenue) PlaceOrder(context.Context, strategy.Order) (strategy.Fill, error) {
	v.calls++
	return strategy.Fill{}, errors.New("timeout")
}

func TestExecute_SkipsAfterRepeatedFailures(t *testing.T) {
	database := openMemory(t)
	venue := &flakyVenue{}
	e := NewExecutor(venue, newRisk(), database)

	opp := strategy.Opportunity{
		Market:            strategy.Market{ID: "m1"},
		Quote:             strategy.Quote{MarketID: "m1", YesPrice: 0.3, NoPrice: 0.7},
		Side:              strategy.SideYes,
		SuggestedFraction: 0.01,
	}
	for i := 0; i < 5; i++ {
		results, err := e.Execute(context.Background(), "c", []strategy.Opportunity{opp})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Success {
			t.Fatalf("attempt %d: unexpected results %+v", i, results)
		}
	}
	if venue.calls != 3 {
		t.Errorf("venue calls = %d, want 3", venue.calls)
	}
}
