package risk

import (
	"context"
	"testing"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/db"
	"polytrader/internal/strategy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager() *Manager {
	return NewManager(config.RiskConfig{
		MaxDailyLossFraction: 0.10,
		MaxOpenPositions:     3,
	})
}

func opp(id string, fraction float64) strategy.Opportunity {
	return strategy.Opportunity{
		Market:            strategy.Market{ID: id},
		Side:              strategy.SideYes,
		Edge:              0.1,
		SuggestedFraction: fraction,
	}
}

func ids(opps []strategy.Opportunity) []string {
	out := make([]string, len(opps))
	for i, o := range opps {
		out[i] = o.Market.ID
	}
	return out
}

func TestCanTrade_Fresh(t *testing.T) {
	m := newTestManager()
	if !m.CanTrade(testNow) {
		t.Error("expected CanTrade to return true with no fills")
	}
}

func TestCanTrade_DailyFractionReached(t *testing.T) {
	m := newTestManager()
	m.RecordFill("a", 0.06, testNow)
	m.RecordFill("b", 0.04, testNow)
	if m.CanTrade(testNow) {
		t.Error("expected CanTrade to return false at the daily limit")
	}
}

func TestCanTrade_PositionsReached(t *testing.T) {
	m := newTestManager()
	for _, id := range []string{"a", "b", "c"} {
		m.RecordFill(id, 0.001, testNow)
	}
	if m.CanTrade(testNow) {
		t.Error("expected CanTrade to return false at max open positions")
	}
}

func TestCanTrade_ResetsNextDay(t *testing.T) {
	m := newTestManager()
	m.RecordFill("a", 0.10, testNow)
	if m.CanTrade(testNow) {
		t.Fatal("expected halt today")
	}
	if !m.CanTrade(testNow.Add(24 * time.Hour)) {
		t.Error("expected limits to reset on a new UTC day")
	}
}

func TestApprove_StopsAtDailyFraction(t *testing.T) {
	m := newTestManager()
	got := m.Approve([]strategy.Opportunity{
		opp("a", 0.06),
		opp("b", 0.06), // would take the total to 0.12
		opp("c", 0.03),
	}, testNow)

	want := []string{"a", "c"}
	if g := ids(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] {
		t.Errorf("approved = %v, want %v", g, want)
	}
}

func TestApprove_StopsAtPositions(t *testing.T) {
	m := newTestManager()
	m.RecordFill("x", 0.01, testNow)
	got := m.Approve([]strategy.Opportunity{
		opp("a", 0.01), opp("b", 0.01), opp("c", 0.01),
	}, testNow)
	if len(got) != 2 {
		t.Errorf("approved %v, want 2 (one slot already used)", ids(got))
	}
}

func TestApprove_SkipsZeroFractionAndRepeats(t *testing.T) {
	m := newTestManager()
	m.RecordFill("a", 0.01, testNow)
	got := m.Approve([]strategy.Opportunity{
		opp("a", 0.02), // already traded today
		opp("b", 0),
		opp("c", 0.02),
		opp("c", 0.02), // duplicate within the batch
	}, testNow)
	if g := ids(got); len(g) != 1 || g[0] != "c" {
		t.Errorf("approved = %v, want [c]", g)
	}
}

func TestApprove_DoesNotMutateState(t *testing.T) {
	m := newTestManager()
	m.Approve([]strategy.Opportunity{opp("a", 0.05)}, testNow)
	if m.DailyFraction() != 0 {
		t.Errorf("Approve should not record fills, daily fraction = %v", m.DailyFraction())
	}
}

func TestLoadToday(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	insert := `INSERT INTO fills (ts, cycle_id, market_id, side, fraction, avg_price) VALUES (?, 'c', ?, 'YES', ?, 0.5)`
	rows := []struct {
		ts       time.Time
		market   string
		fraction float64
	}{
		{testNow.Add(-time.Hour), "a", 0.02},
		{testNow.Add(-2 * time.Hour), "a", 0.01},
		{testNow.Add(-time.Minute), "b", 0.03},
		{testNow.Add(-24 * time.Hour), "old", 0.05}, // yesterday
	}
	for _, r := range rows {
		if _, err := database.Exec(insert, r.ts.Format(time.RFC3339), r.market, r.fraction); err != nil {
			t.Fatal(err)
		}
	}

	m := newTestManager()
	if err := m.LoadToday(context.Background(), database, testNow); err != nil {
		t.Fatalf("LoadToday: %v", err)
	}
	if got := m.DailyFraction(); got < 0.0599 || got > 0.0601 {
		t.Errorf("daily fraction = %v, want 0.06", got)
	}
	if m.openPositions != 3 {
		t.Errorf("open positions = %d, want 3", m.openPositions)
	}
	if m.marketExposure["old"] != 0 {
		t.Error("yesterday's fill should not count")
	}

	got := m.Approve([]strategy.Opportunity{opp("a", 0.01), opp("c", 0.01)}, testNow)
	if len(got) != 0 {
		t.Errorf("approved = %v, want none (positions full)", ids(got))
	}
}
