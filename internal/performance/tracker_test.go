package performance

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"polytrader/internal/db"
)

func seed(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	opps := []struct {
		ts    string
		cycle string
		side  string
		edge  float64
	}{
		{"2025-06-01T10:00:00Z", "c1", "YES", 0.10},
		{"2025-06-01T10:00:00Z", "c1", "NO", 0.20},
		{"2025-06-01T11:00:00Z", "c2", "YES", 0.30},
		{"2025-05-31T09:00:00Z", "c0", "NO", 0.50},
	}
	for _, o := range opps {
		_, err := database.Exec(`
			INSERT INTO opportunities (ts, cycle_id, market_id, question, side, edge, suggested_fraction, implied_yes, fv_yes, confidence, rationale)
			VALUES (?, ?, 'm', 'q', ?, ?, 0.02, 0.4, 0.5, 0.5, 'r')`, o.ts, o.cycle, o.side, o.edge)
		if err != nil {
			t.Fatal(err)
		}
	}

	fills := []struct {
		ts       string
		fraction float64
		price    float64
	}{
		{"2025-06-01T10:00:01Z", 0.02, 0.40},
		{"2025-06-01T11:00:01Z", 0.03, 0.60},
	}
	for _, f := range fills {
		_, err := database.Exec(`
			INSERT INTO fills (ts, cycle_id, market_id, side, fraction, avg_price)
			VALUES (?, 'c', 'm', 'YES', ?, ?)`, f.ts, f.fraction, f.price)
		if err != nil {
			t.Fatal(err)
		}
	}
	return database
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGenerate_WholeJournal(t *testing.T) {
	tr := NewTracker(seed(t))
	r, err := tr.Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalOpportunities != 4 || r.Cycles != 3 {
		t.Errorf("opportunities=%d cycles=%d, want 4 and 3", r.TotalOpportunities, r.Cycles)
	}
	no := r.SideStats["NO"]
	if no.Count != 2 || !near(no.AvgEdge, 0.35) || !near(no.MaxEdge, 0.50) {
		t.Errorf("NO stats = %+v", no)
	}
	if r.TotalFills != 2 || !near(r.TotalFilledFraction, 0.05) || !near(r.AvgFillPrice, 0.50) {
		t.Errorf("fills = %d/%v/%v", r.TotalFills, r.TotalFilledFraction, r.AvgFillPrice)
	}
}

func TestGenerate_Since(t *testing.T) {
	tr := NewTracker(seed(t))
	r, err := tr.Generate(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalOpportunities != 3 {
		t.Errorf("opportunities = %d, want 3", r.TotalOpportunities)
	}
	yes := r.SideStats["YES"]
	if yes.Count != 2 || !near(yes.AvgEdge, 0.20) {
		t.Errorf("YES stats = %+v", yes)
	}
	if no := r.SideStats["NO"]; no.Count != 1 {
		t.Errorf("NO count = %d, want 1", no.Count)
	}
}

func TestGenerate_EmptyJournal(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	r, err := NewTracker(database).Generate(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalOpportunities != 0 || r.TotalFills != 0 || len(r.SideStats) != 0 {
		t.Errorf("unexpected report %+v", r)
	}
	LogReport(r)
}
