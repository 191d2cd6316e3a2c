package performance

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tracker summarizes the opportunity and fill journal.
type Tracker struct {
	db *sql.DB
}

func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Report contains the journal summary.
type Report struct {
	Since               time.Time
	TotalOpportunities  int
	Cycles              int
	AvgConfidence       float64
	SideStats           map[string]SideStats
	TotalFills          int
	TotalFilledFraction float64
	AvgFillPrice        float64
}

// SideStats contains per-side opportunity statistics.
type SideStats struct {
	Count       int
	AvgEdge     float64
	MaxEdge     float64
	AvgFraction float64
}

// Generate computes the report over journal rows at or after since. A zero
// since covers the whole journal.
func (t *Tracker) Generate(ctx context.Context, since time.Time) (*Report, error) {
	r := &Report{
		Since:     since,
		SideStats: make(map[string]SideStats),
	}
	from := ""
	if !since.IsZero() {
		from = since.UTC().Format(time.RFC3339)
	}

	if err := t.computeOverall(ctx, r, from); err != nil {
		return nil, fmt.Errorf("computing overall stats: %w", err)
	}
	if err := t.computeSideStats(ctx, r, from); err != nil {
		return nil, fmt.Errorf("computing side stats: %w", err)
	}
	if err := t.computeFills(ctx, r, from); err != nil {
		return nil, fmt.Errorf("computing fill stats: %w", err)
	}

	return r, nil
}

func (t *Tracker) computeOverall(ctx context.Context, r *Report, from string) error {
	row := t.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT cycle_id), COALESCE(AVG(confidence), 0)
		FROM opportunities WHERE ts >= ?`, from)
	return row.Scan(&r.TotalOpportunities, &r.Cycles, &r.AvgConfidence)
}

func (t *Tracker) computeSideStats(ctx context.Context, r *Report, from string) error {
	rows, err := t.db.QueryContext(ctx, `
		SELECT side, COUNT(*), AVG(edge), MAX(edge), AVG(suggested_fraction)
		FROM opportunities WHERE ts >= ?
		GROUP BY side`, from)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var side string
		var stats SideStats
		if err := rows.Scan(&side, &stats.Count, &stats.AvgEdge, &stats.MaxEdge, &stats.AvgFraction); err != nil {
			return err
		}
		r.SideStats[side] = stats
	}
	return rows.Err()
}

func (t *Tracker) computeFills(ctx context.Context, r *Report, from string) error {
	row := t.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(fraction), 0), COALESCE(AVG(avg_price), 0)
		FROM fills WHERE ts >= ?`, from)
	return row.Scan(&r.TotalFills, &r.TotalFilledFraction, &r.AvgFillPrice)
}
