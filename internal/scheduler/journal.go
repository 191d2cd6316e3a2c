package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"polytrader/internal/strategy"
)

// Journal appends opportunities to the audit table. Rows are never read
// back by the cycle.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// RecordOpportunities writes one row per opportunity in a single
// transaction.
func (j *Journal) RecordOpportunities(ctx context.Context, cycleID string, opps []strategy.Opportunity, at time.Time) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning journal tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities (ts, cycle_id, market_id, question, side, edge, suggested_fraction, implied_yes, fv_yes, confidence, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing journal insert: %w", err)
	}
	defer stmt.Close()

	ts := at.UTC().Format(time.RFC3339)
	for _, o := range opps {
		_, err := stmt.ExecContext(ctx,
			ts,
			cycleID,
			o.Market.ID,
			o.Market.Question,
			string(o.Side),
			o.Edge,
			o.SuggestedFraction,
			o.Quote.YesPrice,
			o.FairValue.PYes,
			o.FairValue.Confidence,
			o.FairValue.Rationale,
		)
		if err != nil {
			return fmt.Errorf("inserting opportunity %s: %w", o.Market.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing journal tx: %w", err)
	}
	return nil
}
