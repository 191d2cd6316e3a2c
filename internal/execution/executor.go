package execution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"polytrader/internal/market"
	"polytrader/internal/risk"
	"polytrader/internal/strategy"
)

// Venue is where orders are placed.
type Venue interface {
	Name() string
	PlaceOrder(ctx context.Context, o strategy.Order) (strategy.Fill, error)
}

// Executor turns approved opportunities into orders and journals the fills.
type Executor struct {
	venue       Venue
	riskMgr     *risk.Manager
	db          *sql.DB
	failedCount map[string]int // marketID -> consecutive failure count
	now         func() time.Time
}

func NewExecutor(venue Venue, riskMgr *risk.Manager, db *sql.DB) *Executor {
	return &Executor{
		venue:       venue,
		riskMgr:     riskMgr,
		db:          db,
		failedCount: make(map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Result records what happened when an opportunity was executed.
type Result struct {
	Opportunity strategy.Opportunity
	Fill        strategy.Fill
	Success     bool
	Error       error
}

// Execute places orders for the opportunities the risk gate approves and
// records every fill under cycleID. A venue that cannot execute is a
// configuration error and aborts the batch.
func (e *Executor) Execute(ctx context.Context, cycleID string, opps []strategy.Opportunity) ([]Result, error) {
	approved := e.riskMgr.Approve(opps, e.now())
	if len(approved) < len(opps) {
		slog.Info("opportunities gated", "approved", len(approved), "total", len(opps))
	}

	results := make([]Result, 0, len(approved))
	for _, o := range approved {
		r := e.executeSingle(ctx, cycleID, o)
		if errors.Is(r.Error, market.ErrExecutionUnsupported) {
			return results, fmt.Errorf("venue %s: %w", e.venue.Name(), r.Error)
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Executor) executeSingle(ctx context.Context, cycleID string, o strategy.Opportunity) Result {
	id := o.Market.ID
	if e.failedCount[id] >= 3 {
		slog.Info("skipping repeatedly failed order", "market", id)
		return Result{Opportunity: o, Error: fmt.Errorf("skipped: failed %d times", e.failedCount[id])}
	}

	order := strategy.NewOrder(o, e.now())

	slog.Info("placing order",
		"venue", e.venue.Name(),
		"market", id,
		"side", order.Side,
		"fraction", order.FractionOfBankroll,
		"limit", *order.LimitPrice,
		"edge", o.Edge,
	)

	fill, err := e.venue.PlaceOrder(ctx, order)
	if err != nil {
		if !errors.Is(err, market.ErrExecutionUnsupported) {
			e.failedCount[id]++
			slog.Error("order failed",
				"market", id,
				"error", err,
				"consecutive_failures", e.failedCount[id],
			)
		}
		return Result{Opportunity: o, Error: err}
	}
	delete(e.failedCount, id)

	e.riskMgr.RecordFill(id, fill.FilledFraction, e.now())

	if dbErr := e.recordFill(ctx, cycleID, fill); dbErr != nil {
		slog.Error("failed to record fill in db", "error", dbErr)
	}

	slog.Info("order filled",
		"market", id,
		"side", fill.Order.Side,
		"fraction", fill.FilledFraction,
		"avg_price", fill.AvgPrice,
	)

	return Result{Opportunity: o, Fill: fill, Success: true}
}

func (e *Executor) recordFill(ctx context.Context, cycleID string, f strategy.Fill) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO fills (ts, cycle_id, market_id, side, fraction, avg_price, limit_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Timestamp.UTC().Format(time.RFC3339),
		cycleID,
		f.Order.MarketID,
		string(f.Order.Side),
		f.FilledFraction,
		f.AvgPrice,
		f.Order.LimitPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting fill: %w", err)
	}
	return nil
}
