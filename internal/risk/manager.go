package risk

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/strategy"
)

// Manager enforces portfolio limits on sized opportunities. Limits are
// expressed over the current UTC day: the sum of filled bankroll fractions
// and the number of fills.
type Manager struct {
	cfg            config.RiskConfig
	day            time.Time
	dailyFraction  float64
	openPositions  int
	marketExposure map[string]float64 // marketID -> fraction filled today
}

func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{
		cfg:            cfg,
		marketExposure: make(map[string]float64),
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rollover resets the daily counters when now falls on a new day.
func (m *Manager) rollover(now time.Time) {
	day := startOfDay(now)
	if day.Equal(m.day) {
		return
	}
	m.day = day
	m.dailyFraction = 0
	m.openPositions = 0
	m.marketExposure = make(map[string]float64)
}

// CanTrade returns false once either daily limit has been reached.
func (m *Manager) CanTrade(now time.Time) bool {
	m.rollover(now)

	if m.dailyFraction >= m.cfg.MaxDailyLossFraction {
		slog.Warn("trading halted: daily exposure reached",
			"filled_fraction", m.dailyFraction,
			"limit", m.cfg.MaxDailyLossFraction,
		)
		return false
	}
	if m.openPositions >= m.cfg.MaxOpenPositions {
		slog.Warn("trading halted: max open positions reached",
			"positions", m.openPositions,
			"limit", m.cfg.MaxOpenPositions,
		)
		return false
	}
	return true
}

// Approve returns the opportunities that fit within today's limits, in the
// given order. Opportunities with a non-positive fraction and markets already
// filled today are skipped.
func (m *Manager) Approve(opps []strategy.Opportunity, now time.Time) []strategy.Opportunity {
	if !m.CanTrade(now) {
		return nil
	}

	fraction := m.dailyFraction
	positions := m.openPositions
	seen := make(map[string]bool)

	approved := make([]strategy.Opportunity, 0, len(opps))
	for _, o := range opps {
		id := o.Market.ID
		if o.SuggestedFraction <= 0 {
			continue
		}
		if m.marketExposure[id] > 0 || seen[id] {
			slog.Info("opportunity rejected: market already traded today", "market", id)
			continue
		}
		if positions >= m.cfg.MaxOpenPositions {
			slog.Info("opportunity rejected: max open positions", "market", id, "positions", positions)
			continue
		}
		if fraction+o.SuggestedFraction > m.cfg.MaxDailyLossFraction {
			slog.Info("opportunity rejected by risk manager",
				"market", id,
				"side", o.Side,
				"edge", o.Edge,
				"fraction", o.SuggestedFraction,
				"filled_today", fraction,
				"limit", m.cfg.MaxDailyLossFraction,
			)
			continue
		}

		fraction += o.SuggestedFraction
		positions++
		seen[id] = true
		approved = append(approved, o)
	}
	return approved
}

// RecordFill updates exposure tracking after an order fills.
func (m *Manager) RecordFill(marketID string, fraction float64, at time.Time) {
	m.rollover(at)
	m.dailyFraction += fraction
	m.openPositions++
	m.marketExposure[marketID] += fraction
}

// DailyFraction is the bankroll fraction filled so far today.
func (m *Manager) DailyFraction() float64 {
	return m.dailyFraction
}

// LoadToday rebuilds today's counters from the fills journal so limits
// survive restarts.
func (m *Manager) LoadToday(ctx context.Context, db *sql.DB, now time.Time) error {
	m.day = startOfDay(now)
	m.dailyFraction = 0
	m.openPositions = 0
	m.marketExposure = make(map[string]float64)

	rows, err := db.QueryContext(ctx, `
		SELECT market_id, SUM(fraction), COUNT(*)
		FROM fills
		WHERE ts >= ?
		GROUP BY market_id`,
		m.day.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("loading today's fills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var marketID string
		var fraction float64
		var count int
		if err := rows.Scan(&marketID, &fraction, &count); err != nil {
			return fmt.Errorf("scanning fill row: %w", err)
		}
		m.marketExposure[marketID] = fraction
		m.dailyFraction += fraction
		m.openPositions += count
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if m.openPositions > 0 {
		slog.Info("loaded today's fills", "positions", m.openPositions, "filled_fraction", m.dailyFraction)
	}
	return nil
}
