package performance

import (
	"log/slog"
)

// LogReport logs the performance report as structured JSON.
func LogReport(r *Report) {
	slog.Info("=== PERFORMANCE REPORT ===",
		"opportunities", r.TotalOpportunities,
		"cycles", r.Cycles,
		"avg_confidence", r.AvgConfidence,
		"fills", r.TotalFills,
		"filled_fraction", r.TotalFilledFraction,
		"avg_fill_price", r.AvgFillPrice,
	)

	for side, stats := range r.SideStats {
		slog.Info("side performance",
			"side", side,
			"count", stats.Count,
			"avg_edge", stats.AvgEdge,
			"max_edge", stats.MaxEdge,
			"avg_fraction", stats.AvgFraction,
		)
	}
}
