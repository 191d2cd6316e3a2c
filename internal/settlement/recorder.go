package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"polytrader/internal/feeds"
	"polytrader/internal/strategy"
)

// LiveSource labels prices captured from the streaming feed.
const LiveSource = "chainlink live"

// PriceStream is the low-latency price feed sampled at interval starts.
type PriceStream interface {
	LatestPrice(ctx context.Context, feedID string) (feeds.StreamReport, error)
}

// Recorder captures the streaming price for markets whose interval is
// starting now. It only helps when the process is running near the start.
type Recorder struct {
	cache     Cache
	stream    PriceStream
	feedID    string
	tolerance time.Duration
}

// NewRecorder creates a Recorder. tolerance is how far from a market's
// start time the current instant may be for the market to qualify.
func NewRecorder(cache Cache, stream PriceStream, feedID string, tolerance time.Duration) *Recorder {
	return &Recorder{cache: cache, stream: stream, feedID: feedID, tolerance: tolerance}
}

// RecordStartPrices fetches the latest streaming price once and stores it
// for every qualifying market that has no record yet. It returns the number
// of new records.
func (r *Recorder) RecordStartPrices(ctx context.Context, markets []strategy.Market, now time.Time) (int, error) {
	var candidates []strategy.Market
	for _, m := range markets {
		if m.StartTime.IsZero() {
			continue
		}
		dt := m.StartTime.Sub(now)
		if dt < 0 {
			dt = -dt
		}
		if dt <= r.tolerance {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	live, err := r.stream.LatestPrice(ctx, r.feedID)
	if err != nil {
		return 0, fmt.Errorf("fetching live price: %w", err)
	}
	// Records are write-once, so an old report would stick for good.
	if !live.Fresh(now) {
		return 0, fmt.Errorf("live price from %s at %s: %w", live.ValidFrom.Format(time.RFC3339), now.Format(time.RFC3339), feeds.ErrStale)
	}

	n := 0
	for _, m := range candidates {
		key := StartKey(m.StartTime)
		wrote, err := r.cache.SetIfAbsent(ctx, m.ID, key, live.Price, LiveSource)
		if err != nil {
			return n, err
		}
		if wrote {
			n++
			slog.Info("recorded start price", "market", m.ID, "start", key, "price", live.Price)
		}
	}
	return n, nil
}
