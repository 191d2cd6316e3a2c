// Package settlement keeps the reference prices that interval markets
// settle against. A start price is written once per (market, start time)
// and never replaced, so the value observed closest to the interval start
// survives restarts and concurrent writers.
package settlement

import (
	"context"
	"time"
)

// Cache stores start prices. A miss is (0, false, nil).
type Cache interface {
	Get(ctx context.Context, marketID, startKey string) (float64, bool, error)
	// SetIfAbsent stores price unless the key already exists and reports
	// whether it wrote.
	SetIfAbsent(ctx context.Context, marketID, startKey string, price float64, source string) (bool, error)
}

// StartKey formats an interval start as the cache key: second precision,
// UTC, with an explicit +00:00 offset.
func StartKey(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05-07:00")
}
