package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteCache stores start prices in the start_prices table.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache wraps a migrated database.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

func (c *SQLiteCache) Get(ctx context.Context, marketID, startKey string) (float64, bool, error) {
	var price float64
	err := c.db.QueryRowContext(ctx,
		`SELECT price FROM start_prices WHERE market_id = ? AND start_time = ?`,
		marketID, startKey).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying start price: %w", err)
	}
	return price, true, nil
}

func (c *SQLiteCache) SetIfAbsent(ctx context.Context, marketID, startKey string, price float64, source string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO start_prices (market_id, start_time, price, source) VALUES (?, ?, ?, ?)`,
		marketID, startKey, price, source)
	if err != nil {
		return false, fmt.Errorf("recording start price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording start price: %w", err)
	}
	return n == 1, nil
}
