package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := Migrate(database); err != nil {
		t.Fatal(err)
	}
	return database
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	database := openMemory(t)

	tables := []string{
		"schema_version",
		"opportunities",
		"fills",
		"start_prices",
	}

	for _, table := range tables {
		row := database.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table)
		var count int
		if err := row.Scan(&count); err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	database := openMemory(t)

	// Second run must not error.
	if err := Migrate(database); err != nil {
		t.Fatal(err)
	}

	var versions int
	if err := database.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&versions); err != nil {
		t.Fatal(err)
	}
	if versions != 1 {
		t.Errorf("expected 1 schema version row, got %d", versions)
	}
}

func TestMigrate_RejectsUnknownSide(t *testing.T) {
	database := openMemory(t)

	_, err := database.Exec(`
		INSERT INTO fills (ts, cycle_id, market_id, side, fraction, avg_price)
		VALUES ('2025-06-01T00:00:00Z', 'c1', 'm1', 'MAYBE', 0.01, 0.5)`)
	if err == nil {
		t.Error("expected CHECK constraint failure for side MAYBE")
	}
}

func TestMigrate_StartPriceKeyIsUnique(t *testing.T) {
	database := openMemory(t)

	insert := `INSERT OR IGNORE INTO start_prices (market_id, start_time, price, source) VALUES (?, ?, ?, ?)`
	if _, err := database.Exec(insert, "m1", "2025-06-01T12:00:00+00:00", 67000.0, "a"); err != nil {
		t.Fatal(err)
	}
	res, err := database.Exec(insert, "m1", "2025-06-01T12:00:00+00:00", 68000.0, "b")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Errorf("expected second insert to be ignored, affected %d", n)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "polytrader.db")
	database, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := Migrate(database); err != nil {
		t.Fatal(err)
	}
}
