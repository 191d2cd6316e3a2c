package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"), false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.Interval.Duration != 600*time.Second {
		t.Errorf("interval = %v, want 10m", cfg.Schedule.Interval.Duration)
	}
	if cfg.Strategy.MinEdge != 0.08 {
		t.Errorf("min_edge = %v, want 0.08", cfg.Strategy.MinEdge)
	}
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml"), true); err == nil {
		t.Fatal("expected error for missing required file")
	}
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := writeConfig(t, `
[schedule]
interval = "30s"

[exchange]
name = "polymarket"
focus_query = "bitcoin"

[strategy]
min_edge = 0.12

[models.locations]
austin = { lat = 30.27, lon = -97.74 }
`)
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.Interval.Duration != 30*time.Second {
		t.Errorf("interval = %v", cfg.Schedule.Interval.Duration)
	}
	if cfg.Exchange.Name != "polymarket" || cfg.Exchange.FocusQuery != "bitcoin" {
		t.Errorf("exchange = %+v", cfg.Exchange)
	}
	if cfg.Strategy.MinEdge != 0.12 {
		t.Errorf("min_edge = %v", cfg.Strategy.MinEdge)
	}
	// Untouched fields keep defaults.
	if cfg.Strategy.KellyFraction != 0.25 {
		t.Errorf("kelly_fraction = %v", cfg.Strategy.KellyFraction)
	}
	if loc, ok := cfg.Models.Locations["austin"]; !ok || loc.Lat != 30.27 {
		t.Errorf("locations = %+v", cfg.Models.Locations)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLYTRADER_MIN_EDGE", "0.2")
	t.Setenv("POLYTRADER_INTERVAL", "45s")
	t.Setenv("POLYTRADER_MAX_OPEN_POSITIONS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"), false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy.MinEdge != 0.2 {
		t.Errorf("min_edge = %v, want 0.2", cfg.Strategy.MinEdge)
	}
	if cfg.Schedule.Interval.Duration != 45*time.Second {
		t.Errorf("interval = %v, want 45s", cfg.Schedule.Interval.Duration)
	}
	if cfg.Risk.MaxOpenPositions != 20 {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Risk.MaxOpenPositions)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "[schedule]\ninterval = \"soon\"\n")
	if _, err := Load(path, true); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"live on read-only exchange", func(c *Config) { c.Exchange.Name = "polymarket"; c.Exchange.Mode = "live" }},
		{"unknown exchange", func(c *Config) { c.Exchange.Name = "kalshi" }},
		{"min edge above one", func(c *Config) { c.Strategy.MinEdge = 1.5 }},
		{"negative kelly", func(c *Config) { c.Strategy.KellyFraction = -0.1 }},
		{"zero interval", func(c *Config) { c.Schedule.Interval.Duration = 0 }},
		{"redis without addr", func(c *Config) { c.Settlement.Backend = "redis" }},
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_LivePaperAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.Mode = "live"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("live on paper exchange should validate: %v", err)
	}
	if cfg.PaperTrading() {
		t.Error("live mode should not report paper trading")
	}
}
