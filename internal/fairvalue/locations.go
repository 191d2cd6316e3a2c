package fairvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"polytrader/internal/feeds"
)

// Locations maps normalized place names to coordinates. Geocoding is out
// of scope; the operator supplies the mapping.
type Locations map[string]feeds.Point

func normalizeLocation(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewLocations normalizes the keys of m.
func NewLocations(m map[string]feeds.Point) Locations {
	out := make(Locations, len(m))
	for k, v := range m {
		if key := normalizeLocation(k); key != "" {
			out[key] = v
		}
	}
	return out
}

// LoadLocationsFile reads a JSON object of {"name": {"lat": .., "lon": ..}}.
// A missing file yields an empty mapping. Entries without both coordinates
// are skipped.
func LoadLocationsFile(path string) (Locations, error) {
	if path == "" {
		return Locations{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("locations file not found", "path", path)
		return Locations{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading locations file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing locations file %s: %w", path, err)
	}

	out := make(Locations, len(raw))
	for name, msg := range raw {
		var entry struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		}
		if err := json.Unmarshal(msg, &entry); err != nil || entry.Lat == nil || entry.Lon == nil {
			slog.Debug("skipping malformed location", "name", name)
			continue
		}
		if key := normalizeLocation(name); key != "" {
			out[key] = feeds.Point{Lat: *entry.Lat, Lon: *entry.Lon}
		}
	}
	return out, nil
}

// Merge returns a mapping with the entries of l overridden by other.
func (l Locations) Merge(other Locations) Locations {
	out := make(Locations, len(l)+len(other))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Resolve looks up a location string case-insensitively.
func (l Locations) Resolve(name string) (feeds.Point, bool) {
	key := normalizeLocation(name)
	if key == "" {
		return feeds.Point{}, false
	}
	p, ok := l[key]
	return p, ok
}
