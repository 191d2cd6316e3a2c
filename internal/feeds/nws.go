package feeds

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NWSBaseURL is the National Weather Service API.
const NWSBaseURL = "https://api.weather.gov"

const defaultNWSUserAgent = "polytrader/0.1 (contact: ops@polytrader.invalid)"

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat" toml:"lat"`
	Lon float64 `json:"lon" toml:"lon"`
}

// PoP is one probability-of-precipitation value with its validity interval.
type PoP struct {
	Start   time.Time
	End     time.Time
	Percent float64
}

// Overlaps reports whether the value's validity interval intersects [start, end).
func (p PoP) Overlaps(start, end time.Time) bool {
	return p.End.After(start) && p.Start.Before(end)
}

// NWSClient reads gridpoint forecasts. NWS rejects requests without a
// descriptive User-Agent.
type NWSClient struct {
	c *JSONClient
}

// NewNWSClient creates an NWS client.
func NewNWSClient(opts ...Option) *NWSClient {
	headers := http.Header{
		"User-Agent": {defaultNWSUserAgent},
		"Accept":     {"application/geo+json"},
	}
	return &NWSClient{c: NewJSONClient(NWSBaseURL, headers, opts...)}
}

// PrecipitationForecast resolves the forecast grid for p and returns its
// probabilityOfPrecipitation series. Values with a null or unparseable
// reading are skipped.
func (n *NWSClient) PrecipitationForecast(ctx context.Context, p Point) ([]PoP, error) {
	var meta struct {
		Properties struct {
			ForecastGridData string `json:"forecastGridData"`
		} `json:"properties"`
	}
	if err := n.c.Get(ctx, fmt.Sprintf("/points/%.4f,%.4f", p.Lat, p.Lon), nil, &meta); err != nil {
		return nil, fmt.Errorf("nws points: %w", err)
	}
	gridURL := meta.Properties.ForecastGridData
	if gridURL == "" {
		return nil, fmt.Errorf("nws points: %w: no forecastGridData", ErrUnavailable)
	}
	if strings.HasPrefix(gridURL, "/") {
		gridURL = n.c.BaseURL() + gridURL
	}

	var grid struct {
		Properties struct {
			ProbabilityOfPrecipitation struct {
				Values []struct {
					ValidTime string   `json:"validTime"`
					Value     *float64 `json:"value"`
				} `json:"values"`
			} `json:"probabilityOfPrecipitation"`
		} `json:"properties"`
	}
	if err := n.c.GetURL(ctx, gridURL, &grid); err != nil {
		return nil, fmt.Errorf("nws grid data: %w", err)
	}

	var out []PoP
	for _, v := range grid.Properties.ProbabilityOfPrecipitation.Values {
		if v.Value == nil {
			continue
		}
		start, end, err := parseValidTime(v.ValidTime)
		if err != nil {
			continue
		}
		out = append(out, PoP{Start: start, End: end, Percent: *v.Value})
	}
	return out, nil
}

// parseValidTime splits "<RFC3339>/<ISO-8601 duration>". A missing or
// unparseable duration counts as one hour.
func parseValidTime(s string) (time.Time, time.Time, error) {
	startStr, durStr, _ := strings.Cut(s, "/")
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = start.UTC()
	d, err := ParseISODuration(durStr)
	if err != nil || d <= 0 {
		d = time.Hour
	}
	return start, start.Add(d), nil
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the week/day/hour/minute/second subset of
// ISO-8601 durations that NWS emits, e.g. "PT1H" or "P1DT6H".
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
	}
	return d, nil
}
