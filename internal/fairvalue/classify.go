package fairvalue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Direction is the price move a question asks about.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Question is a market question classified into one of the families we
// can price. The set is closed; Router switches over it exhaustively.
type Question interface {
	question()
}

// RainQuestion asks whether it will rain. Location and Date are optional;
// Date is midnight UTC of the asked day when present.
type RainQuestion struct {
	Location string
	Date     time.Time
}

// ThresholdQuestion asks whether BTC ends above or below Strike at Expiry.
type ThresholdQuestion struct {
	Direction Direction
	Strike    float64
	Expiry    time.Time
}

// FifteenMinuteQuestion asks whether BTC moves Up or Down over Horizon.
type FifteenMinuteQuestion struct {
	Direction Direction
	Horizon   time.Duration
}

// IntervalQuestion is the recurring "Bitcoin Up or Down" series, which
// resolves Up when the close price is at or above the start price.
type IntervalQuestion struct{}

func (RainQuestion) question()          {}
func (ThresholdQuestion) question()     {}
func (FifteenMinuteQuestion) question() {}
func (IntervalQuestion) question()      {}

var (
	btcRe       = regexp.MustCompile(`(?i)\bbitcoin\b|\bbtc\b`)
	directionRe = regexp.MustCompile(`(?i)\b(above|over|below|under)\b`)
	// Grouped amounts must have at least one comma so "$95000" is not cut
	// to its first three digits.
	usdRe     = regexp.MustCompile(`\$\s*([0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)(?:\.([0-9]+))?\s*([kKmM])?\b`)
	isoDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	fifteenRe  = regexp.MustCompile(`(?i)\b15\s*-?\s*(min|mins|minute|minutes)\b`)
	upRe       = regexp.MustCompile(`(?i)\b(up|higher|increase|rise)\b`)
	downRe     = regexp.MustCompile(`(?i)\b(down|lower|decrease|fall)\b`)
	intervalRe = regexp.MustCompile(`(?i)bitcoin\s+up\s+or\s+down`)

	rainRe     = regexp.MustCompile(`(?i)\brain\b|\bprecip(itation)?\b|\bshower(s)?\b`)
	onDateRe   = regexp.MustCompile(`(?i)\bon\s+(\d{4}-\d{2}-\d{2})\b`)
	locationRe = regexp.MustCompile(`(?i)\bin\s+([A-Za-z0-9 .,'\-]{3,64})\??$`)
)

// Classify returns the first family that matches the question text, in
// routing order, or nil when none does.
func Classify(text string) Question {
	if IsIntervalMarket(text) {
		return IntervalQuestion{}
	}
	if q, ok := ParseFifteenMinute(text); ok {
		return q
	}
	if q, ok := ParseThreshold(text); ok {
		return q
	}
	if q, ok := ParseRain(text); ok {
		return q
	}
	return nil
}

// IsIntervalMarket matches the "Bitcoin Up or Down" series title.
func IsIntervalMarket(text string) bool {
	return intervalRe.MatchString(text)
}

// ParseRain matches rain and precipitation questions. A trailing
// "in <location>" and an "on YYYY-MM-DD" date are extracted when present.
func ParseRain(text string) (RainQuestion, bool) {
	if !rainRe.MatchString(text) {
		return RainQuestion{}, false
	}

	var q RainQuestion
	rest := text
	if m := onDateRe.FindStringSubmatchIndex(text); m != nil {
		if d, err := time.Parse(time.DateOnly, text[m[2]:m[3]]); err == nil {
			q.Date = d
		}
		rest = text[:m[0]] + text[m[1]:]
	}

	if m := locationRe.FindStringSubmatch(strings.TrimSpace(rest)); m != nil {
		q.Location = strings.TrimSpace(m[1])
	}
	return q, true
}

// ParseThreshold matches "BTC above/below $X on YYYY-MM-DD" questions. All
// four parts are required. Expiry is the last second of the day in UTC.
func ParseThreshold(text string) (ThresholdQuestion, bool) {
	if !btcRe.MatchString(text) {
		return ThresholdQuestion{}, false
	}
	dm := directionRe.FindStringSubmatch(text)
	if dm == nil {
		return ThresholdQuestion{}, false
	}
	dir := Below
	if w := strings.ToLower(dm[1]); w == "above" || w == "over" {
		dir = Above
	}

	strike, ok := parseStrike(text)
	if !ok {
		return ThresholdQuestion{}, false
	}
	expiry, ok := parseExpiry(text)
	if !ok {
		return ThresholdQuestion{}, false
	}
	return ThresholdQuestion{Direction: dir, Strike: strike, Expiry: expiry}, true
}

func parseStrike(text string) (float64, bool) {
	m := usdRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	num := strings.ReplaceAll(m[1], ",", "")
	if m[2] != "" {
		num += "." + m[2]
	}
	x, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[3]) {
	case "k":
		x *= 1_000
	case "m":
		x *= 1_000_000
	}
	return x, x > 0
}

func parseExpiry(text string) (time.Time, bool) {
	m := isoDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return d.Add(23*time.Hour + 59*time.Minute + 59*time.Second), true
}

// ParseFifteenMinute matches "BTC up/down in 15 minutes" questions. Text
// naming both directions, or neither, is ambiguous and does not match.
func ParseFifteenMinute(text string) (FifteenMinuteQuestion, bool) {
	if !btcRe.MatchString(text) || !fifteenRe.MatchString(text) {
		return FifteenMinuteQuestion{}, false
	}
	up, down := upRe.MatchString(text), downRe.MatchString(text)
	if up == down {
		return FifteenMinuteQuestion{}, false
	}
	dir := Down
	if up {
		dir = Up
	}
	return FifteenMinuteQuestion{Direction: dir, Horizon: 15 * time.Minute}, true
}
