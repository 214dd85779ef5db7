// Package normalize implements the symbol, interval, and range conventions
// shared by every provider client.
package normalize

import (
	"regexp"
	"strings"
	"time"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-=]+$`)

// Symbol uppercases and validates a raw symbol, rejecting anything outside
// the permitted alphanumeric-plus-punctuation shape.
func Symbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", cerrors.New(cerrors.InvalidSymbol, "symbol is required")
	}
	if !symbolPattern.MatchString(s) {
		return "", cerrors.New(cerrors.InvalidSymbol, "symbol contains unsupported characters: "+raw)
	}
	return s, nil
}

// StripBISTSuffix removes the Borsa Istanbul ".IS" suffix some upstreams
// require, so the symbol returned to clients stays exchange-neutral.
func StripBISTSuffix(symbol string) string {
	return strings.TrimSuffix(symbol, ".IS")
}

// WithBISTSuffix adds ".IS" back on for the upstream request if it isn't
// already present.
func WithBISTSuffix(symbol string) string {
	if strings.HasSuffix(symbol, ".IS") {
		return symbol
	}
	return symbol + ".IS"
}

// Interval is one of the requested interval enum values.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var validIntervals = map[Interval]bool{
	Interval1m: true, Interval5m: true, Interval15m: true, Interval30m: true,
	Interval1h: true, Interval4h: true, Interval1d: true,
}

// ParseInterval validates a raw interval string against the requested enum.
func ParseInterval(raw string) (Interval, error) {
	i := Interval(raw)
	if !validIntervals[i] {
		return "", cerrors.New(cerrors.InvalidInterval, "unsupported interval: "+raw)
	}
	return i, nil
}

// ProviderIntervalMap maps a requested interval to the interval actually
// supported by a provider that lacks one-to-one coverage (e.g. no native 4h
// candle). When the requested interval has no entry, it maps to itself.
type ProviderIntervalMap map[Interval]Interval

// DefaultProviderIntervalMap folds the one known gap (4h -> 1h) that every
// provider client in this module shares; providers needing a different
// mapping pass their own table to ResolveInterval.
var DefaultProviderIntervalMap = ProviderIntervalMap{
	Interval4h: Interval1h,
}

// ResolveInterval returns the provider-supported interval for a requested
// one, per the given mapping table.
func ResolveInterval(requested Interval, table ProviderIntervalMap) Interval {
	if mapped, ok := table[requested]; ok {
		return mapped
	}
	return requested
}

// Range is one of the requested range enum values.
type Range string

const (
	Range1d  Range = "1d"
	Range5d  Range = "5d"
	Range1mo Range = "1mo"
	Range3mo Range = "3mo"
	Range6mo Range = "6mo"
	Range1y  Range = "1y"
	Range2y  Range = "2y"
	Range5y  Range = "5y"
	Range10y Range = "10y"
	RangeYTD Range = "ytd"
	RangeMax Range = "max"
)

var rangeDurations = map[Range]time.Duration{
	Range1d:  24 * time.Hour,
	Range5d:  5 * 24 * time.Hour,
	Range1mo: 30 * 24 * time.Hour,
	Range3mo: 90 * 24 * time.Hour,
	Range6mo: 180 * 24 * time.Hour,
	Range1y:  365 * 24 * time.Hour,
	Range2y:  2 * 365 * 24 * time.Hour,
	Range5y:  5 * 365 * 24 * time.Hour,
	Range10y: 10 * 365 * 24 * time.Hour,
}

// ParseRange validates a raw range string against the requested enum.
func ParseRange(raw string) (Range, error) {
	r := Range(raw)
	switch r {
	case Range1d, Range5d, Range1mo, Range3mo, Range6mo, Range1y, Range2y, Range5y, Range10y, RangeYTD, RangeMax:
		return r, nil
	default:
		return "", cerrors.New(cerrors.InvalidRange, "unsupported range: "+raw)
	}
}

// Period1 translates a range into the provider's period1 start timestamp
// relative to now. ytd resolves to the start of now's calendar year; max
// resolves to the zero time, letting the provider return everything it has.
func Period1(r Range, now time.Time) time.Time {
	if r == RangeYTD {
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	}
	if r == RangeMax {
		return time.Time{}
	}
	if d, ok := rangeDurations[r]; ok {
		return now.Add(-d)
	}
	return now
}
