package types

import (
	"sort"
	"time"
)

// RawCandle is a provider candle before null-filtering and normalization;
// Close is a pointer because some upstreams emit null for an in-progress or
// missing sample.
type RawCandle struct {
	Time   *int64 // unix seconds; nil means missing timestamp
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume float64
}

// NormalizeCandles drops candles with a missing close or timestamp, sorts
// the remainder ascending by time, and fills a missing open/high/low from
// close.
func NormalizeCandles(raw []RawCandle) []Candle {
	kept := make([]RawCandle, 0, len(raw))
	for _, c := range raw {
		if c.Close == nil || c.Time == nil {
			continue
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool { return *kept[i].Time < *kept[j].Time })

	out := make([]Candle, 0, len(kept))
	for _, c := range kept {
		close := *c.Close
		open, high, low := close, close, close
		if c.Open != nil {
			open = *c.Open
		}
		if c.High != nil {
			high = *c.High
		}
		if c.Low != nil {
			low = *c.Low
		}
		out = append(out, Candle{
			Time:   unixToTime(*c.Time),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: c.Volume,
		})
	}
	return out
}

func unixToTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
