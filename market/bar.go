// Package market holds the core market-data types shared by every component:
// price bars, trading-pair helpers and the batch schedule that discretizes
// reconciliation runs.
package market

import "time"

// Bar represents one OHLCV candlestick for a trading pair. Bars are
// append-only: once written to the store they are never mutated.
type Bar struct {
	Pair   string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes extracts the close series from bars, preserving order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// BaseAsset returns the base asset of a pair quoted in quote, e.g.
// BaseAsset("BTCUSDT", "USDT") == "BTC". The quote asset itself maps to
// itself so balance lookups for the quote currency stay uniform.
func BaseAsset(pair, quote string) string {
	if pair == quote {
		return quote
	}
	if len(pair) > len(quote) && pair[len(pair)-len(quote):] == quote {
		return pair[:len(pair)-len(quote)]
	}
	return pair
}
