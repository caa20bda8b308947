// Package exchange defines the narrow exchange surface the bot depends on
// and implements it for Binance spot. Everything above this package talks
// to the Exchange interface so tests can substitute fakes.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/spotbot/market"
)

// Fill is the result of a filled market order.
type Fill struct {
	OrderID  string
	Pair     string
	Qty      float64   // executed base quantity
	QuoteQty float64   // cumulative quote spent/received
	Time     time.Time // exchange fill time
}

// AvgPrice is the effective fill price.
func (f Fill) AvgPrice() float64 {
	if f.Qty == 0 {
		return 0
	}
	return f.QuoteQty / f.Qty
}

// Trade is one row of exchange trade history, commission included.
type Trade struct {
	ID              int64
	OrderID         int64
	Pair            string
	Price           float64
	Qty             float64
	QuoteQty        float64
	Commission      float64
	CommissionAsset string
	Time            time.Time
	IsBuyer         bool
	IsMaker         bool
}

// Exchange is the collaborator interface the engine and fetcher consume.
type Exchange interface {
	// Klines returns completed bars for pair strictly newer than since.
	// The still-open candle is never included (end-exclusive at fetch time).
	Klines(ctx context.Context, pair string, since time.Time) ([]market.Bar, error)

	// FreeBalance returns the free (unlocked) balance of an asset.
	FreeBalance(ctx context.Context, asset string) (float64, error)

	// MarketBuy spends quoteAmt of the quote currency on pair at market.
	MarketBuy(ctx context.Context, pair string, quoteAmt float64) (Fill, error)

	// MarketSell sells qty of the base asset at market.
	MarketSell(ctx context.Context, pair string, qty float64) (Fill, error)

	// Trades returns recent trade history for pair, newest window the
	// exchange keeps, for commission reconciliation.
	Trades(ctx context.Context, pair string) ([]Trade, error)
}

// Error annotates an exchange failure with the order context that produced
// it, so a skipped signal can be diagnosed from the log alone.
type Error struct {
	Pair string
	Side string // BUY, SELL or the API op for non-order calls
	Amt  float64
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange: %s %s %v: %v", e.Side, e.Pair, e.Amt, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
