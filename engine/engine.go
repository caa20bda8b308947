// Package engine reconciles the current batch's signals against the ledger
// and the exchange: signal-driven exits first, then entries sized by an
// even split of free capital across the slots that remain open. Every
// mutation is per-row; one failed order never aborts the batch.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/exchange"
	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/store"
	"github.com/rustyeddy/spotbot/strategy"
)

// Store is the ledger/persistence slice the engine needs.
type Store interface {
	SignalsAt(batch time.Time) ([]store.Signal, error)
	OpenLots() ([]store.Position, error)
	OpenLot(pair, strategyKey string) (store.Position, error)
	OpenPosition(p store.Position) error
	ClosePosition(p store.Position) error
	CountStrategies() (int, error)
	MinOrderSize(pair string) (float64, error)
	ReplaceFillsSince(pair string, since time.Time, fills []store.Fill) error
	LastFillTime() (time.Time, error)
}

// Config tunes the engine's sizing rules.
type Config struct {
	// QuoteAsset is the portfolio's quote currency, normally USDT.
	QuoteAsset string

	// ExceptionSymbol is clamped to the ledger quantity with no slack at
	// all on exit, where every other pair gets a two-tick tolerance. The
	// quote asset's own pair (fee asset) dusts differently on this venue.
	// Deliberately preserved behavior; override to "" to disable.
	ExceptionSymbol string
}

func DefaultConfig() Config {
	return Config{QuoteAsset: "USDT", ExceptionSymbol: "BNBUSDT"}
}

// fillHistoryStart bounds the commission backfill when the fill log is
// still empty.
var fillHistoryStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Result summarizes one reconciliation run for the reporting collaborator.
type Result struct {
	Batch   time.Time
	Signals int // signals present at the batch boundary
	Sells   int // exits executed and reconciled
	Buys    int // entries executed and reconciled
	Errors  int // per-row failures that were logged and skipped
}

type Engine struct {
	st  Store
	ex  exchange.Exchange
	cfg Config
	log *zap.Logger
}

func New(st Store, ex exchange.Exchange, cfg Config, log *zap.Logger) *Engine {
	return &Engine{st: st, ex: ex, cfg: cfg, log: log}
}


// GenerateTransactions runs one reconciliation batch. With no signals at
// the boundary it is a no-op, which is what makes a full batch retry safe.
func (e *Engine) GenerateTransactions(ctx context.Context, batch time.Time) (Result, error) {
	res := Result{Batch: batch}

	signals, err := e.st.SignalsAt(batch)
	if err != nil {
		return res, err
	}
	res.Signals = len(signals)
	if len(signals) == 0 {
		return res, nil
	}

	lots, err := e.st.OpenLots()
	if err != nil {
		return res, err
	}

	// Join sell-type signals against open lots by pair. One signal can
	// match several lots on the same pair; each match is its own exit
	// candidate, resolved (and integrity-checked) individually.
	var exits []store.Signal
	for _, sig := range signals {
		if !sig.Action.IsExit() {
			continue
		}
		for _, lot := range lots {
			if lot.Pair == sig.Pair {
				exits = append(exits, sig)
			}
		}
	}

	for _, sig := range exits {
		if err := e.executeExit(ctx, batch, sig); err != nil {
			res.Errors++
			e.log.Error("exit failed",
				zap.String("pair", sig.Pair),
				zap.String("strategy", sig.Strategy),
				zap.String("action", string(sig.Action)),
				zap.Error(err))
			continue
		}
		res.Sells++
	}

	var buys []store.Signal
	for _, sig := range signals {
		if sig.Action == strategy.Buy {
			buys = append(buys, sig)
		}
	}
	if len(buys) == 0 {
		return res, nil
	}

	amt, err := e.entryAmount(ctx, len(lots), len(exits))
	if err != nil {
		return res, err
	}
	e.log.Info("entry sizing",
		zap.Float64("per_entry", amt),
		zap.Int("open", len(lots)),
		zap.Int("exits", len(exits)))

	for _, sig := range buys {
		if err := e.executeEntry(ctx, batch, sig, amt); err != nil {
			res.Errors++
			e.log.Error("entry failed",
				zap.String("pair", sig.Pair),
				zap.String("strategy", sig.Strategy),
				zap.Float64("amount", amt),
				zap.Error(err))
			continue
		}
		res.Buys++
	}

	return res, nil
}

// executeExit sells one lot. The quantity is the exchange-available balance
// minus half a tick of rounding safety, clamped back to the ledger quantity
// when it runs more than two ticks over (or at all, for the exception
// symbol).
func (e *Engine) executeExit(ctx context.Context, batch time.Time, sig store.Signal) error {
	// Resolve the lot by the signal's own strategy before any order goes
	// out; a mismatch here is a ledger-integrity violation, caught while
	// the money is still in place.
	lot, err := e.st.OpenLot(sig.Pair, sig.Strategy)
	if err != nil {
		return err
	}

	minSize, err := e.st.MinOrderSize(sig.Pair)
	if err != nil {
		return err
	}
	d := market.QtyDecimals(minSize)

	avail, err := e.ex.FreeBalance(ctx, market.BaseAsset(sig.Pair, e.cfg.QuoteAsset))
	if err != nil {
		return err
	}

	qty := sellQty(avail, lot.Qty, d, sig.Pair == e.cfg.ExceptionSymbol)

	fill, err := e.ex.MarketSell(ctx, sig.Pair, qty)
	if err != nil {
		return err
	}

	cost := lot.QuoteQty
	rec := store.Position{
		Time:      batch,
		TxnTime:   fill.Time,
		OrderID:   fill.OrderID,
		Pair:      sig.Pair,
		Strategy:  sig.Strategy,
		Action:    sig.Action,
		BuyPrice:  lot.BuyPrice,
		SellPrice: fill.AvgPrice(),
		Qty:       fill.Qty,
		QuoteQty:  fill.QuoteQty,
		PnL:       (fill.QuoteQty - cost) / cost * 100,
	}
	if err := e.st.ClosePosition(rec); err != nil {
		return err
	}

	e.refreshFills(ctx, sig.Pair)
	return nil
}

// entryAmount evenly divides the free quote balance across every slot that
// will be open after this batch's exits complete, rounded to 3 decimals.
func (e *Engine) entryAmount(ctx context.Context, openLots, plannedExits int) (float64, error) {
	total, err := e.st.CountStrategies()
	if err != nil {
		return 0, err
	}

	free, err := e.ex.FreeBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		return 0, err
	}

	slots := total - openLots + plannedExits
	if slots <= 0 {
		slots = 1
	}
	amt := decimal.NewFromFloat(free).
		Div(decimal.NewFromInt(int64(slots))).
		Round(3)
	return amt.InexactFloat64(), nil
}

func (e *Engine) executeEntry(ctx context.Context, batch time.Time, sig store.Signal, amt float64) error {
	// Single-lot discipline, checked before the order is placed: a BUY
	// signal against an already-open lot is an integrity violation, not a
	// trade.
	if _, err := e.st.OpenLot(sig.Pair, sig.Strategy); err == nil {
		return store.ErrLotAlreadyOpen
	}

	fill, err := e.ex.MarketBuy(ctx, sig.Pair, amt)
	if err != nil {
		return err
	}

	rec := store.Position{
		Time:     batch,
		TxnTime:  fill.Time,
		OrderID:  fill.OrderID,
		Pair:     sig.Pair,
		Strategy: sig.Strategy,
		Action:   strategy.Buy,
		BuyPrice: fill.AvgPrice(),
		Qty:      fill.Qty,
		QuoteQty: fill.QuoteQty,
	}
	if err := e.st.OpenPosition(rec); err != nil {
		return err
	}

	e.refreshFills(ctx, sig.Pair)
	return nil
}

// sellQty computes the exit quantity: available balance minus half a tick,
// rounded to the pair's precision, clamped back to the ledger's quantity
// when it exceeds the open lot by more than two ticks. The exception
// symbol clamps with no slack.
func sellQty(avail, lotQty float64, d int, exception bool) float64 {
	tick := decimal.New(1, -int32(d))

	qty := decimal.NewFromFloat(avail).
		Sub(tick.Div(decimal.NewFromInt(2))).
		Round(int32(d))

	lot := decimal.NewFromFloat(lotQty)
	over := qty.GreaterThan(lot.Add(tick.Mul(decimal.NewFromInt(2))))
	if over || (exception && qty.GreaterThan(lot)) {
		return lotQty
	}
	return qty.InexactFloat64()
}

// refreshFills rewrites the newest window of the pair's fill log from
// exchange trade history so commissions stay reconciled. Best effort: a
// failure here loses nothing but commission detail, so it is only logged.
func (e *Engine) refreshFills(ctx context.Context, pair string) {
	since := fillHistoryStart
	if last, err := e.st.LastFillTime(); err == nil {
		since = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	}

	trades, err := e.ex.Trades(ctx, pair)
	if err != nil {
		e.log.Warn("fill history fetch", zap.String("pair", pair), zap.Error(err))
		return
	}

	fills := make([]store.Fill, 0, len(trades))
	for _, t := range trades {
		fills = append(fills, store.Fill{
			Time:            t.Time,
			Pair:            t.Pair,
			TradeID:         t.ID,
			OrderID:         t.OrderID,
			Price:           t.Price,
			Qty:             t.Qty,
			QuoteQty:        t.QuoteQty,
			Commission:      t.Commission,
			CommissionAsset: t.CommissionAsset,
			IsBuyer:         t.IsBuyer,
			IsMaker:         t.IsMaker,
		})
	}
	if err := e.st.ReplaceFillsSince(pair, since, fills); err != nil {
		e.log.Warn("fill history store", zap.String("pair", pair), zap.Error(err))
	}
}
