// Package signal turns stored price history into persisted trade signals.
// The generator re-simulates each configured (pair, strategy) over its full
// lookback window every run and appends only the events newer than the
// watermark, so repeated runs over unchanged history write nothing.
package signal

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/store"
	"github.com/rustyeddy/spotbot/strategy"
)

// lookbackPerSpan sizes the simulation window: three days of history per
// unit of EMA span, enough for the EMA to forget anything older.
const lookbackPerSpan = 3 * 24 * time.Hour

// Store is the persistence slice the generator needs.
type Store interface {
	Strategies() ([]store.StrategyRow, error)
	Bars(pair string, since time.Time) ([]market.Bar, error)
	LastSignalTime(pair, strategyKey string) (time.Time, error)
	AppendSignals([]store.Signal) error
}

type Generator struct {
	st  Store
	log *zap.Logger
	now func() time.Time
}

func New(st Store, log *zap.Logger) *Generator {
	return &Generator{st: st, log: log, now: time.Now}
}

// Run simulates every configured (pair, strategy) and persists the events
// past each watermark. It returns the number of new signal rows. A failure
// on one row is logged and skipped so one bad pair cannot block the rest;
// only the master-table read itself is fatal.
func (g *Generator) Run() (int, error) {
	rows, err := g.st.Strategies()
	if err != nil {
		return 0, fmt.Errorf("load master table: %w", err)
	}

	total := 0
	for _, row := range rows {
		n, err := g.generate(row)
		if err != nil {
			g.log.Error("generate signals",
				zap.String("pair", row.Pair),
				zap.String("strategy", row.Params.Key()),
				zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

func (g *Generator) generate(row store.StrategyRow) (int, error) {
	windowStart := g.now().Add(-time.Duration(row.Params.Span) * lookbackPerSpan)

	bars, err := g.st.Bars(row.Pair, windowStart)
	if err != nil {
		return 0, err
	}

	_, events := strategy.Simulate(bars, row.Params)
	if len(events) == 0 {
		return 0, nil
	}

	key := row.Params.Key()

	// The watermark is the durable identity boundary: the simulator
	// recomputes the whole series each run, so an event is "new" purely by
	// being newer than the last persisted timestamp.
	watermark, err := g.st.LastSignalTime(row.Pair, key)
	if errors.Is(err, store.ErrNotFound) {
		watermark = windowStart
	} else if err != nil {
		return 0, err
	}

	var fresh []store.Signal
	for _, ev := range events {
		if !ev.Time.After(watermark) {
			continue
		}
		fresh = append(fresh, store.Signal{
			Time:      ev.Time,
			Pair:      row.Pair,
			Strategy:  key,
			Action:    ev.Action,
			BuyPrice:  ev.BuyPrice,
			SellPrice: ev.SellPrice,
		})
	}

	if err := g.st.AppendSignals(fresh); err != nil {
		return 0, err
	}
	if len(fresh) > 0 {
		g.log.Info("signals persisted",
			zap.String("pair", row.Pair),
			zap.String("strategy", key),
			zap.Int("count", len(fresh)))
	}
	return len(fresh), nil
}
