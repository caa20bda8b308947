// Package fetch is the market-data acquisition phase: one fetch task per
// pair fanned out concurrently, gathered with a bounded retry loop that
// re-issues only the pairs that still failed. This is the only concurrent
// part of the bot; everything downstream is single-threaded per batch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/exchange"
	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/retry"
	"github.com/rustyeddy/spotbot/store"
)

// HistoryStart is where a pair with no stored bars begins fetching.
var HistoryStart = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// GatherAttempts caps how many times the still-incomplete batch is
// re-issued before the acquisition run is declared failed.
const GatherAttempts = 10

// Store is the slice of the persistence layer the fetcher needs.
type Store interface {
	EnsurePair(pair string) error
	LastBarTime(pair string) (time.Time, error)
	AppendBars(pair string, bars []market.Bar) error
	HasBarAt(pair string, ts time.Time) (bool, error)
}

type Fetcher struct {
	ex     exchange.Exchange
	st     Store
	log    *zap.Logger
	gather retry.Policy
}

func New(ex exchange.Exchange, st Store, log *zap.Logger) *Fetcher {
	return &Fetcher{
		ex:     ex,
		st:     st,
		log:    log,
		gather: retry.Policy{MaxAttempts: GatherAttempts},
	}
}

type result struct {
	pair string
	bars []market.Bar
	err  error
}

// Run pulls new bars for every pair. Fetches run concurrently; persistence
// happens on the gathering goroutine so SQLite sees a single writer. A
// failed pair does not block the others — it is retried on the next gather
// pass, up to the attempt cap.
func (f *Fetcher) Run(ctx context.Context, pairs []string) error {
	pending := append([]string(nil), pairs...)

	return f.gather.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			f.log.Warn("re-issuing incomplete fetch batch",
				zap.Int("attempt", attempt),
				zap.Strings("pairs", pending))
		}

		failed := f.fetchBatch(ctx, pending)
		if len(failed) == 0 {
			return nil
		}
		pending = failed
		return fmt.Errorf("fetch: %d pairs incomplete", len(failed))
	})
}

func (f *Fetcher) fetchBatch(ctx context.Context, pairs []string) []string {
	results := make(chan result, len(pairs))
	for _, pair := range pairs {
		go func(pair string) {
			bars, err := f.fetchPair(ctx, pair)
			results <- result{pair: pair, bars: bars, err: err}
		}(pair)
	}

	var failed []string
	for range pairs {
		res := <-results
		if res.err != nil {
			f.log.Error("fetch pair", zap.String("pair", res.pair), zap.Error(res.err))
			failed = append(failed, res.pair)
			continue
		}
		if err := f.st.AppendBars(res.pair, res.bars); err != nil {
			f.log.Error("append bars", zap.String("pair", res.pair), zap.Error(err))
			failed = append(failed, res.pair)
			continue
		}
		f.log.Debug("fetched", zap.String("pair", res.pair), zap.Int("bars", len(res.bars)))
	}
	return failed
}

func (f *Fetcher) fetchPair(ctx context.Context, pair string) ([]market.Bar, error) {
	if err := f.st.EnsurePair(pair); err != nil {
		return nil, err
	}

	since, err := f.st.LastBarTime(pair)
	if errors.Is(err, store.ErrNotFound) {
		since = HistoryStart
	} else if err != nil {
		return nil, err
	}

	return f.ex.Klines(ctx, pair, since)
}

// Completeness counts how many pairs hold a bar exactly at the batch
// boundary — the batch's data-quality score.
func Completeness(st Store, pairs []string, batch time.Time) (int, error) {
	n := 0
	for _, pair := range pairs {
		ok, err := st.HasBarAt(pair, batch)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
