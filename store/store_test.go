package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/strategy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "spotbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ts(h int) time.Time {
	return time.Date(2024, 3, 5, h, 0, 0, 0, time.UTC)
}

func TestEnsurePairAndBars(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.EnsurePair("BTCUSDT"))

	bars := []market.Bar{
		{Pair: "BTCUSDT", Time: ts(7), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Pair: "BTCUSDT", Time: ts(15), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 20},
	}
	require.NoError(t, s.AppendBars("BTCUSDT", bars))

	last, err := s.LastBarTime("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, last.Equal(ts(15)))

	got, err := s.Bars("BTCUSDT", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.5, got[0].Close, 1e-12)

	// Re-appending the same bars is a no-op: the table is append-only.
	require.NoError(t, s.AppendBars("BTCUSDT", bars))
	got, err = s.Bars("BTCUSDT", time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ok, err := s.HasBarAt("BTCUSDT", ts(15))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasBarAt("BTCUSDT", ts(23))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBarsSinceIsExclusive(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.EnsurePair("ETHUSDT"))
	require.NoError(t, s.AppendBars("ETHUSDT", []market.Bar{
		{Time: ts(7), Close: 1}, {Time: ts(15), Close: 2},
	}))

	got, err := s.Bars("ETHUSDT", ts(7))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(ts(15)))
}

func TestInvalidPairNameRejected(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Error(t, s.EnsurePair("btc;drop"))
	_, err := s.Bars("x y", time.Time{})
	assert.Error(t, err)
}

func TestMasterRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rows := []StrategyRow{
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 20, CutLoss: 0.1}, MinOrderSize: 0.00001},
		{Pair: "ETHUSDT", Params: strategy.Params{Span: 15, CutLoss: 0.05}, MinOrderSize: 0.0001},
	}
	require.NoError(t, s.SeedMaster(rows))

	got, err := s.Strategies()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "200.1", got[0].Params.Key())

	n, err := s.CountStrategies()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pairs, err := s.Pairs()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, pairs)

	m, err := s.MinOrderSize("ETHUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, m, 1e-12)

	_, err = s.MinOrderSize("XRPUSDT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedMasterRejectsBadParams(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.SeedMaster([]StrategyRow{{Pair: "BTCUSDT", Params: strategy.Params{Span: 0, CutLoss: 0.1}}})
	assert.Error(t, err)
}

func TestSignalWatermark(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.LastSignalTime("BTCUSDT", "200.1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AppendSignals([]Signal{
		{Time: ts(7), Pair: "BTCUSDT", Strategy: "200.1", Action: strategy.Buy, BuyPrice: 100},
		{Time: ts(15), Pair: "BTCUSDT", Strategy: "200.1", Action: strategy.Sell, BuyPrice: 100, SellPrice: 110},
		{Time: ts(15), Pair: "ETHUSDT", Strategy: "150.05", Action: strategy.Buy, BuyPrice: 10},
	}))

	wm, err := s.LastSignalTime("BTCUSDT", "200.1")
	require.NoError(t, err)
	assert.True(t, wm.Equal(ts(15)))

	got, err := s.SignalsAt(ts(15))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.SignalsAt(ts(23))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLedgerOpenCloseLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	open := Position{
		Time: ts(7), TxnTime: ts(7).Add(time.Second), OrderID: "1",
		Pair: "BTCUSDT", Strategy: "200.1", Action: strategy.Buy,
		BuyPrice: 100, Qty: 1.5, QuoteQty: 150,
	}
	require.NoError(t, s.OpenPosition(open))

	// Single-lot discipline: a second entry for the same (pair, strategy)
	// is an integrity violation.
	err := s.OpenPosition(open)
	assert.ErrorIs(t, err, ErrLotAlreadyOpen)

	// A different strategy on the same pair is its own lot.
	other := open
	other.Strategy = "150.05"
	require.NoError(t, s.OpenPosition(other))

	lots, err := s.OpenLots()
	require.NoError(t, err)
	assert.Len(t, lots, 2)

	lot, err := s.OpenLot("BTCUSDT", "200.1")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, lot.QuoteQty, 1e-12)

	closeRec := Position{
		Time: ts(15), TxnTime: ts(15).Add(time.Second), OrderID: "2",
		Pair: "BTCUSDT", Strategy: "200.1", Action: strategy.Sell,
		BuyPrice: 100, SellPrice: 110, Qty: 1.5, QuoteQty: 165,
		PnL: (165 - 150) / 150 * 100,
	}
	require.NoError(t, s.ClosePosition(closeRec))

	// The lot is gone and at no point did two open rows exist.
	n, err := s.CountOpenLots("BTCUSDT", "200.1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.OpenLot("BTCUSDT", "200.1")
	assert.ErrorIs(t, err, ErrNoOpenLot)

	// Closing again with no open lot is a violation.
	assert.ErrorIs(t, s.ClosePosition(closeRec), ErrNoOpenLot)

	// Re-entry after the exit is legal.
	reopen := open
	reopen.Time = ts(23)
	require.NoError(t, s.OpenPosition(reopen))
}

func TestLedgerAtReturnsBatchRows(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.OpenPosition(Position{
		Time: ts(7), TxnTime: ts(7), OrderID: "1", Pair: "BTCUSDT",
		Strategy: "200.1", Action: strategy.Buy, BuyPrice: 100, Qty: 1, QuoteQty: 100,
	}))

	rows, err := s.LedgerAt(ts(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, strategy.Buy, rows[0].Action)
	assert.False(t, rows[0].IsSold)

	rows, err = s.LedgerAt(ts(15))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReplaceFillsSince(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReplaceFillsSince("BTCUSDT", day, []Fill{
		{Time: ts(7), Pair: "BTCUSDT", TradeID: 1, OrderID: 10, Price: 100, Qty: 1, QuoteQty: 100, Commission: 0.1, CommissionAsset: "BNB"},
	}))

	// Replacing the same day drops the old rows first, so the newest day
	// is rewritten wholesale, never duplicated.
	require.NoError(t, s.ReplaceFillsSince("BTCUSDT", day, []Fill{
		{Time: ts(7), Pair: "BTCUSDT", TradeID: 1, OrderID: 10, Price: 100, Qty: 1, QuoteQty: 100, Commission: 0.1, CommissionAsset: "BNB"},
		{Time: ts(15), Pair: "BTCUSDT", TradeID: 2, OrderID: 11, Price: 110, Qty: 1, QuoteQty: 110, Commission: 0.1, CommissionAsset: "BNB"},
	}))

	last, err := s.LastFillTime()
	require.NoError(t, err)
	assert.True(t, last.Equal(ts(15)))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM fills`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestLastFillTimeEmpty(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.LastFillTime()
	assert.ErrorIs(t, err, ErrNotFound)
}
