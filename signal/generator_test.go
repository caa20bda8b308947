package signal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/store"
	"github.com/rustyeddy/spotbot/strategy"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "signal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedHistory writes a close series ending "now", 8h apart, and returns the
// bar times.
func seedHistory(t *testing.T, s *store.Store, pair string, now time.Time, closes []float64) []time.Time {
	t.Helper()
	require.NoError(t, s.EnsurePair(pair))

	times := make([]time.Time, len(closes))
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		ts := now.Add(-time.Duration(len(closes)-i) * 8 * time.Hour)
		times[i] = ts
		bars[i] = market.Bar{Pair: pair, Time: ts, Close: c, Open: c, High: c, Low: c, Volume: 1}
	}
	require.NoError(t, s.AppendBars(pair, bars))
	return times
}

func newGenerator(s *store.Store, now time.Time) *Generator {
	g := New(s, zap.NewNop())
	g.now = func() time.Time { return now }
	return g
}

func TestRunPersistsSimulatedEvents(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SeedMaster([]store.StrategyRow{
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 2, CutLoss: 0.1}, MinOrderSize: 0.001},
	}))
	seedHistory(t, s, "BTCUSDT", now, []float64{10, 10, 10, 12, 12, 9, 9})

	g := newGenerator(s, now)
	n, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, n) // BUY then CUT_SELL

	wm, err := s.LastSignalTime("BTCUSDT", "20.1")
	require.NoError(t, err)
	assert.False(t, wm.IsZero())
}

func TestRunIsIdempotentOverUnchangedHistory(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SeedMaster([]store.StrategyRow{
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 2, CutLoss: 0.1}, MinOrderSize: 0.001},
	}))
	seedHistory(t, s, "BTCUSDT", now, []float64{10, 10, 10, 12, 12, 9, 9})

	g := newGenerator(s, now)
	n, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second run over identical history: the watermark filters everything.
	n, err = g.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunPersistsOnlyEventsPastWatermark(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SeedMaster([]store.StrategyRow{
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 2, CutLoss: 0.1}, MinOrderSize: 0.001},
	}))
	seedHistory(t, s, "BTCUSDT", now, []float64{10, 10, 10, 12, 12})

	g := newGenerator(s, now)
	n, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n) // just the BUY

	wmBefore, err := s.LastSignalTime("BTCUSDT", "20.1")
	require.NoError(t, err)

	// New bars arrive; only the CUT_SELL they produce is appended.
	seedHistory(t, s, "BTCUSDT", now.Add(16*time.Hour), []float64{9, 9})
	g.now = func() time.Time { return now.Add(16 * time.Hour) }

	n, err = g.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wmAfter, err := s.LastSignalTime("BTCUSDT", "20.1")
	require.NoError(t, err)
	assert.True(t, wmAfter.After(wmBefore))
}

func TestRunSkipsBadPairAndContinues(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// First row's pair has no price table at all; second is healthy.
	require.NoError(t, s.SeedMaster([]store.StrategyRow{
		{Pair: "AAAUSDT", Params: strategy.Params{Span: 2, CutLoss: 0.1}, MinOrderSize: 0.001},
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 2, CutLoss: 0.1}, MinOrderSize: 0.001},
	}))
	seedHistory(t, s, "BTCUSDT", now, []float64{10, 10, 10, 12, 12})

	g := newGenerator(s, now)
	n, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunNoEventsNoRows(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SeedMaster([]store.StrategyRow{
		{Pair: "BTCUSDT", Params: strategy.Params{Span: 3, CutLoss: 0.1}, MinOrderSize: 0.001},
	}))
	seedHistory(t, s, "BTCUSDT", now, []float64{10, 10, 10, 10})

	g := newGenerator(s, now)
	n, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
