package strategy

import (
	"github.com/rustyeddy/spotbot/indicators"
	"github.com/rustyeddy/spotbot/market"
)

const (
	// InitialBudget is the notional the simulation starts from. The final
	// balance is therefore directly comparable across pairs and strategies.
	InitialBudget = 100.0

	// Fee is the proportional exchange fee applied to every fill.
	Fee = 0.002
)

// state is the per-run mutable simulation state, threaded through each bar
// so nothing bleeds across pairs or strategies.
type state struct {
	budget     float64
	tokens     float64
	entryPrice float64
}

func (s *state) flat() bool { return s.tokens == 0 }

// Simulate replays params over bars in chronological order and returns the
// final balance plus the trade events the strategy would have taken.
//
// Per bar, exactly one of three rules can fire:
//   - entry: upward EMA crossover while flat with budget left; the whole
//     budget converts to tokens at the close, minus the fee
//   - stop-loss: close under entry×(1−cutLoss) while holding; full
//     liquidation at the close (CUT_SELL)
//   - exit: downward EMA crossover while holding (SELL)
//
// The stop-loss is checked before the crossover exit; once a bar liquidates,
// the position is flat and no second exit can fire. A series too short to
// form a crossover produces no events and a final balance of InitialBudget.
func Simulate(bars []market.Bar, params Params) (float64, []Event) {
	st := state{budget: InitialBudget}
	final := InitialBudget

	ema := indicators.NewEMA(params.Span)

	var (
		lastDiff     float64
		haveLastDiff bool
		events       []Event
	)

	for _, bar := range bars {
		c := bar.Close
		diff := c - ema.Update(c)

		if !haveLastDiff {
			lastDiff = diff
			haveLastDiff = true
			final = st.budget
			continue
		}

		bullCross := diff > 0 && lastDiff <= 0
		bearCross := diff < 0 && lastDiff >= 0
		lastDiff = diff

		switch {
		case bullCross && st.flat() && st.budget > 0:
			st.tokens = st.budget / c * (1 - Fee)
			st.entryPrice = c
			st.budget = 0
			events = append(events, Event{
				Time:     bar.Time,
				Action:   Buy,
				BuyPrice: c,
				Balance:  st.tokens * c,
			})

		case !st.flat() && c < st.entryPrice*(1-params.CutLoss):
			st.budget = st.tokens * c * (1 - Fee)
			st.tokens = 0
			events = append(events, Event{
				Time:      bar.Time,
				Action:    CutSell,
				BuyPrice:  st.entryPrice,
				SellPrice: c,
				Balance:   st.budget,
			})

		case !st.flat() && bearCross:
			st.budget = st.tokens * c * (1 - Fee)
			st.tokens = 0
			events = append(events, Event{
				Time:      bar.Time,
				Action:    Sell,
				BuyPrice:  st.entryPrice,
				SellPrice: c,
				Balance:   st.budget,
			})
		}

		if st.flat() {
			final = st.budget
		} else {
			final = st.tokens * c
		}
	}

	return final, events
}
