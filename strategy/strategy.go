// Package strategy implements the EMA crossover / cut-loss family of spot
// strategies as a pure simulation: a price series in, discrete trade events
// and a final balance out. Nothing here touches the store or the exchange,
// which keeps the whole strategy replayable and deterministic.
package strategy

import (
	"fmt"
	"strconv"
	"time"
)

// Action classifies a trade event.
type Action string

const (
	Buy     Action = "BUY"
	Sell    Action = "SELL"
	CutSell Action = "CUT_SELL"
)

// IsExit reports whether the action closes a position.
func (a Action) IsExit() bool { return a == Sell || a == CutSell }

// Params identify one strategy instance. A (pair, Params) combination owns
// at most one open lot at a time.
type Params struct {
	Span    int     `yaml:"ema"`
	CutLoss float64 `yaml:"cut_loss"`
}

// Key returns the deterministic strategy identity used throughout the store:
// the span concatenated with the shortest decimal form of the cut-loss.
// Params{20, 0.1}.Key() == "200.1".
func (p Params) Key() string {
	return strconv.Itoa(p.Span) + strconv.FormatFloat(p.CutLoss, 'f', -1, 64)
}

func (p Params) Validate() error {
	if p.Span <= 0 {
		return fmt.Errorf("strategy: ema span must be positive, got %d", p.Span)
	}
	if p.CutLoss <= 0 || p.CutLoss >= 1 {
		return fmt.Errorf("strategy: cut_loss must be in (0,1), got %v", p.CutLoss)
	}
	return nil
}

// Event is one simulated trade decision. Events are advisory: the
// transaction engine matches them against real holdings before any order is
// placed, and they are never mutated to reflect execution.
type Event struct {
	Time      time.Time
	Action    Action
	BuyPrice  float64 // entry price of the lot the event belongs to
	SellPrice float64 // zero for BUY
	Balance   float64 // running balance right after the event
}
