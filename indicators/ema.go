// Package indicators provides the technical indicators the strategies are
// built on. Everything here is deterministic and causal: a value at index i
// depends only on inputs up to and including i.
package indicators

import "fmt"

// EMA computes a streaming Exponential Moving Average over closes.
// Seeded with the first observed value, so no look-ahead and no NaN warmup.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64

	name string
}

func NewEMA(span int) *EMA {
	if span <= 0 {
		panic("EMA span must be > 0")
	}
	return &EMA{
		n:     span,
		alpha: 2.0 / float64(span+1),
		name:  fmt.Sprintf("EMA(%d)", span),
	}
}

func (e *EMA) Name() string   { return e.name }
func (e *EMA) Ready() bool    { return e.seen > 0 }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(x float64) float64 {
	e.seen++
	if e.seen == 1 {
		// Seed with the first close.
		e.value = x
	} else {
		e.value = e.alpha*x + (1.0-e.alpha)*e.value
	}
	return e.value
}

// EMASeries returns the full EMA series for closes with the given span.
// The result has the same length as the input; an empty input yields nil.
func EMASeries(closes []float64, span int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	ema := NewEMA(span)
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = ema.Update(c)
	}
	return out
}
