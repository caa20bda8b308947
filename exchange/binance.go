package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/pkg/id"
)

// klineLimit is the Binance per-request cap.
const klineLimit = 1000

// Binance implements Exchange over the spot REST API.
type Binance struct {
	client   *binance.Client
	interval string
	now      func() time.Time
}

// NewBinance builds a Binance spot client fetching candles at the given
// interval (e.g. "8h").
func NewBinance(apiKey, apiSecret, interval string) *Binance {
	return &Binance{
		client:   binance.NewClient(apiKey, apiSecret),
		interval: interval,
		now:      time.Now,
	}
}

func (b *Binance) Klines(ctx context.Context, pair string, since time.Time) ([]market.Bar, error) {
	nowMs := b.now().UnixMilli()
	startMs := since.UnixMilli() + 1 // strictly newer than since

	var out []market.Bar
	for {
		klines, err := b.client.NewKlinesService().
			Symbol(pair).
			Interval(b.interval).
			StartTime(startMs).
			Limit(klineLimit).
			Do(ctx)
		if err != nil {
			return nil, &Error{Pair: pair, Side: "KLINES", Err: err}
		}

		n := 0
		for _, k := range klines {
			// The last kline is usually still open; anything whose close
			// time has not passed yet is excluded.
			if k.CloseTime >= nowMs {
				continue
			}
			bar, err := toBar(pair, k)
			if err != nil {
				return nil, &Error{Pair: pair, Side: "KLINES", Err: err}
			}
			out = append(out, bar)
			n++
		}

		if len(klines) < klineLimit {
			return out, nil
		}
		if n == 0 {
			// Full page of still-open candles cannot happen, but guard
			// against looping forever on a stuck cursor.
			return out, nil
		}
		startMs = klines[len(klines)-1].CloseTime + 1
	}
}

func toBar(pair string, k *binance.Kline) (market.Bar, error) {
	bar := market.Bar{Pair: pair, Time: time.UnixMilli(k.OpenTime).UTC()}

	fields := []struct {
		s   string
		dst *float64
	}{
		{k.Open, &bar.Open},
		{k.High, &bar.High},
		{k.Low, &bar.Low},
		{k.Close, &bar.Close},
		{k.Volume, &bar.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.s, 64)
		if err != nil {
			return market.Bar{}, err
		}
		*f.dst = v
	}
	return bar, nil
}

func (b *Binance) FreeBalance(ctx context.Context, asset string) (float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, &Error{Pair: asset, Side: "ACCOUNT", Err: err}
	}
	for _, bal := range acct.Balances {
		if bal.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			return 0, &Error{Pair: asset, Side: "ACCOUNT", Err: err}
		}
		return free, nil
	}
	return 0, nil
}

func (b *Binance) MarketBuy(ctx context.Context, pair string, quoteAmt float64) (Fill, error) {
	res, err := b.client.NewCreateOrderService().
		Symbol(pair).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(quoteAmt, 'f', -1, 64)).
		NewClientOrderID(id.New()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return Fill{}, &Error{Pair: pair, Side: "BUY", Amt: quoteAmt, Err: err}
	}
	return toFill(pair, res)
}

func (b *Binance) MarketSell(ctx context.Context, pair string, qty float64) (Fill, error) {
	res, err := b.client.NewCreateOrderService().
		Symbol(pair).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
		NewClientOrderID(id.New()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return Fill{}, &Error{Pair: pair, Side: "SELL", Amt: qty, Err: err}
	}
	return toFill(pair, res)
}

func toFill(pair string, res *binance.CreateOrderResponse) (Fill, error) {
	qty, err := strconv.ParseFloat(res.ExecutedQuantity, 64)
	if err != nil {
		return Fill{}, &Error{Pair: pair, Side: "FILL", Err: err}
	}
	quote, err := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)
	if err != nil {
		return Fill{}, &Error{Pair: pair, Side: "FILL", Err: err}
	}
	return Fill{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Pair:     pair,
		Qty:      qty,
		QuoteQty: quote,
		Time:     time.UnixMilli(res.TransactTime).UTC(),
	}, nil
}

func (b *Binance) Trades(ctx context.Context, pair string) ([]Trade, error) {
	trades, err := b.client.NewListTradesService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, &Error{Pair: pair, Side: "TRADES", Err: err}
	}

	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		price, err1 := strconv.ParseFloat(t.Price, 64)
		qty, err2 := strconv.ParseFloat(t.Quantity, 64)
		quote, err3 := strconv.ParseFloat(t.QuoteQuantity, 64)
		comm, err4 := strconv.ParseFloat(t.Commission, 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, &Error{Pair: pair, Side: "TRADES", Err: err}
			}
		}
		out = append(out, Trade{
			ID:              t.ID,
			OrderID:         t.OrderID,
			Pair:            t.Symbol,
			Price:           price,
			Qty:             qty,
			QuoteQty:        quote,
			Commission:      comm,
			CommissionAsset: t.CommissionAsset,
			Time:            time.UnixMilli(t.Time).UTC(),
			IsBuyer:         t.IsBuyer,
			IsMaker:         t.IsMaker,
		})
	}
	return out, nil
}
