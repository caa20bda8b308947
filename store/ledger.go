package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/spotbot/strategy"
)

// Position is one ledger row. The ledger is the authoritative record of
// holdings: for any (pair, strategy) at most one row has IsSold == false,
// and that row is the open lot.
type Position struct {
	Time      time.Time // batch time stamping the reconciliation run
	TxnTime   time.Time // exchange fill time
	OrderID   string
	Pair      string
	Strategy  string
	Action    strategy.Action
	BuyPrice  float64
	SellPrice float64
	Qty       float64
	QuoteQty  float64
	IsSold    bool
	PnL       float64
}

const positionCols = `timestamp, timestamp_txn, order_id, pair, strategy, action,
	buy_price, sell_price, qty, quote_qty, is_sold, pnl`

func scanPosition(rows interface{ Scan(...any) error }) (Position, error) {
	var (
		p      Position
		act    string
		sell   sql.NullFloat64
		isSold int
	)
	err := rows.Scan(&p.Time, &p.TxnTime, &p.OrderID, &p.Pair, &p.Strategy, &act,
		&p.BuyPrice, &sell, &p.Qty, &p.QuoteQty, &isSold, &p.PnL)
	if err != nil {
		return Position{}, err
	}
	p.Action = strategy.Action(act)
	p.SellPrice = sell.Float64
	p.IsSold = isSold != 0
	return p, nil
}

// OpenLots returns every open lot in the ledger.
func (s *Store) OpenLots() ([]Position, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s FROM ledger WHERE is_sold = 0 ORDER BY pair, strategy`, positionCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenLot returns the single open lot for (pair, strategyKey), or
// ErrNoOpenLot.
func (s *Store) OpenLot(pair, strategyKey string) (Position, error) {
	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT %s FROM ledger WHERE pair = ? AND strategy = ? AND is_sold = 0`, positionCols),
		pair, strategyKey)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return Position{}, fmt.Errorf("open lot %s/%s: %w", pair, strategyKey, ErrNoOpenLot)
	}
	return p, err
}

// OpenPosition records a filled BUY as a new open lot. Recording an entry
// while a lot is already open is a data-integrity error, reported as
// ErrLotAlreadyOpen and written nowhere.
func (s *Store) OpenPosition(p Position) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(
		`SELECT count(*) FROM ledger WHERE pair = ? AND strategy = ? AND is_sold = 0`,
		p.Pair, p.Strategy).Scan(&n); err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("open %s/%s: %w", p.Pair, p.Strategy, ErrLotAlreadyOpen)
	}

	if _, err := tx.Exec(
		`INSERT INTO ledger
		 (timestamp, timestamp_txn, order_id, pair, strategy, action,
		  buy_price, sell_price, qty, quote_qty, is_sold, pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, 0, 0)`,
		normTime(p.Time), normTime(p.TxnTime), p.OrderID, p.Pair, p.Strategy,
		string(p.Action), p.BuyPrice, p.Qty, p.QuoteQty); err != nil {
		return err
	}
	return tx.Commit()
}

// ClosePosition records a filled SELL or CUT_SELL: the close row is
// inserted and the open lot is flipped to is_sold=1 in one transaction, so
// the single-open-lot invariant holds at every commit point. PnL must be
// computed by the caller from the open lot's cost basis.
func (s *Store) ClosePosition(p Position) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE ledger SET is_sold = 1 WHERE pair = ? AND strategy = ? AND is_sold = 0`,
		p.Pair, p.Strategy)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("close %s/%s: %w", p.Pair, p.Strategy, ErrNoOpenLot)
	}

	if _, err := tx.Exec(
		`INSERT INTO ledger
		 (timestamp, timestamp_txn, order_id, pair, strategy, action,
		  buy_price, sell_price, qty, quote_qty, is_sold, pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		normTime(p.Time), normTime(p.TxnTime), p.OrderID, p.Pair, p.Strategy,
		string(p.Action), p.BuyPrice, p.SellPrice, p.Qty, p.QuoteQty, p.PnL); err != nil {
		return err
	}
	return tx.Commit()
}

// LedgerAt returns the ledger rows stamped with the given batch time,
// exits first (the order they were reconciled in).
func (s *Store) LedgerAt(batch time.Time) ([]Position, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s FROM ledger WHERE timestamp = ? ORDER BY action DESC, pair`, positionCols),
		normTime(batch))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountOpenLots returns the number of open lots per (pair, strategy) —
// used by integrity checks and tests; anything above 1 is a violation.
func (s *Store) CountOpenLots(pair, strategyKey string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT count(*) FROM ledger WHERE pair = ? AND strategy = ? AND is_sold = 0`,
		pair, strategyKey).Scan(&n)
	return n, err
}
