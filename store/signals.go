package store

import (
	"database/sql"
	"time"

	"github.com/rustyeddy/spotbot/strategy"
)

// Signal is one persisted trade signal. The signal log is append-only and
// advisory: rows are never mutated, not even after execution.
type Signal struct {
	Time      time.Time
	Pair      string
	Strategy  string
	Action    strategy.Action
	BuyPrice  float64
	SellPrice float64
}

// LastSignalTime returns the watermark for (pair, strategyKey): the newest
// persisted signal timestamp, or ErrNotFound when none exists.
func (s *Store) LastSignalTime(pair, strategyKey string) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRow(
		`SELECT max(timestamp) FROM signals WHERE pair = ? AND strategy = ?`,
		pair, strategyKey).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, ErrNotFound
	}
	return ts.Time, nil
}

// AppendSignals appends signals to the log.
func (s *Store) AppendSignals(signals []Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO signals (timestamp, pair, strategy, action, buy_price, sell_price)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sig := range signals {
		if _, err := stmt.Exec(normTime(sig.Time), sig.Pair, sig.Strategy,
			string(sig.Action), sig.BuyPrice, sig.SellPrice); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SignalsAt returns every signal stamped with the given batch time.
func (s *Store) SignalsAt(batch time.Time) ([]Signal, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, pair, strategy, action, buy_price, sell_price
		 FROM signals WHERE timestamp = ? ORDER BY pair, strategy`, normTime(batch))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var (
			sig  Signal
			act  string
			sell sql.NullFloat64
		)
		if err := rows.Scan(&sig.Time, &sig.Pair, &sig.Strategy, &act, &sig.BuyPrice, &sell); err != nil {
			return nil, err
		}
		sig.Action = strategy.Action(act)
		sig.SellPrice = sell.Float64
		out = append(out, sig)
	}
	return out, rows.Err()
}
