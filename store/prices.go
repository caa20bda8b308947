package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/spotbot/market"
)

// AppendBars appends bars to the pair's price table. Bars already present
// (same timestamp) are ignored, keeping the table append-only and safe to
// re-run after a partial fetch.
func (s *Store) AppendBars(pair string, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tbl, err := priceTable(pair)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (timestamp, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?)`, tbl))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(normTime(b.Time), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("append bar %s %s: %w", pair, b.Time, err)
		}
	}
	return tx.Commit()
}

// LastBarTime returns the timestamp of the newest stored bar for pair, or
// ErrNotFound when the table is empty or missing.
func (s *Store) LastBarTime(pair string) (time.Time, error) {
	tbl, err := priceTable(pair)
	if err != nil {
		return time.Time{}, err
	}

	var ts sql.NullTime
	err = s.db.QueryRow(fmt.Sprintf(`SELECT max(timestamp) FROM %s`, tbl)).Scan(&ts)
	if err != nil || !ts.Valid {
		return time.Time{}, ErrNotFound
	}
	return ts.Time, nil
}

// Bars returns the pair's bars strictly newer than since, in chronological
// order.
func (s *Store) Bars(pair string, since time.Time) ([]market.Bar, error) {
	tbl, err := priceTable(pair)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT timestamp, open, high, low, close, volume FROM %s
		 WHERE timestamp > ? ORDER BY timestamp ASC`, tbl), normTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		b := market.Bar{Pair: pair}
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// HasBarAt reports whether pair has a bar exactly at ts — the per-pair
// completeness check the driver polls before a batch may proceed.
func (s *Store) HasBarAt(pair string, ts time.Time) (bool, error) {
	tbl, err := priceTable(pair)
	if err != nil {
		return false, err
	}

	var n int
	err = s.db.QueryRow(fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE timestamp = ?`, tbl), normTime(ts)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
