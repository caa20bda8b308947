package store

import (
	"database/sql"
	"time"
)

// Fill is one exchange trade record, kept for commission reconciliation.
// The fill log mirrors the exchange's trade history, not the ledger.
type Fill struct {
	Time            time.Time
	Pair            string
	TradeID         int64
	OrderID         int64
	Price           float64
	Qty             float64
	QuoteQty        float64
	Commission      float64
	CommissionAsset string
	IsBuyer         bool
	IsMaker         bool
}

// ReplaceFillsSince deletes the pair's fills on or after since and appends
// the given rows. The exchange returns a trailing window of trade history,
// so the newest day is always rewritten wholesale rather than diffed.
func (s *Store) ReplaceFillsSince(pair string, since time.Time, fills []Fill) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM fills WHERE pair = ? AND timestamp >= ?`, pair, normTime(since)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO fills
		 (timestamp, pair, trade_id, order_id, price, qty, quote_qty,
		  commission, commission_asset, is_buyer, is_maker)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fills {
		if f.Time.Before(since) {
			continue
		}
		if _, err := stmt.Exec(normTime(f.Time), pair, f.TradeID, f.OrderID,
			f.Price, f.Qty, f.QuoteQty, f.Commission, f.CommissionAsset,
			f.IsBuyer, f.IsMaker); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LastFillTime returns the newest stored fill timestamp for any pair, or
// ErrNotFound on an empty log.
func (s *Store) LastFillTime() (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRow(`SELECT max(timestamp) FROM fills`).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, ErrNotFound
	}
	return ts.Time, nil
}
