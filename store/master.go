package store

import (
	"database/sql"
	"fmt"

	"github.com/rustyeddy/spotbot/strategy"
)

// StrategyRow is one (pair, strategy) combination the bot trades, straight
// from the master table.
type StrategyRow struct {
	Pair         string
	Params       strategy.Params
	MinOrderSize float64
}

// Strategies returns every configured (pair, strategy) combination.
func (s *Store) Strategies() ([]StrategyRow, error) {
	rows, err := s.db.Query(`SELECT pair, ema, cut_loss, min_txn_amt FROM master ORDER BY pair, ema`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var r StrategyRow
		if err := rows.Scan(&r.Pair, &r.Params.Span, &r.Params.CutLoss, &r.MinOrderSize); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountStrategies is the total number of configured strategy slots — the
// denominator of the entry-path capital split.
func (s *Store) CountStrategies() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM master`).Scan(&n)
	return n, err
}

// Pairs returns the distinct pairs present in the master table.
func (s *Store) Pairs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT pair FROM master ORDER BY pair`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MinOrderSize returns the exchange minimum order size configured for pair.
func (s *Store) MinOrderSize(pair string) (float64, error) {
	var m float64
	err := s.db.QueryRow(`SELECT min_txn_amt FROM master WHERE pair = ? LIMIT 1`, pair).Scan(&m)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("min order size for %s: %w", pair, ErrNotFound)
	}
	return m, err
}

// SeedMaster inserts or replaces master rows. Used by the CLI to bootstrap
// a fresh database from the YAML config.
func (s *Store) SeedMaster(rows []StrategyRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO master (pair, ema, cut_loss, min_txn_amt) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if err := r.Params.Validate(); err != nil {
			return fmt.Errorf("master row %s: %w", r.Pair, err)
		}
		if _, err := stmt.Exec(r.Pair, r.Params.Span, r.Params.CutLoss, r.MinOrderSize); err != nil {
			return err
		}
	}
	return tx.Commit()
}
