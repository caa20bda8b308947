// Package store is the single source of truth for everything the bot
// persists: price history per pair, the master strategy table, the signal
// log, the transaction ledger and the exchange fill log. It is a thin
// SQLite layer — plain selects, inserts and updates, no migrations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned by lookups that legitimately may have no row.
	ErrNotFound = errors.New("store: not found")

	// ErrNoOpenLot is a ledger integrity violation: an exit was recorded
	// for a (pair, strategy) with no open lot.
	ErrNoOpenLot = errors.New("store: no open lot")

	// ErrLotAlreadyOpen is a ledger integrity violation: an entry was
	// recorded for a (pair, strategy) that already holds an open lot.
	ErrLotAlreadyOpen = errors.New("store: lot already open")
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the fixed schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var pairNameRe = regexp.MustCompile(`^[A-Z0-9]+$`)

// priceTable maps a pair to its bar table name. Pair names are interpolated
// into SQL, so anything outside [A-Z0-9] is rejected.
func priceTable(pair string) (string, error) {
	if !pairNameRe.MatchString(pair) {
		return "", fmt.Errorf("store: invalid pair name %q", pair)
	}
	return "px_" + pair, nil
}

// EnsurePair creates the bar table for pair if it does not exist yet.
func (s *Store) EnsurePair(pair string) error {
	tbl, err := priceTable(pair)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(fmt.Sprintf(priceSchema, tbl))
	return err
}

// normTime pins every persisted timestamp to UTC so equality predicates
// behave regardless of which zone a caller computed the time in.
func normTime(t time.Time) time.Time {
	return t.UTC()
}
