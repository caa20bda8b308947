package store

// Schema creates the fixed tables. Price bars live in one table per pair,
// created on demand by EnsurePair.
const Schema = `
CREATE TABLE IF NOT EXISTS master (
	pair TEXT NOT NULL,
	ema INTEGER NOT NULL,
	cut_loss REAL NOT NULL,
	min_txn_amt REAL NOT NULL,
	PRIMARY KEY (pair, ema, cut_loss)
);

CREATE TABLE IF NOT EXISTS signals (
	timestamp DATETIME NOT NULL,
	pair TEXT NOT NULL,
	strategy TEXT NOT NULL,
	action TEXT NOT NULL,
	buy_price REAL NOT NULL,
	sell_price REAL
);

CREATE INDEX IF NOT EXISTS idx_signals_pair_strategy ON signals(pair, strategy, timestamp);
CREATE INDEX IF NOT EXISTS idx_signals_timestamp ON signals(timestamp);

CREATE TABLE IF NOT EXISTS ledger (
	timestamp DATETIME NOT NULL,
	timestamp_txn DATETIME NOT NULL,
	order_id TEXT NOT NULL,
	pair TEXT NOT NULL,
	strategy TEXT NOT NULL,
	action TEXT NOT NULL,
	buy_price REAL NOT NULL,
	sell_price REAL,
	qty REAL NOT NULL,
	quote_qty REAL NOT NULL,
	commission REAL,
	commission_asset TEXT,
	quote_commission REAL,
	is_sold INTEGER NOT NULL,
	pnl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_open ON ledger(pair, strategy, is_sold);
CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON ledger(timestamp);

CREATE TABLE IF NOT EXISTS fills (
	timestamp DATETIME NOT NULL,
	pair TEXT NOT NULL,
	trade_id INTEGER NOT NULL,
	order_id INTEGER NOT NULL,
	price REAL NOT NULL,
	qty REAL NOT NULL,
	quote_qty REAL NOT NULL,
	commission REAL NOT NULL,
	commission_asset TEXT NOT NULL,
	is_buyer INTEGER NOT NULL,
	is_maker INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_pair_time ON fills(pair, timestamp);
`

// priceSchema is the per-pair bar table, instantiated by EnsurePair.
const priceSchema = `
CREATE TABLE IF NOT EXISTS %s (
	timestamp DATETIME NOT NULL PRIMARY KEY,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL
);`
