package journal

// Schema creates the decision log, the execution ledger, balance snapshots and
// reasoning token usage. Venue timestamps are epoch milliseconds; locally
// generated ones are DATETIME.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	cycle_id TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL DEFAULT 0,
	price REAL NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	order_id TEXT,
	llm_decision TEXT
);

CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_action ON trade_history(symbol, action, timestamp);

CREATE TABLE IF NOT EXISTS bybit_trade_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exec_id TEXT NOT NULL UNIQUE,
	symbol TEXT NOT NULL,
	order_id TEXT NOT NULL DEFAULT '',
	order_link_id TEXT NOT NULL DEFAULT '',
	side TEXT NOT NULL DEFAULT '',
	order_type TEXT NOT NULL DEFAULT '',
	order_price REAL NOT NULL DEFAULT 0,
	order_qty REAL NOT NULL DEFAULT 0,
	leaves_qty REAL NOT NULL DEFAULT 0,
	exec_price REAL NOT NULL DEFAULT 0,
	exec_qty REAL NOT NULL DEFAULT 0,
	exec_value REAL NOT NULL DEFAULT 0,
	exec_fee REAL NOT NULL DEFAULT 0,
	fee_currency TEXT NOT NULL DEFAULT '',
	fee_rate REAL NOT NULL DEFAULT 0,
	is_maker INTEGER NOT NULL DEFAULT 0,
	exec_type TEXT NOT NULL DEFAULT '',
	stop_order_type TEXT NOT NULL DEFAULT '',
	mark_price REAL NOT NULL DEFAULT 0,
	closed_size REAL NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL DEFAULT 0,
	exec_time INTEGER NOT NULL,
	category TEXT NOT NULL,
	pnl REAL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bybit_trade_history_symbol ON bybit_trade_history(symbol, exec_time);
CREATE INDEX IF NOT EXISTS idx_bybit_trade_history_category ON bybit_trade_history(category, exec_time);

CREATE TABLE IF NOT EXISTS balance_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	account_type TEXT NOT NULL,
	coin TEXT NOT NULL,
	balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_balance_history_time ON balance_history(coin, timestamp);

CREATE TABLE IF NOT EXISTS agent_token_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	model_name TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0
);
`
