package repository

// Schema definitions for the run-artifact store.
// Compatible with both SQLite and PostgreSQL.

const schemaFullWatchlist = `
CREATE TABLE IF NOT EXISTS full_watchlist (
    run_date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    qualified INTEGER NOT NULL DEFAULT 0,
    score REAL NOT NULL DEFAULT 0,
    tier TEXT,
    rank INTEGER NOT NULL DEFAULT 0,
    row TEXT NOT NULL,
    PRIMARY KEY (run_date, symbol)
);

CREATE INDEX IF NOT EXISTS idx_full_watchlist_date ON full_watchlist(run_date);
CREATE INDEX IF NOT EXISTS idx_full_watchlist_score ON full_watchlist(run_date, score);
`

const schemaTopN = `
CREATE TABLE IF NOT EXISTS top_n (
    run_date TEXT PRIMARY KEY,
    generated_at TEXT NOT NULL,
    payload TEXT NOT NULL
);
`

const schemaWatchlist = `
CREATE TABLE IF NOT EXISTS watchlist (
    run_date TEXT NOT NULL,
    rank INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    tier TEXT,
    gap_pct REAL NOT NULL DEFAULT 0,
    rel_volume REAL NOT NULL DEFAULT 0,
    tags TEXT,
    PRIMARY KEY (run_date, rank)
);

CREATE INDEX IF NOT EXISTS idx_watchlist_date ON watchlist(run_date);
`

const schemaRunSummary = `
CREATE TABLE IF NOT EXISTS run_summary (
    run_date TEXT PRIMARY KEY,
    generated_at TEXT NOT NULL,
    payload TEXT NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFullWatchlist,
		schemaTopN,
		schemaWatchlist,
		schemaRunSummary,
	}
}
