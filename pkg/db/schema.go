package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- Runs table: one row per pipeline run
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP,
    status TEXT NOT NULL DEFAULT 'running',  -- running, done, fatal

    batches INTEGER DEFAULT 0,
    discovered INTEGER DEFAULT 0,
    extracted INTEGER DEFAULT 0,
    dropped INTEGER DEFAULT 0,
    stored INTEGER DEFAULT 0,
    hits INTEGER DEFAULT 0,
    dispatch_failures INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Item events: per-item outcomes within a run
CREATE TABLE IF NOT EXISTS item_events (
    event_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    url TEXT NOT NULL,
    phase TEXT NOT NULL,          -- extract, match, dispatch
    error_type TEXT,
    success BOOLEAN NOT NULL,
    occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_run ON item_events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_url ON item_events(url);
`
