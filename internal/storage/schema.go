package storage

// Timestamps are unix milliseconds.
const schema = `
-- The 'items' table stores each note together with its review state.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    mask BLOB,
    review_stage INTEGER NOT NULL DEFAULT 0,
    next_review_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    deleted_at INTEGER,
    source_id INTEGER,
    content_hash TEXT,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_items_source_hash ON items(source_id, content_hash);

-- The 'study_logs' table is the append-only record of completed reviews.
CREATE TABLE IF NOT EXISTS study_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_study_logs_reviewed_at ON study_logs(reviewed_at);

-- The 'sources' table tracks where imported notes come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned INTEGER
);
`
