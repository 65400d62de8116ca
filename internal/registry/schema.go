package registry

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    job_id TEXT,
    dag_id TEXT,
    state TEXT NOT NULL,
    progress_percent REAL NOT NULL DEFAULT 0,
    progress_label TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_item_id ON runs (item_id, created_at);
`
