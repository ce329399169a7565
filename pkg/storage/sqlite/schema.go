package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    namespace TEXT NOT NULL,
    position  INTEGER NOT NULL,
    id        TEXT NOT NULL,
    content   TEXT NOT NULL,
    meta      TEXT NOT NULL DEFAULT '{}',
    embedding BLOB,
    PRIMARY KEY (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_position ON documents (namespace, position);

CREATE TABLE IF NOT EXISTS contexts (
    namespace  TEXT NOT NULL,
    position   INTEGER NOT NULL,
    id         TEXT NOT NULL,
    name       TEXT NOT NULL,
    content    TEXT NOT NULL,
    meta       TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_contexts_position ON contexts (namespace, position);

CREATE TABLE IF NOT EXISTS context_sequences (
    namespace TEXT PRIMARY KEY,
    next_seq  INTEGER NOT NULL
);
`
