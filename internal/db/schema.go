package db

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL,
    email          TEXT NOT NULL,
    password_hash  TEXT NOT NULL,
    phone          TEXT,
    role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'moderator', 'user')),
    email_verified INTEGER NOT NULL DEFAULT 0,
    active         INTEGER NOT NULL DEFAULT 1,
    last_login_at  DATETIME,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE active = 1;

CREATE TABLE IF NOT EXISTS listings (
    id            INTEGER PRIMARY KEY,
    finder_id     INTEGER NOT NULL REFERENCES users(id),
    title         TEXT NOT NULL,
    category      TEXT NOT NULL CHECK (category IN ('electronics', 'keys', 'clothing', 'documents', 'bags', 'other')),
    location_text TEXT NOT NULL,
    latitude      REAL,
    longitude     REAL,
    found_at      DATETIME NOT NULL,
    description   TEXT,
    image         BLOB,
    image_mime    TEXT,
    status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'resolved', 'suspended', 'deleted')),
    views_count   INTEGER NOT NULL DEFAULT 0,
    moderated     INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_listings_status_created
    ON listings(status, created_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
    id                INTEGER PRIMARY KEY,
    owner_id          INTEGER NOT NULL REFERENCES users(id),
    title             TEXT NOT NULL,
    query_text        TEXT,
    category          TEXT,
    location_text     TEXT,
    latitude          REAL,
    longitude         REAL,
    radius_km         REAL,
    date_from         DATETIME,
    date_to           DATETIME,
    channels          TEXT NOT NULL DEFAULT 'push',
    active            INTEGER NOT NULL DEFAULT 1,
    last_triggered_at DATETIME,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(active);

CREATE TABLE IF NOT EXISTS threads (
    id                 INTEGER PRIMARY KEY,
    listing_id         INTEGER NOT NULL REFERENCES listings(id),
    owner_id           INTEGER NOT NULL REFERENCES users(id),
    finder_id          INTEGER NOT NULL REFERENCES users(id),
    status             TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'closed')),
    approved_by_owner  INTEGER NOT NULL DEFAULT 0,
    approved_by_finder INTEGER NOT NULL DEFAULT 0,
    last_message_at    DATETIME,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (listing_id, owner_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY,
    thread_id  INTEGER NOT NULL REFERENCES threads(id),
    sender_id  INTEGER NOT NULL REFERENCES users(id),
    body       TEXT NOT NULL,
    is_read    INTEGER NOT NULL DEFAULT 0,
    read_at    DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_thread_created
    ON messages(thread_id, created_at);

CREATE TABLE IF NOT EXISTS confirmations (
    id         INTEGER PRIMARY KEY,
    thread_id  INTEGER NOT NULL UNIQUE REFERENCES threads(id),
    code       TEXT NOT NULL,
    expires_at DATETIME NOT NULL,
    used_at    DATETIME,
    used_by    INTEGER REFERENCES users(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_confirmations_code_live
    ON confirmations(code) WHERE used_at IS NULL;

CREATE TABLE IF NOT EXISTS moderation_flags (
    id          INTEGER PRIMARY KEY,
    entity_type TEXT NOT NULL CHECK (entity_type IN ('listing', 'message')),
    entity_id   INTEGER NOT NULL,
    reason      TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'reviewed', 'dismissed')),
    created_by  INTEGER NOT NULL REFERENCES users(id),
    reviewed_by INTEGER REFERENCES users(id),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    reviewed_at DATETIME
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`
