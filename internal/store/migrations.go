package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS alerted_notifications (
	notification_id TEXT PRIMARY KEY,
	alerted_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerted_at ON alerted_notifications(alerted_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_cache (
	user_id         TEXT NOT NULL,
	notification_id TEXT NOT NULL,
	position        INTEGER NOT NULL,
	is_read         INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	payload         TEXT NOT NULL,
	cached_at       INTEGER NOT NULL,
	PRIMARY KEY (user_id, notification_id)
);

CREATE INDEX IF NOT EXISTS idx_notification_cache_user_position
	ON notification_cache(user_id, position);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
