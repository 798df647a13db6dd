package sqlite

// schemaV1 is the baseline schema, applied with CREATE TABLE IF NOT EXISTS
// so it is safe to run against an existing database (the teacher's own
// store.go does the same: apply the baseline unconditionally, then run
// the numbered migrations for everything after it).
const schemaV1 = `
CREATE TABLE IF NOT EXISTS issues (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	body                TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	issue_type          TEXT NOT NULL,
	priority            INTEGER NOT NULL,
	milestone_id        TEXT,
	epic_id             TEXT,
	design              TEXT NOT NULL DEFAULT '',
	acceptance_criteria TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	tainted             INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	closed_at           DATETIME
);

CREATE TABLE IF NOT EXISTS labels (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	label    TEXT NOT NULL,
	PRIMARY KEY (issue_id, label)
);

CREATE TABLE IF NOT EXISTS assignees (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	assignee TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (issue_id, assignee)
);

CREATE TABLE IF NOT EXISTS external_refs (
	issue_id    TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	upstream    TEXT NOT NULL,
	upstream_id TEXT NOT NULL,
	PRIMARY KEY (issue_id, upstream)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_external_refs_upstream_id
	ON external_refs(upstream, upstream_id);

CREATE TABLE IF NOT EXISTS dependency_edges (
	from_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	to_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	kind    TEXT NOT NULL,
	PRIMARY KEY (from_id, to_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_dependency_edges_to ON dependency_edges(to_id, kind);

CREATE TABLE IF NOT EXISTS milestones (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	due_on      DATETIME,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS milestone_external_refs (
	milestone_id TEXT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
	upstream     TEXT NOT NULL,
	upstream_id  TEXT NOT NULL,
	PRIMARY KEY (milestone_id, upstream)
);

CREATE TABLE IF NOT EXISTS comment_mappings (
	issue_id            TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	upstream            TEXT NOT NULL,
	upstream_comment_id TEXT NOT NULL,
	PRIMARY KEY (issue_id, upstream, upstream_comment_id)
);

CREATE TABLE IF NOT EXISTS sync_events (
	sequence        INTEGER PRIMARY KEY AUTOINCREMENT,
	upstream        TEXT NOT NULL,
	direction       TEXT NOT NULL,
	kind            TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	payload_hash    TEXT NOT NULL DEFAULT '',
	outcome         TEXT NOT NULL,
	at              DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_events_idempotency
	ON sync_events(upstream, idempotency_key)
	WHERE idempotency_key != '';
CREATE INDEX IF NOT EXISTS idx_sync_events_pending ON sync_events(outcome);
`
