package store

// Schema per driver. SQLite stores timestamps as RFC3339 TEXT (the TIMESTAMP
// declared type makes the driver scan them back into time.Time); Postgres
// uses native timestamptz.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	folder TEXT NOT NULL,
	script_path TEXT NOT NULL DEFAULT '',
	origin_branch TEXT NOT NULL DEFAULT 'main',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	cwd TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	worktree_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'busy',
	base_commit TEXT NOT NULL DEFAULT '',
	claude_session_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS inbox_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	read_at TIMESTAMP,
	first_read_at TIMESTAMP,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS diff_comments (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	line_number INTEGER,
	line_type TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	parent_id TEXT NOT NULL DEFAULT '',
	resolution_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_inbox_messages_session_id ON inbox_messages(session_id);
CREATE INDEX IF NOT EXISTS idx_diff_comments_session_id ON diff_comments(session_id);
CREATE INDEX IF NOT EXISTS idx_diff_comments_parent_id ON diff_comments(parent_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	folder TEXT NOT NULL,
	script_path TEXT NOT NULL DEFAULT '',
	origin_branch TEXT NOT NULL DEFAULT 'main',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	cwd TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	worktree_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'busy',
	base_commit TEXT NOT NULL DEFAULT '',
	claude_session_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS inbox_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	read_at TIMESTAMPTZ,
	first_read_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS diff_comments (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	line_number INTEGER,
	line_type TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	parent_id TEXT NOT NULL DEFAULT '',
	resolution_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inbox_messages_session_id ON inbox_messages(session_id);
CREATE INDEX IF NOT EXISTS idx_diff_comments_session_id ON diff_comments(session_id);
CREATE INDEX IF NOT EXISTS idx_diff_comments_parent_id ON diff_comments(parent_id);
`
