package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB is an offline snapshot archive of the content graph in SQLite
type DB struct {
	conn *sql.DB
	Path string
}

// OpenDB opens path with WAL mode and foreign keys enabled and makes sure the schema exists.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// foreign_keys is per connection; keep a single one so the pragma always applies
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	d := &DB{conn: conn, Path: path}
	if err := d.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	quality_score  INTEGER,
	usage_count    INTEGER,
	targeting      TEXT NOT NULL DEFAULT '{}',
	owner          TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	last_edited_at INTEGER NOT NULL,
	last_edited_by TEXT NOT NULL DEFAULT '',
	ordinal        INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS edges (
	parent_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	child_id  TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	PRIMARY KEY (parent_id, child_id)
);
CREATE INDEX IF NOT EXISTS edges_child ON edges(child_id);
`

const ftsSchema = `CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(id UNINDEXED, name, description)`

// EnsureSchema creates the archive tables. The items_fts full-text table is optional: when
// the SQLite build lacks FTS5 the archive still works and SearchItems returns nothing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := d.ensureColumn(ctx, "items", "ordinal", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if _, err := d.conn.ExecContext(ctx, ftsSchema); err != nil && !ftsMissing(err) {
		return fmt.Errorf("creating search index: %w", err)
	}
	return nil
}

// ensureColumn adds a column that archives written before it existed lack.
func (d *DB) ensureColumn(ctx context.Context, table, column, decl string) error {
	rows, err := d.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspecting %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	rows.Close()
	if _, err := d.conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}
