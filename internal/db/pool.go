// Package db opens the collaborator store's backing database. SQLite is the
// default for a single-machine daemon; Postgres is available for shared
// deployments. Either way callers get a Pool of sqlx connections.
package db

import "github.com/jmoiron/sqlx"

// Pool provides separate read and write database connections.
//
// For SQLite with WAL mode this enables concurrent reads while serializing
// writes through a single connection: the writer pool uses MaxOpenConns(1) to
// avoid SQLITE_BUSY under write contention, while the reader pool allows
// multiple concurrent connections for SELECT queries.
//
// For PostgreSQL both Writer and Reader return the same *sqlx.DB since the
// driver pools connections internally.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Writer returns the pool used for INSERT, UPDATE, DELETE, and transactions.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the pool used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// DriverName reports the underlying sqlx driver ("sqlite3" or "pgx").
func (p *Pool) DriverName() string { return p.writer.DriverName() }

// Close closes both pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	// The pools share one *sqlx.DB for Postgres and in-memory SQLite.
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
