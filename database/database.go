package database

import (
	"github.com/tomyedwab/litehost/engine"
	"github.com/tomyedwab/litehost/txn"
)

// Row is one result row in object mode, keyed by column name. When a query
// yields duplicate column names the last one wins, matching the engine's own
// behavior of exposing only the final same-named column.
type Row map[string]any

// Result reports the outcome of a mutating statement.
type Result struct {
	Changes         int64
	LastInsertRowID int64
}

// DB is the synchronous database handle: one engine connection plus the
// transaction coordinator layered over it.
type DB struct {
	conn  *engine.Conn
	coord *txn.Coordinator
}

// Open establishes a handle over a new connection from eng.
func Open(eng *engine.Engine, opts engine.Options) (*DB, error) {
	conn, err := eng.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, coord: txn.New(conn, txn.DefaultOptions())}, nil
}

// Conn exposes the underlying connection for layers that build on the handle.
func (d *DB) Conn() *engine.Conn { return d.conn }

// Coordinator exposes the transaction coordinator for layers that manage
// frames themselves.
func (d *DB) Coordinator() *txn.Coordinator { return d.coord }

// Exec runs a raw SQL script: one or more statements, no parameters, no
// result rows.
func (d *DB) Exec(script string) error {
	return d.conn.Exec(script)
}

// Pragma runs a pragma and returns its result rows in object mode, e.g.
// Pragma("table_info(people)").
func (d *DB) Pragma(text string) ([]Row, error) {
	stmt, err := d.Prepare("PRAGMA " + text)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	vals, err := stmt.All()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(vals))
	for i, v := range vals {
		rows[i] = v.(Row)
	}
	return rows, nil
}

// PragmaSimple runs a pragma and returns the first column of its first row,
// nil when the pragma yields no rows.
func (d *DB) PragmaSimple(text string) (any, error) {
	stmt, err := d.Prepare("PRAGMA " + text)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	return stmt.Pluck().Get()
}

// Transaction runs fn inside a transaction opened with plain BEGIN. See
// TransactionMode.
func (d *DB) Transaction(fn func() error) error {
	return d.TransactionMode(txn.Default, fn)
}

// TransactionMode runs fn inside a transaction opened with the given mode.
// A nested call becomes a savepoint frame, so inner work is still discarded
// when an outer transaction rolls back. The frame is committed when fn
// returns nil and rolled back when it returns an error or panics (the panic
// resumes after the rollback).
func (d *DB) TransactionMode(mode txn.Mode, fn func() error) error {
	frame, err := d.coord.Begin(mode)
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if !done {
			d.coord.Rollback(frame)
		}
	}()

	if err := fn(); err != nil {
		done = true
		d.coord.Rollback(frame)
		return err
	}

	done = true
	return d.coord.Commit(frame)
}

// Depth reports the current transaction nesting depth, 0 when none is open.
func (d *DB) Depth() int {
	return d.coord.Depth()
}

// Close rolls back any open transaction, finalizes outstanding statements and
// releases the connection. Safe to call more than once.
func (d *DB) Close() error {
	d.coord.Dispose()
	return d.conn.Close()
}
