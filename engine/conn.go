package engine

import (
	"sync"

	"github.com/ncruces/go-sqlite3"

	"github.com/tomyedwab/litehost/sqlerr"
)

// Conn is one open engine session. All native calls on it are serialized by
// its mutex; statements register themselves so Close can finalize whatever is
// still outstanding.
type Conn struct {
	eng      *Engine
	db       *sqlite3.Conn
	target   string
	readOnly bool

	mu     sync.Mutex
	stmts  map[*Stmt]struct{}
	closed bool
}

func openConn(e *Engine, opts Options) (*Conn, error) {
	target := opts.Path
	flags := sqlite3.OPEN_READWRITE | sqlite3.OPEN_CREATE | sqlite3.OPEN_URI
	if opts.ReadOnly {
		flags = sqlite3.OPEN_READONLY | sqlite3.OPEN_URI
	}
	if target == "" || target == ":memory:" {
		target = ":memory:"
		flags = sqlite3.OPEN_READWRITE | sqlite3.OPEN_CREATE | sqlite3.OPEN_MEMORY
	}

	db, err := sqlite3.OpenFlags(target, flags)
	if err != nil {
		return nil, sqlerr.Open(err, target)
	}

	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	if err := db.BusyTimeout(timeout); err != nil {
		db.Close()
		return nil, sqlerr.Open(err, target)
	}
	if !opts.NoForeignKeys {
		if err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, sqlerr.Open(err, target)
		}
	}
	for _, p := range opts.Pragmas {
		if err := db.Exec("PRAGMA " + p); err != nil {
			db.Close()
			return nil, sqlerr.Open(err, target)
		}
	}

	return &Conn{
		eng:      e,
		db:       db,
		target:   target,
		readOnly: opts.ReadOnly,
		stmts:    make(map[*Stmt]struct{}),
	}, nil
}

// Target reports the path the connection was opened with (":memory:" for
// in-memory sessions).
func (c *Conn) Target() string { return c.target }

// ReadOnly reports whether the connection was opened read-only.
func (c *Conn) ReadOnly() bool { return c.readOnly }

// Exec runs a raw SQL script (one or more statements, no parameters).
func (c *Conn) Exec(script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &sqlerr.Error{Message: "connection is closed"}
	}
	return sqlerr.Exec(c.db.Exec(script), script)
}

// Pragma runs a single pragma body, e.g. Pragma("journal_mode = WAL").
func (c *Conn) Pragma(body string) error {
	return c.Exec("PRAGMA " + body)
}

// Changes reports the number of rows affected by the most recent statement.
// Connection-scoped: read it before anything else executes on the connection.
func (c *Conn) Changes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.db.Changes()
}

// LastInsertRowID reports the rowid of the most recent successful insert on
// the connection.
func (c *Conn) LastInsertRowID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.db.LastInsertRowID()
}

// Closed reports whether Close has completed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close finalizes outstanding statements, forces rollback of any open
// transaction, releases the native handle and marks the connection closed.
// Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for s := range c.stmts {
		s.finalizeLocked()
	}
	c.stmts = nil

	// A still-open transaction must not leak past the connection. The engine
	// complains when none is active; that case is the normal one.
	c.db.Exec("ROLLBACK")

	err := c.db.Close()
	c.mu.Unlock()

	c.eng.remove(c)
	return sqlerr.Generic(err)
}
