package engine

import (
	"sync"
	"time"

	"github.com/tomyedwab/litehost/sqlerr"

	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultBusyTimeout bounds how long the engine waits on a locked database
// before surfacing a timeout-class error.
const DefaultBusyTimeout = 5 * time.Second

// Options configures one connection.
type Options struct {
	// Path is the database target. Empty or ":memory:" opens an in-memory
	// session; anything else opens (creating if needed) that file.
	Path string

	// ReadOnly opens the target without write access.
	ReadOnly bool

	// NoForeignKeys skips enabling foreign-key enforcement at open.
	NoForeignKeys bool

	// BusyTimeout overrides DefaultBusyTimeout when positive.
	BusyTimeout time.Duration

	// Pragmas are extra pragma bodies (e.g. "journal_mode = WAL") executed in
	// order after the built-in configuration.
	Pragmas []string
}

// Engine is the explicit engine instance object. It tracks the connections it
// has opened so Shutdown can release anything still live.
type Engine struct {
	mu       sync.Mutex
	shutdown bool
	conns    map[*Conn]struct{}
}

// New creates an engine instance. Connections must be opened through it.
func New() *Engine {
	return &Engine{conns: make(map[*Conn]struct{})}
}

// Open establishes a new connection per opts.
func (e *Engine) Open(opts Options) (*Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil, &sqlerr.OpenError{Target: opts.Path, Message: "engine is shut down"}
	}
	conn, err := openConn(e, opts)
	if err != nil {
		return nil, err
	}
	e.conns[conn] = struct{}{}
	return conn, nil
}

// Shutdown closes every connection still open and refuses further opens.
// Idempotent.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	live := make([]*Conn, 0, len(e.conns))
	for c := range e.conns {
		live = append(live, c)
	}
	e.mu.Unlock()

	var first error
	for _, c := range live {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (e *Engine) remove(c *Conn) {
	e.mu.Lock()
	delete(e.conns, c)
	e.mu.Unlock()
}
