package txn

// Package txn layers nested-transaction semantics over a connection that
// natively supports one flat transaction: depth 1 maps to BEGIN/COMMIT/
// ROLLBACK, every deeper frame maps to savepoints. A coordinator holds the
// mutual-exclusion gate from the outermost BEGIN until depth returns to zero
// so two logical callers cannot interleave transaction control against the
// same connection.

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tomyedwab/litehost/sqlerr"
)

// Execer runs transaction-control SQL against one connection.
type Execer interface {
	Exec(sql string) error
}

// Mode selects the BEGIN variant used for the outermost frame. Nested frames
// are savepoints and carry the mode only as bookkeeping.
type Mode int

const (
	Default Mode = iota
	Deferred
	Immediate
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Deferred:
		return "deferred"
	case Immediate:
		return "immediate"
	case Exclusive:
		return "exclusive"
	default:
		return "default"
	}
}

// ParseMode maps a mode name onto its Mode, any case. The empty string is
// the default mode.
func ParseMode(name string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default, true
	case "deferred":
		return Deferred, true
	case "immediate":
		return Immediate, true
	case "exclusive":
		return Exclusive, true
	}
	return Default, false
}

func (m Mode) beginSQL() string {
	switch m {
	case Deferred:
		return "BEGIN DEFERRED"
	case Immediate:
		return "BEGIN IMMEDIATE"
	case Exclusive:
		return "BEGIN EXCLUSIVE"
	default:
		return "BEGIN"
	}
}

// Frame is a position in the nested-transaction stack, captured by value when
// the frame is opened so a commit or rollback always targets the depth it was
// issued for, whatever happened around it since.
type Frame struct {
	Depth int
	Mode  Mode
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

// Options is the capability descriptor for the connection under coordination.
type Options struct {
	SupportsTransactions bool
	SupportsSavepoints   bool
}

// DefaultOptions enables both transactions and savepoints.
func DefaultOptions() Options {
	return Options{SupportsTransactions: true, SupportsSavepoints: true}
}

// Coordinator is the per-connection transaction state machine. Its state is
// the current depth: 0 means no transaction.
type Coordinator struct {
	ex   Execer
	opts Options

	// gateMu is held from the outermost BEGIN until depth returns to 0.
	gateMu sync.Mutex

	// stateMu guards depth so Depth never blocks behind the gate.
	stateMu sync.Mutex
	depth   int
}

// New builds a coordinator over ex with the given capabilities.
func New(ex Execer, opts Options) *Coordinator {
	return &Coordinator{ex: ex, opts: opts}
}

// Depth reports the current transaction depth.
func (c *Coordinator) Depth() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.depth
}

// Begin opens a new frame: BEGIN when no transaction is active, a savepoint
// when one is. The returned frame is bound to the depth it opened.
func (c *Coordinator) Begin(mode Mode) (Frame, error) {
	if !c.opts.SupportsTransactions {
		return Frame{}, &sqlerr.Error{Message: "transactions are not supported on this connection"}
	}

	c.stateMu.Lock()
	if c.depth > 0 {
		defer c.stateMu.Unlock()
		if !c.opts.SupportsSavepoints {
			return Frame{}, &sqlerr.Error{Message: "nested transactions are not supported on this connection"}
		}
		name := savepointName(c.depth + 1)
		if err := c.ex.Exec("SAVEPOINT " + name); err != nil {
			return Frame{}, err
		}
		c.depth++
		return Frame{Depth: c.depth, Mode: mode}, nil
	}
	c.stateMu.Unlock()

	// With the gate held the depth is necessarily 0: anyone else raising it
	// from 0 would need the gate, and it only returns to 0 when the holder
	// commits, rolls back or disposes.
	c.gateMu.Lock()
	if err := c.ex.Exec(mode.beginSQL()); err != nil {
		c.gateMu.Unlock()
		return Frame{}, err
	}
	c.stateMu.Lock()
	c.depth = 1
	c.stateMu.Unlock()
	return Frame{Depth: 1, Mode: mode}, nil
}

// Commit closes the given frame: COMMIT for the outermost, a savepoint
// release for deeper ones. Committing with no transaction open is a benign
// no-op; committing any frame other than the innermost is rejected before any
// engine command runs.
func (c *Coordinator) Commit(frame Frame) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.depth == 0 {
		log.Printf("txn: commit of frame %d with no transaction open", frame.Depth)
		return nil
	}
	if frame.Depth != c.depth {
		return &sqlerr.Error{Message: fmt.Sprintf(
			"out-of-order commit: frame is at depth %d but the innermost open frame is %d", frame.Depth, c.depth)}
	}

	if c.depth == 1 {
		if err := c.ex.Exec("COMMIT"); err != nil {
			if !sqlerr.IsNoActiveTransaction(err) {
				return err
			}
			log.Printf("txn: commit found no active transaction, treating as already committed")
		}
		c.depth = 0
		c.gateMu.Unlock()
		return nil
	}

	name := savepointName(c.depth)
	if err := c.ex.Exec("RELEASE SAVEPOINT " + name); err != nil {
		if !sqlerr.IsMissingSavepoint(err) && !sqlerr.IsNoActiveTransaction(err) {
			return err
		}
		log.Printf("txn: release of %s found nothing to release, continuing", name)
	}
	c.depth--
	return nil
}

// Rollback unwinds the given frame: ROLLBACK for the outermost, rollback-to
// plus release for deeper ones. The same benign tolerances and out-of-order
// guard as Commit apply.
func (c *Coordinator) Rollback(frame Frame) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.depth == 0 {
		log.Printf("txn: rollback of frame %d with no transaction open", frame.Depth)
		return nil
	}
	if frame.Depth != c.depth {
		return &sqlerr.Error{Message: fmt.Sprintf(
			"out-of-order rollback: frame is at depth %d but the innermost open frame is %d", frame.Depth, c.depth)}
	}

	if c.depth == 1 {
		if err := c.ex.Exec("ROLLBACK"); err != nil {
			if !sqlerr.IsNoActiveTransaction(err) {
				return err
			}
			log.Printf("txn: rollback found no active transaction, treating as already rolled back")
		}
		c.depth = 0
		c.gateMu.Unlock()
		return nil
	}

	name := savepointName(c.depth)
	if err := c.ex.Exec("ROLLBACK TO SAVEPOINT " + name + "; RELEASE SAVEPOINT " + name); err != nil {
		if !sqlerr.IsMissingSavepoint(err) && !sqlerr.IsNoActiveTransaction(err) {
			return err
		}
		log.Printf("txn: rollback of %s found nothing to unwind, continuing", name)
	}
	c.depth--
	return nil
}

// Dispose forces an unconditional rollback of whatever is open, ignoring
// engine errors, so a dying connection never leaks a transaction. Idempotent.
func (c *Coordinator) Dispose() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.depth == 0 {
		return
	}
	c.ex.Exec("ROLLBACK")
	c.depth = 0
	c.gateMu.Unlock()
}
