package database

import (
	"github.com/tomyedwab/litehost/engine"
	"github.com/tomyedwab/litehost/sqlerr"
)

// Column describes one result column of a prepared statement.
type Column struct {
	Name     string
	DeclType string
}

// Statement wraps a prepared engine statement with the execution modes of
// the synchronous handle: object/raw/pluck row shapes, the integer read
// policy and optional permanent bindings. Each Prepare call yields an
// independent handle; flags on one never affect another, even for the same
// SQL text.
type Statement struct {
	db   *DB
	stmt *engine.Stmt

	pluck    bool
	raw      bool
	safeInts bool
	bound    bool
	busy     bool
}

// Prepare compiles a single SQL statement against the handle's connection.
func (d *DB) Prepare(sql string) (*Statement, error) {
	stmt, err := d.conn.Prepare(sql)
	if err != nil {
		return nil, err
	}
	return &Statement{db: d, stmt: stmt}, nil
}

// Pluck switches the statement between plucked scalars (first column of each
// row) and full rows. No argument means on. Pluck takes precedence over Raw
// when both are set.
func (s *Statement) Pluck(on ...bool) *Statement {
	s.pluck = len(on) == 0 || on[0]
	return s
}

// Raw switches the statement between positional []any rows and object rows.
func (s *Statement) Raw(on ...bool) *Statement {
	s.raw = len(on) == 0 || on[0]
	return s
}

// SafeIntegers controls the integer read policy: on, every INTEGER column
// reads as int64; off, magnitudes beyond 2^53 degrade to float64.
func (s *Statement) SafeIntegers(on ...bool) *Statement {
	s.safeInts = len(on) == 0 || on[0]
	return s
}

// Bind fixes the statement's parameters permanently. Executions after a Bind
// must not pass arguments of their own, and a second Bind is an error.
func (s *Statement) Bind(args ...any) (*Statement, error) {
	if s.busy {
		return nil, s.busyErr()
	}
	if s.bound {
		return nil, &sqlerr.BindError{SQL: s.stmt.SQL(), Message: "statement parameters are already permanently bound"}
	}
	if err := s.stmt.Bind(args); err != nil {
		return nil, err
	}
	s.bound = true
	return s, nil
}

// prepareExecution applies args (or the permanent bindings) and rewinds the
// statement so a fresh pass can begin.
func (s *Statement) prepareExecution(args []any) error {
	if s.busy {
		return s.busyErr()
	}
	if s.bound {
		if len(args) > 0 {
			return &sqlerr.BindError{SQL: s.stmt.SQL(), Message: "statement parameters are permanently bound"}
		}
		return s.stmt.Reset()
	}
	return s.stmt.Bind(args)
}

func (s *Statement) busyErr() error {
	return &sqlerr.Error{Message: "statement is busy with an open row iterator: " + s.stmt.SQL()}
}

// Run executes the statement for its side effects and reports the connection
// counters, read immediately after the step. Statements that happen to
// produce rows are fine; the first row is discarded.
func (s *Statement) Run(args ...any) (Result, error) {
	if err := s.prepareExecution(args); err != nil {
		return Result{}, err
	}
	if _, err := s.stmt.Step(); err != nil {
		return Result{}, err
	}
	res := Result{
		Changes:         s.db.conn.Changes(),
		LastInsertRowID: s.db.conn.LastInsertRowID(),
	}
	if err := s.stmt.Reset(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Get executes and materializes the first row, nil with no error when the
// query yields none.
func (s *Statement) Get(args ...any) (any, error) {
	if err := s.prepareExecution(args); err != nil {
		return nil, err
	}
	row, err := s.stmt.Step()
	if err != nil {
		return nil, err
	}
	if !row {
		return nil, nil
	}
	v := s.materialize(s.pluck, s.raw, s.safeInts)
	if err := s.stmt.Reset(); err != nil {
		return nil, err
	}
	return v, nil
}

// All executes and materializes every row into a slice whose element shape
// follows the active mode.
func (s *Statement) All(args ...any) ([]any, error) {
	if err := s.prepareExecution(args); err != nil {
		return nil, err
	}
	out := []any{}
	for {
		row, err := s.stmt.Step()
		if err != nil {
			return nil, err
		}
		if !row {
			break
		}
		out = append(out, s.materialize(s.pluck, s.raw, s.safeInts))
	}
	if err := s.stmt.Reset(); err != nil {
		return nil, err
	}
	return out, nil
}

// Iterate executes and returns a lazy cursor over the rows. The statement
// reports busy until the cursor is exhausted or closed, and only one cursor
// can be open at a time.
func (s *Statement) Iterate(args ...any) (*Rows, error) {
	if err := s.prepareExecution(args); err != nil {
		return nil, err
	}
	s.busy = true
	return &Rows{st: s, pluck: s.pluck, raw: s.raw, safeInts: s.safeInts}, nil
}

// materialize shapes the current row. The flags are passed explicitly so an
// open cursor keeps the modes it was created with.
func (s *Statement) materialize(pluck, raw, safeInts bool) any {
	vals := s.stmt.RowValues(safeInts)
	if pluck {
		if len(vals) == 0 {
			return nil
		}
		return vals[0]
	}
	if raw {
		return vals
	}
	row := make(Row, len(vals))
	for i, name := range s.stmt.ColumnNames() {
		row[name] = vals[i]
	}
	return row
}

// Columns describes the result columns by name and declared type. Statements
// without a result set report an empty list.
func (s *Statement) Columns() ([]Column, error) {
	if s.stmt.Finalized() {
		return nil, &sqlerr.Error{Message: "statement is finalized: " + s.stmt.SQL()}
	}
	names := s.stmt.ColumnNames()
	decls := s.stmt.DeclTypes()
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, DeclType: decls[i]}
	}
	return cols, nil
}

// BindCount reports how many parameters the statement expects.
func (s *Statement) BindCount() int { return s.stmt.BindCount() }

// Reader reports the advisory classification computed at prepare.
func (s *Statement) Reader() bool { return s.stmt.Reader() }

// ReadOnly reports whether the statement defaults to read-only execution.
func (s *Statement) ReadOnly() bool { return s.stmt.ReadOnly() }

// Source returns the statement's SQL text.
func (s *Statement) Source() string { return s.stmt.SQL() }

// Busy reports whether a row iterator is open on this statement.
func (s *Statement) Busy() bool { return s.busy }

// Finalize releases the native statement. Idempotent; an open iterator is
// abandoned.
func (s *Statement) Finalize() error {
	s.busy = false
	return s.stmt.Finalize()
}
