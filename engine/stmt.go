package engine

import (
	"fmt"
	"strings"

	"github.com/ncruces/go-sqlite3"

	"github.com/tomyedwab/litehost/sqlerr"
	"github.com/tomyedwab/litehost/values"
)

// Stmt owns one compiled statement on one connection. It must be finalized
// before the connection closes; the connection does so itself for anything
// still registered at Close.
type Stmt struct {
	conn      *Conn
	stmt      *sqlite3.Stmt
	sql       string
	reader    bool
	readOnly  bool
	finalized bool
}

// Prepare compiles a single SQL statement. Texts that compile to nothing
// (empty or comment-only) or that contain trailing statements are rejected:
// a statement handle owns exactly one compiled program.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &sqlerr.PrepareError{SQL: sql, Message: "connection is closed"}
	}

	stmt, tail, err := c.db.Prepare(sql)
	if err != nil {
		return nil, sqlerr.Prepare(err, sql)
	}
	if stmt == nil {
		return nil, &sqlerr.PrepareError{SQL: sql, Message: "SQL text contains no statement"}
	}
	if strings.TrimSpace(tail) != "" {
		stmt.Close()
		return nil, &sqlerr.PrepareError{SQL: sql, Message: "SQL text contains more than one statement"}
	}

	s := &Stmt{conn: c, stmt: stmt, sql: sql, reader: IsReader(sql)}
	s.readOnly = s.reader
	c.stmts[s] = struct{}{}
	return s, nil
}

// IsReader classifies SQL text by its leading keyword: SELECT, WITH, VALUES
// and PRAGMA count as readers, everything else as mutating. The classification
// is advisory and never blocks execution.
func IsReader(sql string) bool {
	switch leadingToken(sql) {
	case "SELECT", "WITH", "VALUES", "PRAGMA":
		return true
	}
	return false
}

func leadingToken(sql string) string {
	trimmed := strings.TrimSpace(sql)
	end := 0
	for end < len(trimmed) {
		ch := trimmed[end]
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') {
			break
		}
		end++
	}
	return strings.ToUpper(trimmed[:end])
}

// SQL reports the source text the statement was prepared from.
func (s *Stmt) SQL() string { return s.sql }

// Reader reports the advisory reader classification.
func (s *Stmt) Reader() bool { return s.reader }

// ReadOnly reports the default read-only flag, derived from the classification.
func (s *Stmt) ReadOnly() bool { return s.readOnly }

// BindCount reports how many parameters the statement expects.
func (s *Stmt) BindCount() int {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return 0
	}
	return s.stmt.BindCount()
}

// Bind resets any previous bindings and step cursor, then binds args
// 1-indexed through the coercion layer. The argument count must match the
// statement's parameter count exactly.
func (s *Stmt) Bind(args []any) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return &sqlerr.BindError{SQL: s.sql, Message: "statement is finalized"}
	}

	if err := s.stmt.Reset(); err != nil {
		return sqlerr.Bind(err, s.sql)
	}
	if err := s.stmt.ClearBindings(); err != nil {
		return sqlerr.Bind(err, s.sql)
	}
	if want := s.stmt.BindCount(); len(args) != want {
		return &sqlerr.BindError{
			SQL:     s.sql,
			Message: fmt.Sprintf("statement expects %d parameters, got %d", want, len(args)),
		}
	}

	for i, arg := range args {
		v, err := values.ToStorable(arg)
		if err != nil {
			return &sqlerr.BindError{SQL: s.sql, Message: err.Error()}
		}
		if err := s.bindStorable(i+1, v); err != nil {
			return sqlerr.Bind(err, s.sql)
		}
	}
	return nil
}

func (s *Stmt) bindStorable(param int, v any) error {
	switch val := v.(type) {
	case nil:
		return s.stmt.BindNull(param)
	case int64:
		return s.stmt.BindInt64(param, val)
	case float64:
		return s.stmt.BindFloat(param, val)
	case string:
		return s.stmt.BindText(param, val)
	case []byte:
		return s.stmt.BindBlob(param, val)
	}
	return fmt.Errorf("cannot bind value of type %T", v)
}

// Step advances the statement: true means a row is available, false means the
// statement ran to completion. Engine faults reset the statement and surface
// through the taxonomy.
func (s *Stmt) Step() (bool, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return false, &sqlerr.StepError{SQL: s.sql, Message: "statement is finalized"}
	}

	if s.stmt.Step() {
		return true, nil
	}
	if err := s.stmt.Err(); err != nil {
		s.stmt.Reset()
		return false, sqlerr.Step(err, s.sql)
	}
	return false, nil
}

// Reset rewinds the step cursor without losing bindings.
func (s *Stmt) Reset() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return nil
	}
	return sqlerr.Generic(s.stmt.Reset())
}

// ClearBindings drops all bound parameters.
func (s *Stmt) ClearBindings() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return nil
	}
	return sqlerr.Generic(s.stmt.ClearBindings())
}

// Finalize releases the native resource. Finalizing twice is a no-op; other
// statements on the connection are unaffected.
func (s *Stmt) Finalize() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.finalizeLocked()
}

func (s *Stmt) finalizeLocked() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	if s.conn.stmts != nil {
		delete(s.conn.stmts, s)
	}
	return sqlerr.Generic(s.stmt.Close())
}

// Finalized reports whether the native resource has been released.
func (s *Stmt) Finalized() bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.finalized
}

// ColumnCount reports the number of result columns.
func (s *Stmt) ColumnCount() int {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return 0
	}
	return s.stmt.ColumnCount()
}

// ColumnNames reports the result column names in column order.
func (s *Stmt) ColumnNames() []string {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return nil
	}
	names := make([]string, s.stmt.ColumnCount())
	for i := range names {
		names[i] = s.stmt.ColumnName(i)
	}
	return names
}

// DeclTypes reports the declared type of each result column ("" when the
// column has none, e.g. expressions).
func (s *Stmt) DeclTypes() []string {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return nil
	}
	decls := make([]string, s.stmt.ColumnCount())
	for i := range decls {
		decls[i] = s.stmt.ColumnDeclType(i)
	}
	return decls
}

// RowValues reads every column of the current row, coerced into the host
// value model. Valid only between a Step reporting a row and the next Step.
func (s *Stmt) RowValues(safeInts bool) []any {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.finalized {
		return nil
	}
	row := make([]any, s.stmt.ColumnCount())
	for i := range row {
		row[i] = s.columnValueLocked(i, safeInts)
	}
	return row
}

func (s *Stmt) columnValueLocked(i int, safeInts bool) any {
	switch s.stmt.ColumnType(i) {
	case sqlite3.INTEGER:
		return values.ReadInteger(s.stmt.ColumnInt64(i), safeInts)
	case sqlite3.FLOAT:
		return s.stmt.ColumnFloat(i)
	case sqlite3.TEXT:
		return s.stmt.ColumnText(i)
	case sqlite3.BLOB:
		return s.stmt.ColumnBlob(i, nil)
	default:
		return nil
	}
}
