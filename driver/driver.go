package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/litehost/database"
	"github.com/tomyedwab/litehost/engine"
	"github.com/tomyedwab/litehost/sqlerr"
	"github.com/tomyedwab/litehost/txn"
	"github.com/tomyedwab/litehost/values"
)

const driverName = "litehost"

func init() {
	sql.Register(driverName, &Driver{})
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// --- Driver implementation ---

// Driver opens engine-backed connections. Every connection opened through
// one Driver shares a single lazily created engine instance.
type Driver struct {
	mu  sync.Mutex
	eng *engine.Engine
}

// Open returns a new connection to the database named by the DSN.
func (d *Driver) Open(name string) (driver.Conn, error) {
	opts, err := parseDSN(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.eng == nil {
		d.eng = engine.New()
	}
	eng := d.eng
	d.mu.Unlock()

	db, err := database.Open(eng, opts)
	if err != nil {
		return nil, fmt.Errorf("litehost: %w", err)
	}
	return &Conn{db: db}, nil
}

// parseDSN splits "path?options" into engine options. See the package doc
// for the grammar.
func parseDSN(name string) (engine.Options, error) {
	var opts engine.Options
	path := name
	if i := strings.IndexByte(name, '?'); i >= 0 {
		query, err := url.ParseQuery(name[i+1:])
		if err != nil {
			return opts, fmt.Errorf("litehost: invalid DSN %q: %w", name, err)
		}
		path = name[:i]

		switch mode := query.Get("mode"); mode {
		case "", "rw":
		case "ro":
			opts.ReadOnly = true
		case "memory":
			path = ":memory:"
		default:
			return opts, fmt.Errorf("litehost: unknown mode %q in DSN", mode)
		}
		if timeout := query.Get("timeout"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return opts, fmt.Errorf("litehost: invalid timeout in DSN: %w", err)
			}
			opts.BusyTimeout = d
		}
		if nofk := query.Get("nofk"); nofk == "1" || nofk == "true" {
			opts.NoForeignKeys = true
		}
		opts.Pragmas = append(opts.Pragmas, query["pragma"]...)
	}
	opts.Path = path
	return opts, nil
}

// --- Connection implementation ---

// Conn implements driver.Conn over one engine connection.
type Conn struct {
	db *database.DB
}

// Prepare returns a prepared statement bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &Stmt{conn: c, stmt: stmt}, nil
}

// Close releases the connection and everything prepared on it.
func (c *Conn) Close() error {
	return c.db.Close()
}

// Ping verifies the connection still answers.
func (c *Conn) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Exec("SELECT 1")
}

// Begin starts a transaction with the write-assumed default of BeginTx.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.begin(txn.Immediate)
}

// BeginTx starts a transaction honoring the caller's options. Read-only
// transactions defer lock acquisition; read-write ones take the write lock
// up front. Unsupported isolation levels are rejected before any engine
// command runs.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch level := sql.IsolationLevel(opts.Isolation); level {
	case sql.LevelDefault, sql.LevelSerializable:
	default:
		return nil, &sqlerr.IsolationError{Level: level.String()}
	}
	mode := txn.Immediate
	if opts.ReadOnly {
		mode = txn.Default
	}
	return c.begin(mode)
}

func (c *Conn) begin(mode txn.Mode) (driver.Tx, error) {
	frame, err := c.db.Coordinator().Begin(mode)
	if err != nil {
		return nil, err
	}
	return &Tx{conn: c, frame: frame}, nil
}

// ExecContext executes without a prior Prepare. Argument-free calls may
// carry multi-statement scripts.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		if err := c.db.Exec(query); err != nil {
			return nil, err
		}
		return &execResult{
			lastInsertID: c.db.Conn().LastInsertRowID(),
			rowsAffected: c.db.Conn().Changes(),
		}, nil
	}

	vals, err := namedToOrdinal(args)
	if err != nil {
		return nil, err
	}
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	res, err := stmt.Run(vals...)
	if err != nil {
		return nil, err
	}
	return &execResult{lastInsertID: res.LastInsertRowID, rowsAffected: res.Changes}, nil
}

// QueryContext prepares, executes and hands back rows that finalize the
// statement when they close.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vals, err := namedToOrdinal(args)
	if err != nil {
		return nil, err
	}
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := queryRows(stmt, vals)
	if err != nil {
		stmt.Finalize()
		return nil, err
	}
	rows.ownsStmt = true
	return rows, nil
}

func namedToOrdinal(args []driver.NamedValue) ([]any, error) {
	vals := make([]any, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, fmt.Errorf("litehost: named parameters are not supported (got %q)", arg.Name)
		}
		vals[i] = arg.Value
	}
	return vals, nil
}

// --- Statement implementation ---

// Stmt implements driver.Stmt over a prepared statement.
type Stmt struct {
	conn *Conn
	stmt *database.Statement
}

// Close releases the prepared statement.
func (s *Stmt) Close() error {
	return s.stmt.Finalize()
}

// NumInput returns the number of placeholder parameters.
func (s *Stmt) NumInput() int {
	return s.stmt.BindCount()
}

// Exec runs the statement with the given arguments and returns a Result.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.exec(valueArgs(args))
}

// ExecContext runs the statement, honoring ctx between engine calls.
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vals, err := namedToOrdinal(args)
	if err != nil {
		return nil, err
	}
	return s.exec(vals)
}

func (s *Stmt) exec(vals []any) (driver.Result, error) {
	res, err := s.stmt.Run(vals...)
	if err != nil {
		return nil, err
	}
	return &execResult{lastInsertID: res.LastInsertRowID, rowsAffected: res.Changes}, nil
}

// Query runs the statement and returns its rows.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return queryRows(s.stmt, valueArgs(args))
}

// QueryContext runs the statement, honoring ctx between engine calls.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vals, err := namedToOrdinal(args)
	if err != nil {
		return nil, err
	}
	return queryRows(s.stmt, vals)
}

func valueArgs(args []driver.Value) []any {
	vals := make([]any, len(args))
	for i, v := range args {
		vals[i] = v
	}
	return vals
}

func queryRows(stmt *database.Statement, args []any) (*Rows, error) {
	cols, err := stmt.Columns()
	if err != nil {
		return nil, err
	}
	// Declared types drive scan-side conversion so DATETIME columns come out
	// as time.Time and BOOLEAN columns as bool, the way database/sql wants
	// them.
	tags := make([]values.ColumnType, len(cols))
	for i, c := range cols {
		tags[i] = values.FromDecl(c.DeclType, values.TypeText)
	}
	cur, err := stmt.SafeIntegers().Raw().Iterate(args...)
	if err != nil {
		return nil, err
	}
	return &Rows{stmt: stmt, cur: cur, cols: cols, tags: tags}, nil
}

// --- Transaction implementation ---

// Tx implements driver.Tx as a single coordinator frame.
type Tx struct {
	conn  *Conn
	frame txn.Frame
	done  bool
}

// Commit commits the frame.
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("litehost: transaction already completed")
	}
	t.done = true
	return t.conn.db.Coordinator().Commit(t.frame)
}

// Rollback aborts the frame.
func (t *Tx) Rollback() error {
	if t.done {
		return fmt.Errorf("litehost: transaction already completed")
	}
	t.done = true
	return t.conn.db.Coordinator().Rollback(t.frame)
}

// --- Result implementation ---

// execResult implements the driver.Result interface.
type execResult struct {
	lastInsertID int64
	rowsAffected int64
}

// LastInsertId returns the row id of the most recent successful insert.
func (r *execResult) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

// RowsAffected returns the number of rows affected by the statement.
func (r *execResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- Rows implementation ---

// Rows implements driver.Rows over a live cursor; rows step lazily rather
// than being fetched up front.
type Rows struct {
	stmt     *database.Statement
	cur      *database.Rows
	cols     []database.Column
	tags     []values.ColumnType
	ownsStmt bool
}

// Columns returns the names of the result columns.
func (r *Rows) Columns() []string {
	names := make([]string, len(r.cols))
	for i, c := range r.cols {
		names[i] = c.Name
	}
	return names
}

// ColumnTypeDatabaseTypeName reports the declared type of column index,
// upper-cased, empty for expression columns.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return strings.ToUpper(r.cols[index].DeclType)
}

// Close abandons the cursor, releasing the statement too when the rows own
// it.
func (r *Rows) Close() error {
	err := r.cur.Close()
	if r.ownsStmt {
		if ferr := r.stmt.Finalize(); err == nil {
			err = ferr
		}
	}
	return err
}

// Next populates dest with the next row. Returns io.EOF when the result set
// is exhausted.
func (r *Rows) Next(dest []driver.Value) error {
	if !r.cur.Next() {
		if err := r.cur.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	vals := r.cur.Value().([]any)
	if len(vals) != len(dest) {
		return fmt.Errorf("litehost: column count mismatch: expected %d, got %d", len(dest), len(vals))
	}
	for i, v := range vals {
		dest[i] = values.ReadValue(r.tags[i], v)
	}
	return nil
}
