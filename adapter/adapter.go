// Package adapter is the driver-adapter rendering of the handle: positional
// result sets, tagged argument coercion and context-aware entry points,
// shaped for an ORM-style consumer rather than a human caller.
package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomyedwab/litehost/database"
	"github.com/tomyedwab/litehost/sqlerr"
	"github.com/tomyedwab/litehost/values"
)

// Capabilities is the adapter's capability descriptor. It is declared, not
// probed from the engine, so hosts can narrow what they expose.
type Capabilities struct {
	SupportsTransactions  bool
	SupportsSavepoints    bool
	MaxBindValues         int
	SupportsRelationJoins bool
}

// DefaultCapabilities describes the embedded engine build.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		SupportsTransactions: true,
		SupportsSavepoints:   true,
		MaxBindValues:        32766,
	}
}

// ConnectionInfo is the runtime subset of the descriptor consumers ask for.
type ConnectionInfo struct {
	MaxBindValues         int
	SupportsRelationJoins bool
}

// Query is one parameterized statement crossing the adapter boundary.
// ArgTypes optionally tags each argument so wire-shaped values (base64
// bytes, RFC3339 datetimes, 0/1 booleans) coerce to engine values before
// binding; untagged queries bind their args as-is.
type Query struct {
	SQL      string
	Args     []any
	ArgTypes []values.ColumnType
}

// ResultSet is the positional result shape of the adapter: column names,
// column type tags and rows of already-tagged values.
type ResultSet struct {
	ColumnNames []string
	ColumnTypes []values.ColumnType
	Rows        [][]any
}

// Adapter wraps a synchronous handle behind the driver-adapter surface.
type Adapter struct {
	db   *database.DB
	caps Capabilities

	mu       sync.Mutex
	disposed bool
}

// New wraps db with the given capability descriptor.
func New(db *database.DB, caps Capabilities) *Adapter {
	return &Adapter{db: db, caps: caps}
}

// enter is the common entry check: the context must be live and the adapter
// not disposed. Contexts are checked between operations only; a statement
// that has started is never interrupted mid-flight.
func (a *Adapter) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	disposed := a.disposed
	a.mu.Unlock()
	if disposed {
		return &sqlerr.Error{Message: "adapter is disposed"}
	}
	return nil
}

// QueryRaw executes a query and materializes the whole result set.
func (a *Adapter) QueryRaw(ctx context.Context, q Query) (*ResultSet, error) {
	if err := a.enter(ctx); err != nil {
		return nil, err
	}
	return a.queryRaw(q)
}

// ExecuteRaw executes a statement and reports the affected-row count.
func (a *Adapter) ExecuteRaw(ctx context.Context, q Query) (int64, error) {
	if err := a.enter(ctx); err != nil {
		return 0, err
	}
	return a.executeRaw(q)
}

// ExecuteScript runs a multi-statement script with no parameters and no
// result rows, typically schema bootstrap.
func (a *Adapter) ExecuteScript(ctx context.Context, script string) error {
	if err := a.enter(ctx); err != nil {
		return err
	}
	return a.db.Exec(script)
}

// GetConnectionInfo reports the runtime subset of the capability descriptor.
func (a *Adapter) GetConnectionInfo() ConnectionInfo {
	return ConnectionInfo{
		MaxBindValues:         a.caps.MaxBindValues,
		SupportsRelationJoins: a.caps.SupportsRelationJoins,
	}
}

// Dispose rolls back any open transaction and closes the handle. Safe to
// call more than once; later calls are no-ops.
func (a *Adapter) Dispose(ctx context.Context) error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	a.mu.Unlock()
	return a.db.Close()
}

func (a *Adapter) queryRaw(q Query) (*ResultSet, error) {
	stmt, err := a.db.Prepare(q.SQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	args, err := coerceArgs(q)
	if err != nil {
		return nil, err
	}

	cols, err := stmt.Columns()
	if err != nil {
		return nil, err
	}

	rawRows, err := stmt.SafeIntegers().Raw().All(args...)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	rows := make([][]any, len(rawRows))
	for i, rv := range rawRows {
		rows[i] = rv.([]any)
	}

	tags := columnTags(cols, rows)
	for _, row := range rows {
		for i, v := range row {
			row[i] = values.ReadValue(tags[i], v)
		}
	}

	return &ResultSet{ColumnNames: names, ColumnTypes: tags, Rows: rows}, nil
}

func (a *Adapter) executeRaw(q Query) (int64, error) {
	stmt, err := a.db.Prepare(q.SQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Finalize()

	args, err := coerceArgs(q)
	if err != nil {
		return 0, err
	}
	res, err := stmt.Run(args...)
	if err != nil {
		return 0, err
	}
	return res.Changes, nil
}

// columnTags assigns each result column its type tag: the declared type when
// the column has one, otherwise the first non-null value of the column, Text
// when neither resolves (including the zero-row case).
func columnTags(cols []database.Column, rows [][]any) []values.ColumnType {
	tags := make([]values.ColumnType, len(cols))
	for i, col := range cols {
		inferred := values.TypeText
		for _, row := range rows {
			if row[i] != nil {
				inferred = values.Infer(row[i])
				break
			}
		}
		tags[i] = values.FromDecl(col.DeclType, inferred)
	}
	return tags
}

func coerceArgs(q Query) ([]any, error) {
	if len(q.ArgTypes) == 0 {
		return q.Args, nil
	}
	if len(q.ArgTypes) != len(q.Args) {
		return nil, &sqlerr.BindError{
			SQL:     q.SQL,
			Message: fmt.Sprintf("query carries %d args but %d arg types", len(q.Args), len(q.ArgTypes)),
		}
	}
	out := make([]any, len(q.Args))
	for i, arg := range q.Args {
		v, err := values.CoerceArg(q.ArgTypes[i], arg)
		if err != nil {
			return nil, &sqlerr.BindError{SQL: q.SQL, Message: err.Error()}
		}
		out[i] = v
	}
	return out, nil
}
