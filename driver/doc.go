// Package driver implements a database/sql/driver over the embedded engine,
// registered under the name "litehost".
//
// Unlike a proxying driver there is no serialization boundary here: each
// connection owns a real engine connection and statements execute in-process.
// The driver exists so code written against database/sql (or sqlx) can use
// the engine without touching the synchronous handle directly.
//
// Usage:
//
//  1. Import the driver package for its registration side effect:
//     import _ "github.com/tomyedwab/litehost/driver"
//
//  2. Open a database. The DSN is a file path, optionally followed by
//     query-style options:
//     db, err := sql.Open("litehost", "app.db?mode=ro&timeout=5s")
//     if err != nil {
//     // handle error
//     }
//     defer db.Close()
//
//  3. Use the *sql.DB object as usual for queries, prepared statements and
//     transactions.
//
// DSN grammar:
//
// The part before "?" is the target path; "" and ":memory:" open an
// in-memory session. Recognized options are mode (ro, rw, memory),
// timeout (busy timeout, Go duration syntax), nofk (disable foreign key
// enforcement) and pragma (repeatable, statements run at open).
//
// In-memory databases live and die with their connection, so pools must be
// pinned to one connection:
//
//	db.SetMaxOpenConns(1)
//
// Implemented Interfaces:
//
// The driver implements the following `database/sql/driver` interfaces:
// - driver.Driver
// - driver.Conn, driver.Pinger, driver.ConnBeginTx
// - driver.ExecerContext, driver.QueryerContext
// - driver.Stmt, driver.StmtExecContext, driver.StmtQueryContext
// - driver.Tx
// - driver.Result
// - driver.Rows, driver.RowsColumnTypeDatabaseTypeName
//
// Limitations:
//
//   - Named parameters are not supported; arguments bind by ordinal only.
//   - Contexts are honored between engine calls, not inside them; a
//     statement that has started executing runs to completion.
//   - Only the default and serializable isolation levels are accepted.
package driver
