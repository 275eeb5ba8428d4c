// Package database exposes the synchronous database handle: prepared
// statements with run/get/all/iterate access, raw script execution, pragmas
// and nested transactions, all over the in-process WebAssembly SQLite engine.
//
// Usage:
//
//  1. Create an engine instance and open a handle. An empty path (or
//     ":memory:") opens an in-memory session; any other path opens that file.
//
//	eng := engine.New()
//	db, err := database.Open(eng, engine.Options{Path: "app.db"})
//
//  2. Prepare statements and execute them. Get returns nil when no row
//     matches; All returns every row; Iterate steps lazily.
//
//	stmt, err := db.Prepare("SELECT name, age FROM people WHERE age > ?")
//	rows, err := stmt.All(21)        // []any of Row maps
//	one, err := stmt.Get(21)         // Row or nil
//
//  3. Shape results with the chainable mode toggles. Pluck yields the first
//     column only, Raw yields positional slices, SafeIntegers keeps 64-bit
//     integers exact beyond 2^53.
//
//	total, err := db.Prepare("SELECT count(*) FROM people")
//	n, err := total.Pluck().Get()
//
//  4. Wrap multi-statement work in a transaction. Nested calls become
//     savepoints, so an inner commit is still discarded when the outer
//     transaction rolls back.
//
//	err := db.Transaction(func() error {
//	    if _, err := ins.Run("ada"); err != nil {
//	        return err
//	    }
//	    return db.Transaction(func() error {
//	        _, err := ins.Run("grace")
//	        return err
//	    })
//	})
//
// Close finalizes whatever statements remain, rolls back any open
// transaction and releases the engine session. It is safe to call twice.
package database
