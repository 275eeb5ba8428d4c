package engine

// Package engine owns the WebAssembly SQLite engine instance and the
// connection/statement resources layered on it. An Engine is an explicit
// object created by New; it opens Conns, each Conn prepares Stmts, and every
// native call is serialized per connection. The binding
// (github.com/ncruces/go-sqlite3) executes the engine synchronously inside the
// calling goroutine, so no operation here ever busy-waits on an async result.
//
// The model assumes one coordinating caller per connection: the mutexes
// enforce non-overlapping native calls, not transactional isolation between
// goroutines.
