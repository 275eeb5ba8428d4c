package adapter

import (
	"context"
	"strings"
	"sync"

	"github.com/tomyedwab/litehost/sqlerr"
	"github.com/tomyedwab/litehost/txn"
)

// IsolationLevel names a requested transaction isolation level. The engine
// implements exactly one, so only the empty string and Serializable pass
// validation.
type IsolationLevel string

// Serializable is the engine's sole isolation level.
const Serializable IsolationLevel = "SERIALIZABLE"

func (l IsolationLevel) validate() error {
	switch strings.ToUpper(strings.TrimSpace(string(l))) {
	case "", string(Serializable):
		return nil
	}
	return &sqlerr.IsolationError{Level: string(l)}
}

// Transaction is one open frame of the adapter. Its queries run on the same
// underlying connection; Commit or Rollback complete it and any further use
// is rejected.
type Transaction struct {
	a     *Adapter
	frame txn.Frame

	mu   sync.Mutex
	done bool
}

// StartTransaction opens a transaction frame. Unsupported isolation levels
// are rejected before any engine command runs, as is anything the capability
// descriptor rules out. A call with a transaction already open becomes a
// savepoint frame.
func (a *Adapter) StartTransaction(ctx context.Context, level IsolationLevel) (*Transaction, error) {
	if err := a.enter(ctx); err != nil {
		return nil, err
	}
	if err := level.validate(); err != nil {
		return nil, err
	}
	if !a.caps.SupportsTransactions {
		return nil, &sqlerr.Error{Message: "transactions are disabled by the capability descriptor"}
	}
	if a.db.Depth() > 0 && !a.caps.SupportsSavepoints {
		return nil, &sqlerr.Error{Message: "savepoints are disabled by the capability descriptor"}
	}

	frame, err := a.db.Coordinator().Begin(txn.Default)
	if err != nil {
		return nil, err
	}
	return &Transaction{a: a, frame: frame}, nil
}

// Commit completes the frame.
func (t *Transaction) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.finish(); err != nil {
		return err
	}
	return t.a.db.Coordinator().Commit(t.frame)
}

// Rollback discards the frame.
func (t *Transaction) Rollback(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.finish(); err != nil {
		return err
	}
	return t.a.db.Coordinator().Rollback(t.frame)
}

// QueryRaw executes a query inside the transaction.
func (t *Transaction) QueryRaw(ctx context.Context, q Query) (*ResultSet, error) {
	if err := t.guard(ctx); err != nil {
		return nil, err
	}
	return t.a.queryRaw(q)
}

// ExecuteRaw executes a statement inside the transaction.
func (t *Transaction) ExecuteRaw(ctx context.Context, q Query) (int64, error) {
	if err := t.guard(ctx); err != nil {
		return 0, err
	}
	return t.a.executeRaw(q)
}

func (t *Transaction) finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return &sqlerr.Error{Message: "transaction already completed"}
	}
	t.done = true
	return nil
}

func (t *Transaction) guard(ctx context.Context) error {
	if err := t.a.enter(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done {
		return &sqlerr.Error{Message: "transaction already completed"}
	}
	return nil
}
