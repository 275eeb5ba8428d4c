package database

// Rows is the lazy cursor handed out by Statement.Iterate: a single forward
// pass over the result set, restartable only by executing the statement
// again.
type Rows struct {
	st       *Statement
	pluck    bool
	raw      bool
	safeInts bool

	cur  any
	err  error
	done bool
}

// Next advances to the next row and reports whether one is available. The
// cursor closes itself after the last row or on an engine fault.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	row, err := r.st.stmt.Step()
	if err != nil {
		r.err = err
		// Step already reset the statement on the way out.
		r.finish(false)
		return false
	}
	if !row {
		r.finish(true)
		return false
	}
	r.cur = r.st.materialize(r.pluck, r.raw, r.safeInts)
	return true
}

// Value returns the row Next advanced to, shaped by the modes that were
// active when the cursor was created.
func (r *Rows) Value() any { return r.cur }

// Err reports the engine fault that ended iteration early, if any.
func (r *Rows) Err() error { return r.err }

// Close abandons the cursor and resets the statement for reuse. Idempotent.
func (r *Rows) Close() error {
	if r.done {
		return nil
	}
	r.finish(true)
	return nil
}

func (r *Rows) finish(reset bool) {
	r.done = true
	r.cur = nil
	r.st.busy = false
	if reset {
		r.st.stmt.Reset()
	}
}
