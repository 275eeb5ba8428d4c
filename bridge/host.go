// Package bridge exposes the synchronous handle over a JSON command
// boundary, the transport shape used when the engine sits on the other side
// of a host/guest split. One Host owns one handle plus uuid-keyed registries
// for the statements and transaction frames the far side holds open.
package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomyedwab/litehost/database"
	"github.com/tomyedwab/litehost/txn"
	"github.com/tomyedwab/litehost/values"
)

// Host handles bridge requests for one database handle.
type Host struct {
	db *database.DB

	mu     sync.Mutex
	stmts  map[string]*database.Statement
	frames map[string]txn.Frame
	closed bool
}

// NewHost creates a host over db. The host owns the handle from here on; the
// close command releases it.
func NewHost(db *database.DB) *Host {
	return &Host{
		db:     db,
		stmts:  make(map[string]*database.Statement),
		frames: make(map[string]txn.Frame),
	}
}

// HandleRequest processes one raw request payload and returns the raw
// response payload. Operational errors travel inside the response; the
// returned payload is always valid JSON.
func (h *Host) HandleRequest(payload []byte) []byte {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return marshalResponse(GeneralResponse{Error: fmt.Sprintf("unmarshaling request: %v", err)})
	}

	var resp any
	switch req.Command {
	case "prepare":
		resp = h.handlePrepare(&req)
	case "run":
		resp = h.handleRun(&req)
	case "get":
		resp = h.handleGet(&req)
	case "all":
		resp = h.handleAll(&req)
	case "exec":
		resp = h.handleExec(&req)
	case "pragma":
		resp = h.handlePragma(&req)
	case "begin":
		resp = h.handleBegin(&req)
	case "commit":
		resp = h.handleCommit(&req)
	case "rollback":
		resp = h.handleRollback(&req)
	case "close_stmt":
		resp = h.handleCloseStmt(&req)
	case "close":
		resp = h.handleClose(&req)
	default:
		resp = GeneralResponse{Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
	return marshalResponse(resp)
}

func marshalResponse(resp any) []byte {
	payload, err := json.Marshal(resp)
	if err != nil {
		// Critical failure: cannot even marshal the response. Fall back to a
		// hardcoded JSON error.
		return []byte(fmt.Sprintf(`{"error":"critical: failed to marshal response: %v"}`, err))
	}
	return payload
}

func (h *Host) live() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("host is closed")
	}
	return nil
}

// resolveStmt finds the statement a request targets: a registered one by ID,
// or a one-shot prepared from the SQL text. oneShot tells the caller to
// finalize it afterwards.
func (h *Host) resolveStmt(req *Request) (stmt *database.Statement, oneShot bool, err error) {
	if req.StmtID != "" {
		h.mu.Lock()
		stmt, ok := h.stmts[req.StmtID]
		h.mu.Unlock()
		if !ok {
			return nil, false, fmt.Errorf("statement not found: %s", req.StmtID)
		}
		return stmt, false, nil
	}
	stmt, err = h.db.Prepare(req.SQL)
	if err != nil {
		return nil, false, err
	}
	return stmt, true, nil
}

// requestArgs converts wire arguments to engine values. Typed args coerce
// through their tags; untyped JSON numbers become integers when whole.
func requestArgs(req *Request) ([]any, error) {
	args := make([]any, len(req.Args))
	for i, raw := range req.Args {
		if i < len(req.ArgTypes) && req.ArgTypes[i] != "" {
			tag, ok := values.ParseColumnType(req.ArgTypes[i])
			if !ok {
				return nil, fmt.Errorf("unknown argument type %q", req.ArgTypes[i])
			}
			v, err := values.CoerceArg(tag, raw)
			if err != nil {
				return nil, err
			}
			args[i] = v
			continue
		}
		if f, ok := raw.(float64); ok {
			args[i] = values.NormalizeNumber(f)
			continue
		}
		args[i] = raw
	}
	return args, nil
}

func wireRow(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = values.JSONValue(v)
	}
	return out
}

func columnNames(cols []database.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func (h *Host) handlePrepare(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	stmt, err := h.db.Prepare(req.SQL)
	if err != nil {
		return GeneralResponse{Error: err.Error()}
	}

	stmtID := uuid.NewString()
	h.mu.Lock()
	h.stmts[stmtID] = stmt
	h.mu.Unlock()
	return GeneralResponse{StmtID: stmtID}
}

func (h *Host) handleRun(req *Request) RunResponse {
	if err := h.live(); err != nil {
		return RunResponse{Error: err.Error()}
	}
	stmt, oneShot, err := h.resolveStmt(req)
	if err != nil {
		return RunResponse{Error: err.Error()}
	}
	if oneShot {
		defer stmt.Finalize()
	}

	args, err := requestArgs(req)
	if err != nil {
		return RunResponse{Error: err.Error()}
	}
	res, err := stmt.Run(args...)
	if err != nil {
		return RunResponse{Error: err.Error()}
	}
	return RunResponse{LastInsertID: res.LastInsertRowID, RowsAffected: res.Changes}
}

func (h *Host) handleGet(req *Request) RowResponse {
	if err := h.live(); err != nil {
		return RowResponse{Error: err.Error()}
	}
	stmt, oneShot, err := h.resolveStmt(req)
	if err != nil {
		return RowResponse{Error: err.Error()}
	}
	if oneShot {
		defer stmt.Finalize()
	}

	args, err := requestArgs(req)
	if err != nil {
		return RowResponse{Error: err.Error()}
	}
	cols, err := stmt.Columns()
	if err != nil {
		return RowResponse{Error: err.Error()}
	}
	v, err := stmt.Raw().Get(args...)
	if err != nil {
		return RowResponse{Error: err.Error()}
	}
	if v == nil {
		return RowResponse{Columns: columnNames(cols)}
	}
	return RowResponse{Columns: columnNames(cols), Row: wireRow(v.([]any)), Found: true}
}

func (h *Host) handleAll(req *Request) RowsResponse {
	if err := h.live(); err != nil {
		return RowsResponse{Error: err.Error()}
	}
	stmt, oneShot, err := h.resolveStmt(req)
	if err != nil {
		return RowsResponse{Error: err.Error()}
	}
	if oneShot {
		defer stmt.Finalize()
	}

	args, err := requestArgs(req)
	if err != nil {
		return RowsResponse{Error: err.Error()}
	}
	return collectRows(stmt, args)
}

func collectRows(stmt *database.Statement, args []any) RowsResponse {
	cols, err := stmt.Columns()
	if err != nil {
		return RowsResponse{Error: err.Error()}
	}
	raw, err := stmt.Raw().All(args...)
	if err != nil {
		return RowsResponse{Error: err.Error()}
	}

	rows := make([][]any, len(raw))
	for i, rv := range raw {
		rows[i] = wireRow(rv.([]any))
	}
	return RowsResponse{Columns: columnNames(cols), Rows: rows}
}

func (h *Host) handleExec(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	if err := h.db.Exec(req.SQL); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	return GeneralResponse{}
}

func (h *Host) handlePragma(req *Request) RowsResponse {
	if err := h.live(); err != nil {
		return RowsResponse{Error: err.Error()}
	}
	stmt, err := h.db.Prepare("PRAGMA " + req.SQL)
	if err != nil {
		return RowsResponse{Error: err.Error()}
	}
	defer stmt.Finalize()
	return collectRows(stmt, nil)
}

func (h *Host) handleBegin(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	mode, ok := txn.ParseMode(req.Mode)
	if !ok {
		return GeneralResponse{Error: fmt.Sprintf("unknown transaction mode %q", req.Mode)}
	}
	frame, err := h.db.Coordinator().Begin(mode)
	if err != nil {
		return GeneralResponse{Error: err.Error()}
	}

	txID := uuid.NewString()
	h.mu.Lock()
	h.frames[txID] = frame
	h.mu.Unlock()
	return GeneralResponse{TxID: txID}
}

func (h *Host) handleCommit(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	h.mu.Lock()
	frame, ok := h.frames[req.TxID]
	h.mu.Unlock()
	if !ok {
		return GeneralResponse{Error: fmt.Sprintf("transaction not found or already closed: %s", req.TxID)}
	}

	if err := h.db.Coordinator().Commit(frame); err != nil {
		// The frame stays registered: out-of-order commits must not burn it.
		return GeneralResponse{Error: err.Error()}
	}
	h.mu.Lock()
	delete(h.frames, req.TxID)
	h.mu.Unlock()
	return GeneralResponse{}
}

func (h *Host) handleRollback(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	h.mu.Lock()
	frame, ok := h.frames[req.TxID]
	h.mu.Unlock()
	if !ok {
		return GeneralResponse{Error: fmt.Sprintf("transaction not found or already closed: %s", req.TxID)}
	}

	if err := h.db.Coordinator().Rollback(frame); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	h.mu.Lock()
	delete(h.frames, req.TxID)
	h.mu.Unlock()
	return GeneralResponse{}
}

func (h *Host) handleCloseStmt(req *Request) GeneralResponse {
	if err := h.live(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	h.mu.Lock()
	stmt, exists := h.stmts[req.StmtID]
	if exists {
		delete(h.stmts, req.StmtID)
	}
	h.mu.Unlock()

	// Closing an unknown or already closed statement is not an error.
	if !exists {
		return GeneralResponse{}
	}
	if err := stmt.Finalize(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	return GeneralResponse{}
}

func (h *Host) handleClose(req *Request) GeneralResponse {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return GeneralResponse{}
	}
	h.closed = true
	stmts := h.stmts
	frames := h.frames
	h.stmts = make(map[string]*database.Statement)
	h.frames = make(map[string]txn.Frame)
	h.mu.Unlock()

	for _, stmt := range stmts {
		_ = stmt.Finalize()
	}

	// Deepest frames first so each rollback meets the coordinator at the
	// depth the frame was opened for.
	ordered := make([]txn.Frame, 0, len(frames))
	for _, f := range frames {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Depth > ordered[j].Depth })
	for _, f := range ordered {
		_ = h.db.Coordinator().Rollback(f)
	}

	if err := h.db.Close(); err != nil {
		return GeneralResponse{Error: err.Error()}
	}
	return GeneralResponse{}
}
