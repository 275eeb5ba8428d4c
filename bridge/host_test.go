package bridge

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomyedwab/litehost/database"
	"github.com/tomyedwab/litehost/engine"
)

func newHost(t *testing.T, opts engine.Options) *Host {
	t.Helper()
	eng := engine.New()
	t.Cleanup(func() { eng.Shutdown() })

	db, err := database.Open(eng, opts)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	h := NewHost(db)
	t.Cleanup(func() { h.HandleRequest(mustMarshal(t, Request{Command: "close"})) })
	return h
}

func mustMarshal(t *testing.T, req Request) []byte {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return payload
}

func roundTrip(t *testing.T, h *Host, req Request, resp any) {
	t.Helper()
	payload := h.HandleRequest(mustMarshal(t, req))
	if err := json.Unmarshal(payload, resp); err != nil {
		t.Fatalf("unmarshal response %s: %v", payload, err)
	}
}

func seedHost(t *testing.T, h *Host) {
	t.Helper()
	var resp GeneralResponse
	roundTrip(t, h, Request{Command: "exec", SQL: `
		CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		INSERT INTO people (name) VALUES ('alice');
	`}, &resp)
	if resp.Error != "" {
		t.Fatalf("seed: %s", resp.Error)
	}
}

func hostCount(t *testing.T, h *Host) float64 {
	t.Helper()
	var row RowResponse
	roundTrip(t, h, Request{Command: "get", SQL: "SELECT COUNT(*) FROM people"}, &row)
	if row.Error != "" {
		t.Fatalf("count: %s", row.Error)
	}
	return row.Row[0].(float64)
}

func TestPreparedStatementFlow(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var prep GeneralResponse
	roundTrip(t, h, Request{Command: "prepare", SQL: "INSERT INTO people (name) VALUES (?)"}, &prep)
	if prep.Error != "" || prep.StmtID == "" {
		t.Fatalf("prepare = %+v", prep)
	}

	var run RunResponse
	roundTrip(t, h, Request{Command: "run", StmtID: prep.StmtID, Args: []any{"bob"}}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}
	if run.RowsAffected != 1 || run.LastInsertID != 2 {
		t.Errorf("run = %+v", run)
	}
	roundTrip(t, h, Request{Command: "run", StmtID: prep.StmtID, Args: []any{"carol"}}, &run)
	if run.Error != "" {
		t.Fatalf("second run: %s", run.Error)
	}

	var rows RowsResponse
	roundTrip(t, h, Request{Command: "all", SQL: "SELECT id, name FROM people ORDER BY id"}, &rows)
	if rows.Error != "" {
		t.Fatalf("all: %s", rows.Error)
	}
	if len(rows.Columns) != 2 || rows.Columns[1] != "name" {
		t.Errorf("columns = %v", rows.Columns)
	}
	if len(rows.Rows) != 3 || rows.Rows[2][1] != "carol" {
		t.Errorf("rows = %v", rows.Rows)
	}

	var closed GeneralResponse
	roundTrip(t, h, Request{Command: "close_stmt", StmtID: prep.StmtID}, &closed)
	if closed.Error != "" {
		t.Fatalf("close_stmt: %s", closed.Error)
	}
	roundTrip(t, h, Request{Command: "run", StmtID: prep.StmtID, Args: []any{"dave"}}, &run)
	if !strings.Contains(run.Error, "statement not found") {
		t.Errorf("run after close = %+v", run)
	}
}

func TestOneShotGet(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var row RowResponse
	roundTrip(t, h, Request{Command: "get", SQL: "SELECT id, name FROM people WHERE name = ?", Args: []any{"alice"}}, &row)
	if row.Error != "" {
		t.Fatalf("get: %s", row.Error)
	}
	if !row.Found || row.Row[0] != float64(1) || row.Row[1] != "alice" {
		t.Errorf("get = %+v", row)
	}

	roundTrip(t, h, Request{Command: "get", SQL: "SELECT id FROM people WHERE name = ?", Args: []any{"nobody"}}, &row)
	if row.Error != "" {
		t.Fatalf("get: %s", row.Error)
	}
	if row.Found || row.Row != nil {
		t.Errorf("get with no row = %+v", row)
	}
}

func TestUntypedNumbersBindAsIntegers(t *testing.T) {
	h := newHost(t, engine.Options{})

	var row RowResponse
	roundTrip(t, h, Request{Command: "get", SQL: "SELECT typeof(?), typeof(?)", Args: []any{5, 5.25}}, &row)
	if row.Error != "" {
		t.Fatalf("get: %s", row.Error)
	}
	if row.Row[0] != "integer" || row.Row[1] != "real" {
		t.Errorf("typeof = %v", row.Row)
	}
}

func TestTypedArgumentsRoundTrip(t *testing.T) {
	h := newHost(t, engine.Options{})

	var resp GeneralResponse
	roundTrip(t, h, Request{Command: "exec", SQL: "CREATE TABLE blobs (id INTEGER PRIMARY KEY, payload BLOB, at DATETIME)"}, &resp)
	if resp.Error != "" {
		t.Fatalf("create: %s", resp.Error)
	}

	var run RunResponse
	roundTrip(t, h, Request{
		Command:  "run",
		SQL:      "INSERT INTO blobs (payload, at) VALUES (?, ?)",
		Args:     []any{"AAEC", "2025-03-14T09:26:53Z"},
		ArgTypes: []string{"Bytes", "DateTime"},
	}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}

	var row RowResponse
	roundTrip(t, h, Request{Command: "get", SQL: "SELECT typeof(payload), payload, at FROM blobs"}, &row)
	if row.Error != "" {
		t.Fatalf("get: %s", row.Error)
	}
	if row.Row[0] != "blob" {
		t.Errorf("typeof(payload) = %v", row.Row[0])
	}
	if row.Row[1] != "AAEC" {
		t.Errorf("payload over the wire = %v, want base64 AAEC", row.Row[1])
	}
	if s, ok := row.Row[2].(string); !ok || !strings.HasPrefix(s, "2025-03-14T09:26:53") {
		t.Errorf("at over the wire = %v", row.Row[2])
	}
}

func TestErrorsTravelInPayload(t *testing.T) {
	h := newHost(t, engine.Options{})

	var resp GeneralResponse
	roundTrip(t, h, Request{Command: "prepare", SQL: "NOT REALLY SQL"}, &resp)
	if resp.Error == "" {
		t.Errorf("prepare of junk succeeded")
	}

	roundTrip(t, h, Request{Command: "launch"}, &resp)
	if !strings.Contains(resp.Error, "unknown command") {
		t.Errorf("unknown command error = %q", resp.Error)
	}

	var run RunResponse
	roundTrip(t, h, Request{Command: "run", StmtID: "no-such-id"}, &run)
	if !strings.Contains(run.Error, "statement not found") {
		t.Errorf("missing statement error = %q", run.Error)
	}

	payload := h.HandleRequest([]byte("{not json"))
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("error response is not JSON: %s", payload)
	}
	if !strings.Contains(resp.Error, "unmarshaling request") {
		t.Errorf("malformed payload error = %q", resp.Error)
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var begin GeneralResponse
	roundTrip(t, h, Request{Command: "begin", Mode: "immediate"}, &begin)
	if begin.Error != "" || begin.TxID == "" {
		t.Fatalf("begin = %+v", begin)
	}

	var run RunResponse
	roundTrip(t, h, Request{Command: "run", SQL: "INSERT INTO people (name) VALUES ('bob')"}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}

	var done GeneralResponse
	roundTrip(t, h, Request{Command: "commit", TxID: begin.TxID}, &done)
	if done.Error != "" {
		t.Fatalf("commit: %s", done.Error)
	}
	if n := hostCount(t, h); n != 2 {
		t.Errorf("people = %v after commit, want 2", n)
	}

	roundTrip(t, h, Request{Command: "begin"}, &begin)
	if begin.Error != "" {
		t.Fatalf("begin: %s", begin.Error)
	}
	roundTrip(t, h, Request{Command: "run", SQL: "INSERT INTO people (name) VALUES ('carol')"}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}
	roundTrip(t, h, Request{Command: "rollback", TxID: begin.TxID}, &done)
	if done.Error != "" {
		t.Fatalf("rollback: %s", done.Error)
	}
	if n := hostCount(t, h); n != 2 {
		t.Errorf("people = %v after rollback, want 2", n)
	}

	roundTrip(t, h, Request{Command: "commit", TxID: begin.TxID}, &done)
	if !strings.Contains(done.Error, "not found") {
		t.Errorf("commit of completed tx = %q", done.Error)
	}
}

func TestNestedFramesOverBridge(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var outer, inner, resp GeneralResponse
	roundTrip(t, h, Request{Command: "begin"}, &outer)
	roundTrip(t, h, Request{Command: "begin"}, &inner)
	if outer.Error != "" || inner.Error != "" {
		t.Fatalf("begin = %q / %q", outer.Error, inner.Error)
	}

	var run RunResponse
	roundTrip(t, h, Request{Command: "run", SQL: "INSERT INTO people (name) VALUES ('bob')"}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}

	// Committing the outer frame ahead of the inner one is out of order; the
	// frame must survive the rejection.
	roundTrip(t, h, Request{Command: "commit", TxID: outer.TxID}, &resp)
	if resp.Error == "" {
		t.Fatalf("out-of-order commit succeeded")
	}

	roundTrip(t, h, Request{Command: "commit", TxID: inner.TxID}, &resp)
	if resp.Error != "" {
		t.Fatalf("inner commit: %s", resp.Error)
	}
	roundTrip(t, h, Request{Command: "rollback", TxID: outer.TxID}, &resp)
	if resp.Error != "" {
		t.Fatalf("outer rollback: %s", resp.Error)
	}

	if n := hostCount(t, h); n != 1 {
		t.Errorf("people = %v, want 1 (outer rollback discards inner commit)", n)
	}
}

func TestUnknownTransactionMode(t *testing.T) {
	h := newHost(t, engine.Options{})

	var begin GeneralResponse
	roundTrip(t, h, Request{Command: "begin", Mode: "chaotic"}, &begin)
	if !strings.Contains(begin.Error, "unknown transaction mode") {
		t.Errorf("begin with bad mode = %+v", begin)
	}
}

func TestCloseStmtIdempotent(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var prep GeneralResponse
	roundTrip(t, h, Request{Command: "prepare", SQL: "SELECT 1"}, &prep)
	if prep.Error != "" {
		t.Fatalf("prepare: %s", prep.Error)
	}

	var resp GeneralResponse
	roundTrip(t, h, Request{Command: "close_stmt", StmtID: prep.StmtID}, &resp)
	if resp.Error != "" {
		t.Fatalf("close_stmt: %s", resp.Error)
	}
	roundTrip(t, h, Request{Command: "close_stmt", StmtID: prep.StmtID}, &resp)
	if resp.Error != "" {
		t.Errorf("second close_stmt: %s", resp.Error)
	}
}

func TestPragmaCommand(t *testing.T) {
	h := newHost(t, engine.Options{})
	seedHost(t, h)

	var rows RowsResponse
	roundTrip(t, h, Request{Command: "pragma", SQL: "table_info(people)"}, &rows)
	if rows.Error != "" {
		t.Fatalf("pragma: %s", rows.Error)
	}
	if len(rows.Rows) != 2 {
		t.Fatalf("table_info rows = %d, want 2", len(rows.Rows))
	}

	nameCol := -1
	for i, c := range rows.Columns {
		if c == "name" {
			nameCol = i
		}
	}
	if nameCol < 0 {
		t.Fatalf("columns = %v", rows.Columns)
	}
	if rows.Rows[0][nameCol] != "id" || rows.Rows[1][nameCol] != "name" {
		t.Errorf("table_info = %v", rows.Rows)
	}
}

func TestCloseRollsEverythingBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")
	eng := engine.New()
	t.Cleanup(func() { eng.Shutdown() })

	db, err := database.Open(eng, engine.Options{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h := NewHost(db)
	seedHost(t, h)

	var begin GeneralResponse
	roundTrip(t, h, Request{Command: "begin"}, &begin)
	if begin.Error != "" {
		t.Fatalf("begin: %s", begin.Error)
	}
	var run RunResponse
	roundTrip(t, h, Request{Command: "run", SQL: "INSERT INTO people (name) VALUES ('bob')"}, &run)
	if run.Error != "" {
		t.Fatalf("run: %s", run.Error)
	}
	var prep GeneralResponse
	roundTrip(t, h, Request{Command: "prepare", SQL: "SELECT 1"}, &prep)
	if prep.Error != "" {
		t.Fatalf("prepare: %s", prep.Error)
	}

	var closed GeneralResponse
	roundTrip(t, h, Request{Command: "close"}, &closed)
	if closed.Error != "" {
		t.Fatalf("close: %s", closed.Error)
	}
	roundTrip(t, h, Request{Command: "close"}, &closed)
	if closed.Error != "" {
		t.Errorf("second close: %s", closed.Error)
	}

	var row RowResponse
	roundTrip(t, h, Request{Command: "get", SQL: "SELECT 1"}, &row)
	if !strings.Contains(row.Error, "host is closed") {
		t.Errorf("command after close = %+v", row)
	}

	// The in-flight insert must not have reached the file.
	db2, err := database.Open(eng, engine.Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	h2 := NewHost(db2)
	t.Cleanup(func() { h2.HandleRequest(mustMarshal(t, Request{Command: "close"})) })

	if n := hostCount(t, h2); n != 1 {
		t.Errorf("people = %v after close, want 1", n)
	}
}
