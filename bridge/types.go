package bridge

// --- JSON structures for boundary communication ---

// Request is one command crossing the bridge. ArgTypes optionally names a
// column type tag per argument (see values.ParseColumnType) so byte slices
// and datetimes survive the JSON trip.
type Request struct {
	Command  string   `json:"command"`
	SQL      string   `json:"sql,omitempty"`
	Args     []any    `json:"args,omitempty"`
	ArgTypes []string `json:"arg_types,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	StmtID   string   `json:"stmt_id,omitempty"`
	TxID     string   `json:"tx_id,omitempty"`
}

// GeneralResponse answers commands without row results: prepare returns a
// statement ID, begin returns a transaction ID, exec / commit / rollback /
// close_stmt / close return only the error slot.
type GeneralResponse struct {
	StmtID string `json:"stmt_id,omitempty"`
	TxID   string `json:"tx_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RunResponse answers the run command.
type RunResponse struct {
	LastInsertID int64  `json:"last_insert_id"`
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}

// RowResponse answers the get command. Found distinguishes a row of NULLs
// from no row at all.
type RowResponse struct {
	Columns []string `json:"columns,omitempty"`
	Row     []any    `json:"row,omitempty"`
	Found   bool     `json:"found"`
	Error   string   `json:"error,omitempty"`
}

// RowsResponse answers the all and pragma commands.
type RowsResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
}
