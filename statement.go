package sqlstmt

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a Statement.
type State int

const (
	StateUnprepared State = iota
	StatePrepared
	StateQueried
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUnprepared:
		return "unprepared"
	case StatePrepared:
		return "prepared"
	case StateQueried:
		return "queried"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Statement is a server-side prepared statement together with the buffers
// bound to it. Parameters are addressed by zero-based index and result
// columns by name.
//
// Misuse (calling an operation in the wrong state, an out-of-range index,
// reading a column with the wrong type) panics with a *Fault. Failures
// reported by the server are returned as errors.
type Statement struct {
	conn   *Connection
	handle SQLHSTMT
	state  State
	sql    string

	paramCount uint
	params     []*ValueBuffer

	cursor

	rowsAffected int64
}

// NewStatement creates an unprepared statement on conn. The connection must
// be established.
func NewStatement(conn *Connection) *Statement {
	if conn == nil || !conn.IsConnected() {
		fault(FaultNotConnected, "statement requires a connected Connection")
	}
	return &Statement{conn: conn}
}

// State returns the current lifecycle state.
func (s *Statement) State() State { return s.state }

// SQL returns the prepared SQL text.
func (s *Statement) SQL() string { return s.sql }

// ParamCount returns the number of parameters fixed by Prepare.
func (s *Statement) ParamCount() uint { return s.paramCount }

// RowsAffected returns the row count reported by the last Execute.
func (s *Statement) RowsAffected() int64 { return s.rowsAffected }

func (s *Statement) requireState(op string, allowed ...State) {
	for _, st := range allowed {
		if s.state == st {
			return
		}
	}
	fault(FaultState, "%s not allowed in state %s", op, s.state)
}

// Prepare compiles sql on the server. paramCount must match the number of
// '?' placeholders. A finished statement can be prepared again; its handle
// is replaced.
func (s *Statement) Prepare(paramCount uint, sql string) error {
	s.conn.requireConnected()
	s.requireState("prepare", StateUnprepared, StateFinished)

	s.releaseHandle()
	s.clearColumns()
	s.params = nil
	s.rowsAffected = 0
	s.state = StateUnprepared

	var handle SQLHSTMT
	ret := AllocHandle(SQL_HANDLE_STMT, SQLHANDLE(s.conn.dbc), (*SQLHANDLE)(&handle))
	if !IsSuccess(ret) {
		return wrapDiag(ErrPrepare, SQL_HANDLE_DBC, SQLHANDLE(s.conn.dbc))
	}

	ret = Prepare(handle, sql)
	if !IsSuccess(ret) {
		err := wrapDiag(ErrPrepare, SQL_HANDLE_STMT, SQLHANDLE(handle))
		FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(handle))
		s.conn.log.Debugw("prepare failed", "sql", sql, "error", err)
		return err
	}

	// Non-fatal: some drivers do not support SQLNumParams
	var numParams SQLSMALLINT
	if ret := NumParams(handle, &numParams); IsSuccess(ret) && uint(numParams) != paramCount {
		s.conn.log.Warnw("parameter count differs from placeholders",
			"sql", sql, "paramCount", paramCount, "placeholders", numParams)
	}

	s.handle = handle
	s.sql = sql
	s.paramCount = paramCount
	s.params = make([]*ValueBuffer, paramCount)
	s.state = StatePrepared

	s.conn.metrics.recordPrepare()
	s.conn.log.Debugw("prepared", "sql", sql, "paramCount", paramCount)
	return nil
}

// BindNull binds SQL NULL to the parameter at index.
func (s *Statement) BindNull(index uint) error {
	return s.bind(index, NullValue())
}

// BindInt64 binds a 64-bit integer to the parameter at index.
func (s *Statement) BindInt64(index uint, v int64) error {
	return s.bind(index, IntegerValue(v))
}

// BindBool binds v as the integer 1 or 0.
func (s *Statement) BindBool(index uint, v bool) error {
	return s.bind(index, toValueBuffer(v))
}

// BindString binds v as character data.
func (s *Statement) BindString(index uint, v string) error {
	return s.bind(index, TextValue(v))
}

// BindBytes binds v as binary data. A nil slice binds an empty value.
func (s *Statement) BindBytes(index uint, v []byte) error {
	return s.bind(index, BytesValue(v))
}

// Bind binds any supported Go value. nil and a nil []byte bind NULL.
func (s *Statement) Bind(index uint, value any) error {
	s.requireState("bind", StatePrepared)
	s.checkIndex(index)
	return s.bind(index, toValueBuffer(value))
}

// BindValue binds v to the parameter at index of s.
func BindValue[T Scalar](s *Statement, index uint, v T) error {
	return s.Bind(index, v)
}

func (s *Statement) checkIndex(index uint) {
	if index >= s.paramCount {
		fault(FaultParamIndex, "parameter index %d out of range for %d parameters", index, s.paramCount)
	}
}

// bind hands the address of vb to the driver and stores it in the slot.
// The buffer stays referenced by s.params until the bindings are reset.
func (s *Statement) bind(index uint, vb *ValueBuffer) error {
	s.conn.requireConnected()
	s.requireState("bind", StatePrepared)
	s.checkIndex(index)

	cType, sqlType, colSize := vb.paramTypes()
	ptr, bufLen := vb.valuePtr()

	ret := BindParameter(
		s.handle,
		SQLUSMALLINT(index+1),
		SQL_PARAM_INPUT,
		cType,
		sqlType,
		colSize,
		0,
		ptr,
		bufLen,
		&vb.length,
	)
	if !IsSuccess(ret) {
		return wrapDiag(ErrBind, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
	}
	// the driver now reads vb at execution; the previous buffer is released
	s.params[index] = vb
	return nil
}

// send binds NULL to every unbound slot and executes the statement.
func (s *Statement) send(op error) error {
	for i, vb := range s.params {
		if vb == nil {
			if err := s.bind(uint(i), NullValue()); err != nil {
				return err
			}
		}
	}

	ret := Execute(s.handle)
	if !IsSuccess(ret) && ret != SQL_NO_DATA {
		return wrapDiag(op, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
	}
	return nil
}

// releaseParams drops the parameter bindings once the driver has consumed
// them.
func (s *Statement) releaseParams() {
	if ret := FreeStmt(s.handle, SQL_RESET_PARAMS); !IsSuccess(ret) {
		s.conn.log.Warnw("reset parameters failed", "sql", s.sql, "return", FormatReturnCode(ret))
	}
	s.params = nil
}

// Execute runs a statement that produces no result set. On success the
// statement is finished; bind again only after Reset.
func (s *Statement) Execute() (err error) {
	s.conn.requireConnected()
	s.requireState("execute", StatePrepared)

	start := time.Now()
	defer func() { s.conn.metrics.recordExecution("execute", start, err) }()

	if err := s.send(ErrExecute); err != nil {
		s.conn.log.Debugw("execute failed", "sql", s.sql, "error", err)
		return err
	}

	var rowCount SQLLEN
	if ret := RowCount(s.handle, &rowCount); IsSuccess(ret) {
		s.rowsAffected = int64(rowCount)
	}

	s.releaseParams()
	s.state = StateFinished
	s.conn.log.Debugw("executed", "sql", s.sql, "rowsAffected", s.rowsAffected)
	return nil
}

// Query runs a statement that produces a result set and binds an output
// buffer per column. Rows are read with Fetch.
func (s *Statement) Query() (err error) {
	s.conn.requireConnected()
	s.requireState("query", StatePrepared)

	start := time.Now()
	defer func() {
		// an unsupported column type aborts the query with a fault
		if r := recover(); r != nil {
			s.conn.metrics.recordExecution("query", start, ErrQuery)
			panic(r)
		}
		s.conn.metrics.recordExecution("query", start, err)
	}()

	if err := s.send(ErrQuery); err != nil {
		s.conn.log.Debugw("query failed", "sql", s.sql, "error", err)
		return err
	}
	s.releaseParams()

	var numCols SQLSMALLINT
	if ret := NumResultCols(s.handle, &numCols); !IsSuccess(ret) {
		s.abandonCursor()
		return wrapDiag(ErrQuery, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
	}
	if numCols == 0 {
		s.state = StateFinished
		return fmt.Errorf("%w: %w", ErrQuery, ErrNoResultSet)
	}

	if err := s.bindColumns(int(numCols)); err != nil {
		s.abandonCursor()
		return err
	}

	s.state = StateQueried
	s.conn.log.Debugw("queried", "sql", s.sql, "columns", len(s.columns))
	return nil
}

// Fetch advances to the next row. It returns false once the result set is
// exhausted, after which the statement is finished.
func (s *Statement) Fetch() (bool, error) {
	s.conn.requireConnected()
	s.requireState("fetch", StateQueried)
	s.hasRow = false

	ret := Fetch(s.handle)
	if ret == SQL_NO_DATA {
		s.closeCursor()
		s.state = StateFinished
		return false, nil
	}
	if !IsSuccess(ret) {
		return false, wrapDiag(ErrFetch, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
	}

	for i, vb := range s.buffers {
		if vb.deferred {
			if err := s.readDeferred(SQLUSMALLINT(i+1), vb); err != nil {
				return false, err
			}
			continue
		}
		// the server reported a width smaller than the value it sent
		if vb.Truncated() {
			fault(FaultTruncation, "column %q value of %d bytes exceeds buffer of %d bytes",
				s.columns[i].Name, vb.length, vb.Cap())
		}
	}

	s.hasRow = true
	s.conn.metrics.recordRow()
	return true, nil
}

// Reset closes any open cursor, drops bound parameters and columns, and
// returns the statement to the prepared state with the same SQL.
func (s *Statement) Reset() error {
	s.conn.requireConnected()
	if s.state == StateUnprepared {
		fault(FaultState, "reset not allowed in state %s", s.state)
	}

	var err error
	for _, option := range []SQLUSMALLINT{SQL_CLOSE, SQL_UNBIND, SQL_RESET_PARAMS} {
		if ret := FreeStmt(s.handle, option); !IsSuccess(ret) && err == nil {
			err = wrapDiag(ErrReset, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
		}
	}

	s.clearColumns()
	s.params = make([]*ValueBuffer, s.paramCount)
	s.rowsAffected = 0
	s.state = StatePrepared
	return err
}

// Close releases the statement handle and all buffers. It never fails and
// may be called in any state, more than once.
func (s *Statement) Close() {
	s.releaseHandle()
	s.clearColumns()
	s.params = nil
	s.paramCount = 0
	s.sql = ""
	s.state = StateUnprepared
}

func (s *Statement) releaseHandle() {
	if s.handle == 0 {
		return
	}
	// disconnecting freed every statement handle of the connection
	if !s.conn.IsConnected() {
		s.handle = 0
		return
	}
	if ret := FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(s.handle)); !IsSuccess(ret) {
		s.conn.log.Warnw("free statement handle failed", "sql", s.sql, "return", FormatReturnCode(ret))
	}
	s.handle = 0
}

// closeCursor closes the result set and unbinds its columns. The column
// metadata is kept so Columns still reports the finished result.
func (s *Statement) closeCursor() {
	if ret := CloseCursor(s.handle); !IsSuccess(ret) {
		s.conn.log.Warnw("close cursor failed", "sql", s.sql, "return", FormatReturnCode(ret))
	}
	if ret := FreeStmt(s.handle, SQL_UNBIND); !IsSuccess(ret) {
		s.conn.log.Warnw("unbind columns failed", "sql", s.sql, "return", FormatReturnCode(ret))
	}
	s.buffers = nil
}

// abandonCursor ends a query that could not be set up.
func (s *Statement) abandonCursor() {
	s.closeCursor()
	s.clearColumns()
	s.state = StateFinished
}
