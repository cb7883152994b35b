package sqlstmt

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents an ODBC error with diagnostic information from the driver.
// It implements the error interface and provides SQLState, native error code,
// and a human-readable message.
type Error struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (native error: %d)", e.SQLState, e.Message, e.NativeError)
}

// Is reports whether target matches this error's SQLState.
// This allows using errors.Is to check for specific ODBC errors.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.SQLState == t.SQLState
	}
	return false
}

// DiagRecord represents a single diagnostic record from ODBC
type DiagRecord struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Errors represents multiple ODBC errors
type Errors []Error

// Error implements the error interface for multiple errors
func (e Errors) Error() string {
	if len(e) == 0 {
		return "unknown ODBC error"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes every record so errors.As finds the first *Error.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i := range e {
		out[i] = &e[i]
	}
	return out
}

// GetDiagRecords retrieves all diagnostic records for a handle
func GetDiagRecords(handleType SQLSMALLINT, handle SQLHANDLE) []DiagRecord {
	var records []DiagRecord
	sqlState := make([]byte, 6)
	message := make([]byte, 1024)

	for i := SQLSMALLINT(1); ; i++ {
		nativeError, msgLen, ret := GetDiagRec(handleType, handle, i, sqlState, message)
		if !IsSuccess(ret) {
			break
		}
		if int(msgLen) > len(message) {
			msgLen = SQLSMALLINT(len(message))
		}
		records = append(records, DiagRecord{
			SQLState:    string(sqlState[:5]),
			NativeError: int32(nativeError),
			Message:     string(message[:msgLen]),
		})
	}
	return records
}

// NewError creates an Error from diagnostic records
func NewError(handleType SQLSMALLINT, handle SQLHANDLE) error {
	records := GetDiagRecords(handleType, handle)
	if len(records) == 0 {
		return &Error{
			SQLState: SQLStateGeneralError,
			Message:  "unknown ODBC error",
		}
	}
	if len(records) == 1 {
		return &Error{
			SQLState:    records[0].SQLState,
			NativeError: records[0].NativeError,
			Message:     records[0].Message,
		}
	}
	errs := make(Errors, len(records))
	for i, rec := range records {
		errs[i] = Error{
			SQLState:    rec.SQLState,
			NativeError: rec.NativeError,
			Message:     rec.Message,
		}
	}
	return errs
}

// Operation sentinels. Failures reported by the driver are returned as
// fmt.Errorf("%w: %w", ErrX, diag) so callers can match both the operation
// and the SQLState.
var (
	ErrConnection  = errors.New("sqlstmt: connection failed")
	ErrPrepare     = errors.New("sqlstmt: prepare failed")
	ErrBind        = errors.New("sqlstmt: bind failed")
	ErrExecute     = errors.New("sqlstmt: execute failed")
	ErrQuery       = errors.New("sqlstmt: query failed")
	ErrNoResultSet = errors.New("sqlstmt: statement produced no result set")
	ErrFetch       = errors.New("sqlstmt: fetch failed")
	ErrReset       = errors.New("sqlstmt: reset failed")
)

func wrapDiag(op error, handleType SQLSMALLINT, handle SQLHANDLE) error {
	return fmt.Errorf("%w: %w", op, NewError(handleType, handle))
}

// SQLState constants for common errors.
// These are the standard ODBC SQLSTATE codes and can be used with errors.Is.
const (
	// Connection errors (08xxx)
	SQLStateConnectionFailure  = "08001" // Unable to connect
	SQLStateConnectionNotOpen  = "08003" // Connection not open
	SQLStateConnectionRejected = "08004" // Connection rejected by server
	SQLStateConnectionError    = "08S01" // Communication link failure

	// Warning states (01xxx)
	SQLStateDataTruncation = "01004" // Data truncated

	// Data errors (22xxx)
	SQLStateStringTruncation = "22001" // String data right truncation
	SQLStateNumericOverflow  = "22003" // Numeric value out of range

	// Constraint violations (23xxx)
	SQLStateConstraintViolation = "23000" // Integrity constraint violation

	// Cursor state (24xxx)
	SQLStateInvalidCursorState = "24000" // Invalid cursor state

	// Syntax/access errors (42xxx)
	SQLStateSyntaxError    = "42000" // Syntax error or access violation
	SQLStateTableNotFound  = "42S02" // Table not found
	SQLStateColumnNotFound = "42S22" // Column not found

	// General errors (HYxxx)
	SQLStateGeneralError          = "HY000" // General error
	SQLStateFunctionSequenceError = "HY010" // Function sequence error
	SQLStateTimeout               = "HYT00" // Timeout expired
)

func firstSQLState(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.SQLState
	}
	return ""
}

// IsConnectionError reports whether err indicates a connection problem.
// Connection errors have SQLState codes starting with "08".
func IsConnectionError(err error) bool {
	return strings.HasPrefix(firstSQLState(err), "08")
}

// IsDataTruncation reports whether err indicates data truncation.
func IsDataTruncation(err error) bool {
	state := firstSQLState(err)
	return state == SQLStateDataTruncation || state == SQLStateStringTruncation
}

// FormatReturnCode returns a string representation of an ODBC return code
func FormatReturnCode(ret SQLRETURN) string {
	switch ret {
	case SQL_SUCCESS:
		return "SQL_SUCCESS"
	case SQL_SUCCESS_WITH_INFO:
		return "SQL_SUCCESS_WITH_INFO"
	case SQL_ERROR:
		return "SQL_ERROR"
	case SQL_INVALID_HANDLE:
		return "SQL_INVALID_HANDLE"
	case SQL_NO_DATA:
		return "SQL_NO_DATA"
	case SQL_NEED_DATA:
		return "SQL_NEED_DATA"
	case SQL_STILL_EXECUTING:
		return "SQL_STILL_EXECUTING"
	default:
		return fmt.Sprintf("SQLRETURN(%d)", ret)
	}
}

// FaultKind classifies a programming fault.
type FaultKind int

const (
	FaultState FaultKind = iota + 1
	FaultParamIndex
	FaultUnknownColumn
	FaultNullColumn
	FaultTypeMismatch
	FaultOutOfRange
	FaultUnsupportedType
	FaultTruncation
	FaultNotConnected
	FaultAlreadyConnected
)

var faultKindNames = map[FaultKind]string{
	FaultState:            "invalid state",
	FaultParamIndex:       "parameter index out of range",
	FaultUnknownColumn:    "unknown column",
	FaultNullColumn:       "null column",
	FaultTypeMismatch:     "type mismatch",
	FaultOutOfRange:       "value out of range",
	FaultUnsupportedType:  "unsupported type",
	FaultTruncation:       "data truncated",
	FaultNotConnected:     "not connected",
	FaultAlreadyConnected: "already connected",
}

func (k FaultKind) String() string {
	if name, ok := faultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is the panic value for API misuse: calling an operation in the wrong
// state, reading a column with the wrong type, and similar contract
// violations. Faults are not returned as errors.
type Fault struct {
	Kind    FaultKind
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("sqlstmt fault (%s): %s", f.Kind, f.Message)
}

func fault(kind FaultKind, format string, args ...any) {
	panic(&Fault{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// CatchFault runs fn and returns the *Fault it panicked with, or nil.
// Panics that are not faults are re-raised.
func CatchFault(fn func()) (f *Fault) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			if f, ok = r.(*Fault); !ok {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}
