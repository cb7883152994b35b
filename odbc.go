package sqlstmt

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	odbcLib  uintptr
	initOnce sync.Once
	initErr  error
)

// ODBC function pointers - populated by purego
var (
	sqlAllocHandle    func(handleType SQLSMALLINT, inputHandle SQLHANDLE, outputHandle *SQLHANDLE) SQLRETURN
	sqlFreeHandle     func(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN
	sqlSetEnvAttr     func(env SQLHENV, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN
	sqlDriverConnect  func(dbc SQLHDBC, hwnd uintptr, inConnStr *byte, inConnStrLen SQLSMALLINT, outConnStr *byte, outConnStrMax SQLSMALLINT, outConnStrLen *SQLSMALLINT, driverCompletion SQLUSMALLINT) SQLRETURN
	sqlDisconnect     func(dbc SQLHDBC) SQLRETURN
	sqlSetConnectAttr func(dbc SQLHDBC, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN
	sqlGetInfo        func(dbc SQLHDBC, infoType SQLUSMALLINT, infoValue uintptr, bufferLength SQLSMALLINT, stringLength *SQLSMALLINT) SQLRETURN
	sqlExecDirect     func(stmt SQLHSTMT, stmtText *byte, textLength SQLINTEGER) SQLRETURN
	sqlPrepare        func(stmt SQLHSTMT, stmtText *byte, textLength SQLINTEGER) SQLRETURN
	sqlExecute        func(stmt SQLHSTMT) SQLRETURN
	sqlNumResultCols  func(stmt SQLHSTMT, columnCount *SQLSMALLINT) SQLRETURN
	sqlDescribeCol    func(stmt SQLHSTMT, colNum SQLUSMALLINT, colName *byte, bufferLen SQLSMALLINT, nameLen *SQLSMALLINT, dataType *SQLSMALLINT, colSize *SQLULEN, decDigits *SQLSMALLINT, nullable *SQLSMALLINT) SQLRETURN
	sqlColAttribute   func(stmt SQLHSTMT, colNum SQLUSMALLINT, fieldId SQLUSMALLINT, charAttr uintptr, bufferLen SQLSMALLINT, strLen *SQLSMALLINT, numAttr *SQLLEN) SQLRETURN
	sqlBindCol        func(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlBindParameter  func(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, paramValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlFetch          func(stmt SQLHSTMT) SQLRETURN
	sqlGetData        func(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlRowCount       func(stmt SQLHSTMT, rowCount *SQLLEN) SQLRETURN
	sqlNumParams      func(stmt SQLHSTMT, paramCount *SQLSMALLINT) SQLRETURN
	sqlGetDiagRec     func(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState *byte, nativeError *SQLINTEGER, msgText *byte, bufferLen SQLSMALLINT, textLen *SQLSMALLINT) SQLRETURN
	sqlCloseCursor    func(stmt SQLHSTMT) SQLRETURN
	sqlFreeStmt       func(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN
	sqlMoreResults    func(stmt SQLHSTMT) SQLRETURN
)

// libraryEnv names the environment variable that overrides the driver
// manager location.
const libraryEnv = "SQLSTMT_ODBC_LIBRARY"

// libraryPath returns the driver manager to load: the override when set,
// otherwise the first platform candidate that exists on disk, otherwise the
// last candidate for the dynamic loader to resolve.
func libraryPath() string {
	if path := os.Getenv(libraryEnv); path != "" {
		return path
	}
	candidates := libraryCandidates()
	for _, p := range candidates[:len(candidates)-1] {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[len(candidates)-1]
}

// initODBC loads the ODBC driver manager and registers all functions.
func initODBC() error {
	initOnce.Do(func() {
		libPath := libraryPath()

		odbcLib, initErr = loadODBCLibrary(libPath)
		if initErr != nil {
			initErr = fmt.Errorf("failed to load ODBC library %q: %w (set %s to override)", libPath, initErr, libraryEnv)
			return
		}

		purego.RegisterLibFunc(&sqlAllocHandle, odbcLib, "SQLAllocHandle")
		purego.RegisterLibFunc(&sqlFreeHandle, odbcLib, "SQLFreeHandle")
		purego.RegisterLibFunc(&sqlSetEnvAttr, odbcLib, "SQLSetEnvAttr")
		purego.RegisterLibFunc(&sqlDisconnect, odbcLib, "SQLDisconnect")
		purego.RegisterLibFunc(&sqlSetConnectAttr, odbcLib, "SQLSetConnectAttr")

		suffix := ansiSuffix
		purego.RegisterLibFunc(&sqlDriverConnect, odbcLib, "SQLDriverConnect"+suffix)
		purego.RegisterLibFunc(&sqlGetInfo, odbcLib, "SQLGetInfo"+suffix)
		purego.RegisterLibFunc(&sqlExecDirect, odbcLib, "SQLExecDirect"+suffix)
		purego.RegisterLibFunc(&sqlPrepare, odbcLib, "SQLPrepare"+suffix)
		purego.RegisterLibFunc(&sqlDescribeCol, odbcLib, "SQLDescribeCol"+suffix)
		purego.RegisterLibFunc(&sqlColAttribute, odbcLib, "SQLColAttribute"+suffix)
		purego.RegisterLibFunc(&sqlGetDiagRec, odbcLib, "SQLGetDiagRec"+suffix)

		purego.RegisterLibFunc(&sqlExecute, odbcLib, "SQLExecute")
		purego.RegisterLibFunc(&sqlNumResultCols, odbcLib, "SQLNumResultCols")
		purego.RegisterLibFunc(&sqlBindCol, odbcLib, "SQLBindCol")
		purego.RegisterLibFunc(&sqlBindParameter, odbcLib, "SQLBindParameter")
		purego.RegisterLibFunc(&sqlFetch, odbcLib, "SQLFetch")
		purego.RegisterLibFunc(&sqlGetData, odbcLib, "SQLGetData")
		purego.RegisterLibFunc(&sqlRowCount, odbcLib, "SQLRowCount")
		purego.RegisterLibFunc(&sqlNumParams, odbcLib, "SQLNumParams")
		purego.RegisterLibFunc(&sqlCloseCursor, odbcLib, "SQLCloseCursor")
		purego.RegisterLibFunc(&sqlFreeStmt, odbcLib, "SQLFreeStmt")
		purego.RegisterLibFunc(&sqlMoreResults, odbcLib, "SQLMoreResults")
	})
	return initErr
}

// AllocHandle allocates an ODBC handle
func AllocHandle(handleType SQLSMALLINT, inputHandle SQLHANDLE, outputHandle *SQLHANDLE) SQLRETURN {
	return sqlAllocHandle(handleType, inputHandle, outputHandle)
}

// FreeHandle frees an ODBC handle
func FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN {
	return sqlFreeHandle(handleType, handle)
}

// SetEnvAttr sets an environment attribute
func SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN {
	return sqlSetEnvAttr(env, attribute, value, stringLength)
}

// DriverConnect connects to a data source using a connection string
func DriverConnect(dbc SQLHDBC, hwnd uintptr, inConnStr string, outConnStr []byte, driverCompletion SQLUSMALLINT) (outLen SQLSMALLINT, ret SQLRETURN) {
	inBytes := append([]byte(inConnStr), 0)
	var outLenPtr SQLSMALLINT
	var outPtr *byte
	var outMax SQLSMALLINT
	if len(outConnStr) > 0 {
		outPtr = &outConnStr[0]
		outMax = SQLSMALLINT(len(outConnStr))
	}
	ret = sqlDriverConnect(dbc, hwnd, &inBytes[0], SQLSMALLINT(SQL_NTS), outPtr, outMax, &outLenPtr, driverCompletion)
	return outLenPtr, ret
}

// Disconnect disconnects from a data source
func Disconnect(dbc SQLHDBC) SQLRETURN {
	return sqlDisconnect(dbc)
}

// SetConnectAttr sets an integer connection attribute
func SetConnectAttr(dbc SQLHDBC, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN {
	return sqlSetConnectAttr(dbc, attribute, value, stringLength)
}

// SetConnectAttrString sets a character connection attribute such as
// SQL_ATTR_CURRENT_CATALOG.
func SetConnectAttrString(dbc SQLHDBC, attribute SQLINTEGER, value string) SQLRETURN {
	buf := append([]byte(value), 0)
	ret := sqlSetConnectAttr(dbc, attribute, uintptr(unsafe.Pointer(&buf[0])), SQLINTEGER(len(value)))
	runtime.KeepAlive(buf)
	return ret
}

// GetInfo retrieves driver/data source information
func GetInfo(dbc SQLHDBC, infoType SQLUSMALLINT, infoValue []byte) (stringLength SQLSMALLINT, ret SQLRETURN) {
	var strLen SQLSMALLINT
	ret = sqlGetInfo(dbc, infoType, uintptr(0), 0, &strLen)
	if !IsSuccess(ret) {
		return 0, ret
	}
	if len(infoValue) > 0 {
		ret = sqlGetInfo(dbc, infoType, uintptr(unsafe.Pointer(&infoValue[0])), SQLSMALLINT(len(infoValue)), &strLen)
		runtime.KeepAlive(infoValue)
	}
	return strLen, ret
}

// ExecDirect executes an SQL statement directly
func ExecDirect(stmt SQLHSTMT, query string) SQLRETURN {
	queryBytes := append([]byte(query), 0)
	return sqlExecDirect(stmt, &queryBytes[0], SQLINTEGER(SQL_NTS))
}

// Prepare prepares an SQL statement for execution
func Prepare(stmt SQLHSTMT, query string) SQLRETURN {
	queryBytes := append([]byte(query), 0)
	return sqlPrepare(stmt, &queryBytes[0], SQLINTEGER(SQL_NTS))
}

// Execute executes a prepared statement
func Execute(stmt SQLHSTMT) SQLRETURN {
	return sqlExecute(stmt)
}

// NumResultCols returns the number of columns in a result set
func NumResultCols(stmt SQLHSTMT, columnCount *SQLSMALLINT) SQLRETURN {
	return sqlNumResultCols(stmt, columnCount)
}

// DescribeCol describes a column in a result set
func DescribeCol(stmt SQLHSTMT, colNum SQLUSMALLINT, colName []byte) (nameLen SQLSMALLINT, dataType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, nullable SQLSMALLINT, ret SQLRETURN) {
	ret = sqlDescribeCol(stmt, colNum, &colName[0], SQLSMALLINT(len(colName)), &nameLen, &dataType, &colSize, &decDigits, &nullable)
	return
}

// ColAttribute returns a column attribute
func ColAttribute(stmt SQLHSTMT, colNum SQLUSMALLINT, fieldId SQLUSMALLINT, charAttr []byte) (strLen SQLSMALLINT, numAttr SQLLEN, ret SQLRETURN) {
	var charPtr uintptr
	var bufLen SQLSMALLINT
	if len(charAttr) > 0 {
		charPtr = uintptr(unsafe.Pointer(&charAttr[0]))
		bufLen = SQLSMALLINT(len(charAttr))
	}
	ret = sqlColAttribute(stmt, colNum, fieldId, charPtr, bufLen, &strLen, &numAttr)
	runtime.KeepAlive(charAttr)
	return
}

// BindCol binds an output buffer to a result set column. The buffer and the
// length/indicator word are written by every subsequent Fetch, so both must
// stay reachable until the column is unbound.
func BindCol(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	return sqlBindCol(stmt, colNum, targetType, targetValue, bufferLen, strLenOrInd)
}

// BindParameter binds a parameter to a statement. The value is read at
// execution time, not at bind time.
func BindParameter(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, paramValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	return sqlBindParameter(stmt, paramNum, ioType, valueType, paramType, colSize, decDigits, paramValue, bufferLen, strLenOrInd)
}

// Fetch fetches the next row from the result set
func Fetch(stmt SQLHSTMT) SQLRETURN {
	return sqlFetch(stmt)
}

// GetData reads part of a column of the current row that was not bound.
// Repeated calls return successive pieces of a long value; SQL_NO_DATA
// follows the last piece.
func GetData(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	return sqlGetData(stmt, colNum, targetType, targetValue, bufferLen, strLenOrInd)
}

// RowCount returns the number of rows affected by an UPDATE, INSERT, or DELETE
func RowCount(stmt SQLHSTMT, rowCount *SQLLEN) SQLRETURN {
	return sqlRowCount(stmt, rowCount)
}

// NumParams returns the number of parameters in a prepared statement
func NumParams(stmt SQLHSTMT, paramCount *SQLSMALLINT) SQLRETURN {
	return sqlNumParams(stmt, paramCount)
}

// GetDiagRec retrieves diagnostic records
func GetDiagRec(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState []byte, message []byte) (nativeError SQLINTEGER, msgLen SQLSMALLINT, ret SQLRETURN) {
	ret = sqlGetDiagRec(handleType, handle, recNum, &sqlState[0], &nativeError, &message[0], SQLSMALLINT(len(message)), &msgLen)
	return
}

// CloseCursor closes an open cursor
func CloseCursor(stmt SQLHSTMT) SQLRETURN {
	return sqlCloseCursor(stmt)
}

// FreeStmt frees resources associated with a statement
func FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN {
	return sqlFreeStmt(stmt, option)
}

// MoreResults checks for more result sets
func MoreResults(stmt SQLHSTMT) SQLRETURN {
	return sqlMoreResults(stmt)
}
