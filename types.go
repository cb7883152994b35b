package sqlstmt

// ODBC Handle types (opaque pointers)
type SQLHANDLE uintptr
type SQLHENV SQLHANDLE
type SQLHDBC SQLHANDLE
type SQLHSTMT SQLHANDLE

// ODBC Integer types
type SQLSMALLINT int16
type SQLUSMALLINT uint16
type SQLINTEGER int32
type SQLLEN int64   // 64-bit for portability across platforms
type SQLULEN uint64 // 64-bit for portability across platforms
type SQLRETURN SQLSMALLINT

// Handle type identifiers
const (
	SQL_HANDLE_ENV  SQLSMALLINT = 1
	SQL_HANDLE_DBC  SQLSMALLINT = 2
	SQL_HANDLE_STMT SQLSMALLINT = 3
)

// Return codes
const (
	SQL_SUCCESS           SQLRETURN = 0
	SQL_SUCCESS_WITH_INFO SQLRETURN = 1
	SQL_ERROR             SQLRETURN = -1
	SQL_INVALID_HANDLE    SQLRETURN = -2
	SQL_NO_DATA           SQLRETURN = 100
	SQL_NEED_DATA         SQLRETURN = 99
	SQL_STILL_EXECUTING   SQLRETURN = 2
)

// Null handle constant
const SQL_NULL_HANDLE SQLHANDLE = 0

// ODBC version constants
const SQL_OV_ODBC3 = 3

// Environment attributes
const SQL_ATTR_ODBC_VERSION SQLINTEGER = 200

// Connection attributes
const (
	SQL_ATTR_LOGIN_TIMEOUT   SQLINTEGER = 103
	SQL_ATTR_CURRENT_CATALOG SQLINTEGER = 109
)

// String terminator
const SQL_NTS SQLINTEGER = -3

// Length/indicator values
const (
	SQL_NULL_DATA SQLLEN = -1
	SQL_NO_TOTAL  SQLLEN = -4
)

// SQLDriverConnect options
const SQL_DRIVER_NOPROMPT SQLUSMALLINT = 0

// SQL data types
const (
	SQL_UNKNOWN_TYPE   SQLSMALLINT = 0
	SQL_CHAR           SQLSMALLINT = 1
	SQL_NUMERIC        SQLSMALLINT = 2
	SQL_DECIMAL        SQLSMALLINT = 3
	SQL_INTEGER        SQLSMALLINT = 4
	SQL_SMALLINT       SQLSMALLINT = 5
	SQL_FLOAT          SQLSMALLINT = 6
	SQL_REAL           SQLSMALLINT = 7
	SQL_DOUBLE         SQLSMALLINT = 8
	SQL_DATETIME       SQLSMALLINT = 9
	SQL_VARCHAR        SQLSMALLINT = 12
	SQL_TYPE_DATE      SQLSMALLINT = 91
	SQL_TYPE_TIME      SQLSMALLINT = 92
	SQL_TYPE_TIMESTAMP SQLSMALLINT = 93
	SQL_LONGVARCHAR    SQLSMALLINT = -1
	SQL_BINARY         SQLSMALLINT = -2
	SQL_VARBINARY      SQLSMALLINT = -3
	SQL_LONGVARBINARY  SQLSMALLINT = -4
	SQL_BIGINT         SQLSMALLINT = -5
	SQL_TINYINT        SQLSMALLINT = -6
	SQL_BIT            SQLSMALLINT = -7
	SQL_WCHAR          SQLSMALLINT = -8
	SQL_WVARCHAR       SQLSMALLINT = -9
	SQL_WLONGVARCHAR   SQLSMALLINT = -10
	SQL_GUID           SQLSMALLINT = -11
)

// C data type identifiers for binding
const SQL_SIGNED_OFFSET SQLSMALLINT = -20

const (
	SQL_C_CHAR    = SQL_CHAR
	SQL_C_BINARY  = SQL_BINARY
	SQL_C_SBIGINT = SQL_BIGINT + SQL_SIGNED_OFFSET // -25
)

// Parameter input/output type
const SQL_PARAM_INPUT SQLSMALLINT = 1

// Free statement options
const (
	SQL_CLOSE        SQLUSMALLINT = 0
	SQL_DROP         SQLUSMALLINT = 1
	SQL_UNBIND       SQLUSMALLINT = 2
	SQL_RESET_PARAMS SQLUSMALLINT = 3
)

// Column attribute identifiers
const SQL_DESC_OCTET_LENGTH SQLUSMALLINT = 1013

// SQLGetInfo information types
const (
	SQL_DRIVER_NAME SQLUSMALLINT = 6
	SQL_DBMS_NAME   SQLUSMALLINT = 17
	SQL_DBMS_VER    SQLUSMALLINT = 18
)

// IsSuccess checks if the return code indicates success
func IsSuccess(ret SQLRETURN) bool {
	return ret == SQL_SUCCESS || ret == SQL_SUCCESS_WITH_INFO
}
