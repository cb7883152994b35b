package sqlstmt

import (
	"fmt"
	"math"
)

// Scalar lists the Go types that can be bound as parameters and read back
// from result columns.
type Scalar interface {
	int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | bool | string | []byte
}

// toValueBuffer converts a Go value into an input buffer. nil binds NULL.
// Types outside the two wire categories fault.
func toValueBuffer(value any) *ValueBuffer {
	if value == nil {
		return NullValue()
	}

	switch v := value.(type) {
	case bool:
		if v {
			return IntegerValue(1)
		}
		return IntegerValue(0)
	case int:
		return IntegerValue(int64(v))
	case int8:
		return IntegerValue(int64(v))
	case int16:
		return IntegerValue(int64(v))
	case int32:
		return IntegerValue(int64(v))
	case int64:
		return IntegerValue(v)
	case uint8:
		return IntegerValue(int64(v))
	case uint16:
		return IntegerValue(int64(v))
	case uint32:
		return IntegerValue(int64(v))
	case string:
		return TextValue(v)
	case []byte:
		if v == nil {
			return NullValue()
		}
		return BytesValue(v)
	default:
		fault(FaultUnsupportedType, "cannot bind value of type %T", value)
		return nil
	}
}

// columnKind maps a described SQL type onto a buffer kind. The second result
// is false for types the engine cannot decode.
func columnKind(sqlType SQLSMALLINT) (Kind, bool) {
	switch sqlType {
	case SQL_BIT, SQL_TINYINT, SQL_SMALLINT, SQL_INTEGER, SQL_BIGINT:
		return KindInteger, true
	case SQL_CHAR, SQL_VARCHAR, SQL_LONGVARCHAR,
		SQL_WCHAR, SQL_WVARCHAR, SQL_WLONGVARCHAR,
		SQL_BINARY, SQL_VARBINARY, SQL_LONGVARBINARY:
		return KindBytes, true
	default:
		return KindNull, false
	}
}

// columnCapacity sizes a bytes column buffer from the octet length the
// driver reports, falling back to four bytes per character of the declared
// size. The result is clamped to [1, limit].
func columnCapacity(octetLength SQLLEN, colSize SQLULEN, limit int) int {
	n := int64(octetLength)
	if n <= 0 {
		if colSize > math.MaxInt64/4 {
			n = math.MaxInt64
		} else {
			n = int64(colSize) * 4
		}
	}
	if limit > 0 && n > int64(limit) {
		n = int64(limit)
	}
	if n < 1 {
		n = 1
	}
	return int(n)
}

// narrow converts an integer column value to T, faulting when it does not fit.
func narrow[T int | int8 | int16 | int32 | uint8 | uint16 | uint32](column string, v int64, lo, hi int64) T {
	if v < lo || v > hi {
		var zero T
		fault(FaultOutOfRange, "column %q value %d does not fit in %T", column, v, zero)
	}
	return T(v)
}

// SQLTypeName returns a human-readable name for an SQL type
func SQLTypeName(sqlType SQLSMALLINT) string {
	switch sqlType {
	case SQL_CHAR:
		return "CHAR"
	case SQL_VARCHAR:
		return "VARCHAR"
	case SQL_LONGVARCHAR:
		return "LONGVARCHAR"
	case SQL_WCHAR:
		return "WCHAR"
	case SQL_WVARCHAR:
		return "WVARCHAR"
	case SQL_WLONGVARCHAR:
		return "WLONGVARCHAR"
	case SQL_DECIMAL:
		return "DECIMAL"
	case SQL_NUMERIC:
		return "NUMERIC"
	case SQL_SMALLINT:
		return "SMALLINT"
	case SQL_INTEGER:
		return "INTEGER"
	case SQL_REAL:
		return "REAL"
	case SQL_FLOAT:
		return "FLOAT"
	case SQL_DOUBLE:
		return "DOUBLE"
	case SQL_BIT:
		return "BIT"
	case SQL_TINYINT:
		return "TINYINT"
	case SQL_BIGINT:
		return "BIGINT"
	case SQL_BINARY:
		return "BINARY"
	case SQL_VARBINARY:
		return "VARBINARY"
	case SQL_LONGVARBINARY:
		return "LONGVARBINARY"
	case SQL_TYPE_DATE:
		return "DATE"
	case SQL_TYPE_TIME:
		return "TIME"
	case SQL_TYPE_TIMESTAMP:
		return "TIMESTAMP"
	case SQL_DATETIME:
		return "DATETIME"
	case SQL_GUID:
		return "GUID"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", sqlType)
	}
}
