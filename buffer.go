package sqlstmt

import (
	"unsafe"
)

// Kind tags the content of a ValueBuffer.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ValueBuffer is a typed memory cell handed to the driver, either as an input
// parameter or as an output column. The driver reads or writes the value and
// the length/indicator word through raw pointers, so a ValueBuffer must not
// be replaced while a binding to it is live.
//
// The integer value and the byte length are separate fields. For bytes the
// value is data[:length] and cap is len(data).
type ValueBuffer struct {
	kind   Kind
	i      int64
	data   []byte
	length SQLLEN

	// text marks bytes bound as character data rather than binary.
	text bool

	// deferred marks an output column left unbound and read with
	// SQLGetData after each fetch. Its data grows to fit the value.
	deferred bool
}

// NullValue returns an input buffer holding SQL NULL.
func NullValue() *ValueBuffer {
	return &ValueBuffer{kind: KindNull, length: SQL_NULL_DATA}
}

// IntegerValue returns an input buffer holding v.
func IntegerValue(v int64) *ValueBuffer {
	return &ValueBuffer{kind: KindInteger, i: v, length: SQLLEN(unsafe.Sizeof(v))}
}

// BytesValue returns an input buffer holding a copy of b. Zero bytes are
// preserved; the length is explicit.
func BytesValue(b []byte) *ValueBuffer {
	return newBytesValue(b, false)
}

// TextValue returns an input buffer holding s, bound as character data.
func TextValue(s string) *ValueBuffer {
	return newBytesValue([]byte(s), true)
}

func newBytesValue(b []byte, text bool) *ValueBuffer {
	// at least one byte so the driver always gets a valid pointer
	data := make([]byte, max(len(b), 1))
	copy(data, b)
	return &ValueBuffer{kind: KindBytes, data: data, length: SQLLEN(len(b)), text: text}
}

// newOutputBuffer allocates a column buffer the driver fills on every fetch.
func newOutputBuffer(kind Kind, capacity int) *ValueBuffer {
	vb := &ValueBuffer{kind: kind, length: SQL_NULL_DATA}
	if kind == KindBytes {
		vb.data = make([]byte, max(capacity, 1))
	}
	return vb
}

// reserve grows a bytes buffer to at least n bytes, keeping the first keep
// bytes. Only unbound buffers may grow; the driver holds no address to them.
func (v *ValueBuffer) reserve(n, keep int) {
	if n <= len(v.data) {
		return
	}
	grown := make([]byte, n)
	copy(grown, v.data[:keep])
	v.data = grown
}

// Kind returns the buffer's tag.
func (v *ValueBuffer) Kind() Kind { return v.kind }

// IsNull reports whether the buffer holds SQL NULL.
func (v *ValueBuffer) IsNull() bool {
	return v.kind == KindNull || v.length == SQL_NULL_DATA
}

// Cap returns the byte capacity of a bytes buffer.
func (v *ValueBuffer) Cap() int { return len(v.data) }

// Len returns the current byte length of a bytes buffer, or -1 for NULL.
func (v *ValueBuffer) Len() int { return int(v.length) }

// Truncated reports whether the driver produced more bytes than fit.
func (v *ValueBuffer) Truncated() bool {
	if v.kind != KindBytes {
		return false
	}
	return v.length == SQL_NO_TOTAL || v.length > SQLLEN(len(v.data))
}

// Int64 returns the integer value. Reading a non-integer buffer faults.
func (v *ValueBuffer) Int64() int64 {
	if v.kind != KindInteger {
		fault(FaultTypeMismatch, "read %s buffer as integer", v.kind)
	}
	return v.i
}

// Bytes returns a copy of the current value. Reading a non-bytes buffer
// faults, as does reading a value the driver truncated.
func (v *ValueBuffer) Bytes() []byte {
	if v.kind != KindBytes {
		fault(FaultTypeMismatch, "read %s buffer as bytes", v.kind)
	}
	if v.Truncated() {
		fault(FaultTruncation, "value of %d bytes exceeds buffer of %d bytes", v.length, len(v.data))
	}
	if v.length <= 0 {
		return []byte{}
	}
	out := make([]byte, v.length)
	copy(out, v.data[:v.length])
	return out
}

// valuePtr returns the address and size the driver reads from or writes to.
func (v *ValueBuffer) valuePtr() (uintptr, SQLLEN) {
	switch v.kind {
	case KindInteger:
		return uintptr(unsafe.Pointer(&v.i)), SQLLEN(unsafe.Sizeof(v.i))
	case KindBytes:
		return uintptr(unsafe.Pointer(&v.data[0])), SQLLEN(len(v.data))
	default:
		return 0, 0
	}
}

// paramTypes returns the C type, SQL type and column size used to bind the
// buffer as an input parameter.
func (v *ValueBuffer) paramTypes() (cType, sqlType SQLSMALLINT, colSize SQLULEN) {
	switch {
	case v.kind == KindInteger:
		return SQL_C_SBIGINT, SQL_BIGINT, 20
	case v.kind == KindBytes && v.text:
		return SQL_C_CHAR, SQL_VARCHAR, SQLULEN(len(v.data))
	case v.kind == KindBytes:
		return SQL_C_BINARY, SQL_VARBINARY, SQLULEN(len(v.data))
	default:
		return SQL_C_CHAR, SQL_VARCHAR, 1
	}
}
