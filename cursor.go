package sqlstmt

import (
	"math"
	"unsafe"
)

// deferredChunk is the initial buffer size of a column read with SQLGetData.
const deferredChunk = 64 << 10

// Column describes one result-set column.
type Column struct {
	Name     string
	SQLType  SQLSMALLINT
	Size     SQLULEN
	Nullable bool
	Kind     Kind
}

// cursor is the result-set side of a Statement: the described columns, the
// output buffer bound to each, and whether a row is currently materialized.
type cursor struct {
	columns     []Column
	buffers     []*ValueBuffer
	columnIndex map[string]int
	hasRow      bool
}

func (c *cursor) clearColumns() {
	c.columns = nil
	c.buffers = nil
	c.columnIndex = nil
	c.hasRow = false
}

// Columns returns the columns of the last query, in result order.
func (c *cursor) Columns() []Column {
	out := make([]Column, len(c.columns))
	copy(out, c.columns)
	return out
}

// bindColumns describes every result column, allocates its output buffer
// and binds it. An unsupported column type faults after the cursor has
// been closed.
func (s *Statement) bindColumns(numCols int) error {
	columns := make([]Column, numCols)
	buffers := make([]*ValueBuffer, numCols)
	index := make(map[string]int, numCols)

	colName := make([]byte, 256)
	for i := 0; i < numCols; i++ {
		colNum := SQLUSMALLINT(i + 1)
		nameLen, dataType, colSize, _, nullable, ret := DescribeCol(s.handle, colNum, colName)
		if !IsSuccess(ret) {
			return wrapDiag(ErrQuery, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
		}
		if int(nameLen) >= len(colName) {
			colName = make([]byte, int(nameLen)+1)
			nameLen, dataType, colSize, _, nullable, ret = DescribeCol(s.handle, colNum, colName)
			if !IsSuccess(ret) {
				return wrapDiag(ErrQuery, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
			}
		}
		name := string(colName[:nameLen])

		kind, ok := columnKind(dataType)
		if !ok {
			s.abandonCursor()
			fault(FaultUnsupportedType, "column %q has unsupported type %s", name, SQLTypeName(dataType))
		}

		var vb *ValueBuffer
		var cType SQLSMALLINT
		if kind == KindInteger {
			vb = newOutputBuffer(KindInteger, 0)
			cType = SQL_C_SBIGINT
		} else {
			_, octetLength, ret := ColAttribute(s.handle, colNum, SQL_DESC_OCTET_LENGTH, nil)
			if !IsSuccess(ret) {
				octetLength = 0
			}
			limit := s.conn.opts.maxColumnBuffer
			width := columnCapacity(octetLength, colSize, 0)
			if width > limit || (octetLength <= 0 && colSize == 0) {
				// too wide (or unknown) to bind; read in pieces on every fetch
				vb = newOutputBuffer(KindBytes, min(limit, deferredChunk))
				vb.deferred = true
			} else {
				vb = newOutputBuffer(KindBytes, width)
			}
			cType = SQL_C_BINARY
		}

		if !vb.deferred {
			ptr, bufLen := vb.valuePtr()
			if ret := BindCol(s.handle, colNum, cType, ptr, bufLen, &vb.length); !IsSuccess(ret) {
				return wrapDiag(ErrQuery, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
			}
		}

		columns[i] = Column{
			Name:     name,
			SQLType:  dataType,
			Size:     colSize,
			Nullable: nullable != 0,
			Kind:     kind,
		}
		buffers[i] = vb
		// first occurrence wins for duplicate names
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	s.columns = columns
	s.buffers = buffers
	s.columnIndex = index
	s.hasRow = false
	return nil
}

// readDeferred reads an unbound column of the current row with SQLGetData,
// growing its buffer until the whole value fits.
func (s *Statement) readDeferred(colNum SQLUSMALLINT, vb *ValueBuffer) error {
	total := 0
	for {
		if total == len(vb.data) {
			vb.reserve(2*len(vb.data), total)
		}
		avail := len(vb.data) - total
		var ind SQLLEN
		ret := GetData(s.handle, colNum, SQL_C_BINARY, uintptr(unsafe.Pointer(&vb.data[total])), SQLLEN(avail), &ind)
		if ret == SQL_NO_DATA {
			break
		}
		if !IsSuccess(ret) {
			return wrapDiag(ErrFetch, SQL_HANDLE_STMT, SQLHANDLE(s.handle))
		}
		if ind == SQL_NULL_DATA {
			vb.length = SQL_NULL_DATA
			return nil
		}
		if ind != SQL_NO_TOTAL && int(ind) <= avail {
			total += int(ind)
			break
		}

		// the piece filled the buffer; ind is what remained before it
		total += avail
		if ind != SQL_NO_TOTAL {
			vb.reserve(total+int(ind)-avail, total)
		}
	}
	vb.length = SQLLEN(total)
	return nil
}

// column returns the buffer of the named column of the current row.
func (s *Statement) column(name string) *ValueBuffer {
	if s.state != StateQueried || !s.hasRow {
		fault(FaultState, "no current row (state %s)", s.state)
	}
	i, ok := s.columnIndex[name]
	if !ok {
		fault(FaultUnknownColumn, "no column named %q", name)
	}
	return s.buffers[i]
}

func (s *Statement) nonNull(name string, kind Kind) *ValueBuffer {
	vb := s.column(name)
	if vb.kind != kind {
		fault(FaultTypeMismatch, "column %q holds %s, read as %s", name, vb.kind, kind)
	}
	if vb.IsNull() {
		fault(FaultNullColumn, "column %q is NULL", name)
	}
	return vb
}

// IsNull reports whether the named column of the current row is NULL.
func (s *Statement) IsNull(name string) bool {
	return s.column(name).IsNull()
}

// GetInt64 returns the named integer column of the current row.
func (s *Statement) GetInt64(name string) int64 {
	return s.nonNull(name, KindInteger).Int64()
}

// GetBool returns the named integer column as a boolean (non-zero is true).
func (s *Statement) GetBool(name string) bool {
	return s.GetInt64(name) != 0
}

// GetString returns the named text or binary column as a string.
func (s *Statement) GetString(name string) string {
	return string(s.nonNull(name, KindBytes).Bytes())
}

// GetBytes returns a copy of the named text or binary column.
func (s *Statement) GetBytes(name string) []byte {
	return s.nonNull(name, KindBytes).Bytes()
}

// Get reads the named column of the current row of s as T. Integer targets
// narrower than 64 bits fault when the value does not fit.
func Get[T Scalar](s *Statement, name string) T {
	var out T
	switch p := any(&out).(type) {
	case *int:
		*p = narrow[int](name, s.GetInt64(name), math.MinInt, math.MaxInt)
	case *int8:
		*p = narrow[int8](name, s.GetInt64(name), math.MinInt8, math.MaxInt8)
	case *int16:
		*p = narrow[int16](name, s.GetInt64(name), math.MinInt16, math.MaxInt16)
	case *int32:
		*p = narrow[int32](name, s.GetInt64(name), math.MinInt32, math.MaxInt32)
	case *int64:
		*p = s.GetInt64(name)
	case *uint8:
		*p = narrow[uint8](name, s.GetInt64(name), 0, math.MaxUint8)
	case *uint16:
		*p = narrow[uint16](name, s.GetInt64(name), 0, math.MaxUint16)
	case *uint32:
		*p = narrow[uint32](name, s.GetInt64(name), 0, math.MaxUint32)
	case *bool:
		*p = s.GetBool(name)
	case *string:
		*p = s.GetString(name)
	case *[]byte:
		*p = s.GetBytes(name)
	}
	return out
}
