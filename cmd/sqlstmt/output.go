package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slingdata-io/sqlstmt"
)

// rowWriter renders a result set. Values are nil, int64, string or []byte.
type rowWriter interface {
	Header(columns []sqlstmt.Column) error
	Row(values []any) error
	Flush() error
}

func newRowWriter(format string, w io.Writer) rowWriter {
	switch format {
	case "json":
		return &jsonWriter{enc: json.NewEncoder(w)}
	case "msgpack":
		return &msgpackWriter{enc: msgpack.NewEncoder(w)}
	default:
		return &tableWriter{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
	}
}

type tableWriter struct {
	tw *tabwriter.Writer
}

func (t *tableWriter) Header(columns []sqlstmt.Column) error {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	_, err := fmt.Fprintln(t.tw, strings.Join(names, "\t"))
	return err
}

func (t *tableWriter) Row(values []any) error {
	cells := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
			cells[i] = "NULL"
		case []byte:
			cells[i] = fmt.Sprintf("0x%x", x)
		default:
			cells[i] = fmt.Sprint(x)
		}
	}
	_, err := fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
	return err
}

func (t *tableWriter) Flush() error {
	return t.tw.Flush()
}

// jsonWriter emits one object per row.
type jsonWriter struct {
	enc     *json.Encoder
	columns []string
}

func (j *jsonWriter) Header(columns []sqlstmt.Column) error {
	j.columns = columnNames(columns)
	return nil
}

func (j *jsonWriter) Row(values []any) error {
	return j.enc.Encode(rowMap(j.columns, values))
}

func (j *jsonWriter) Flush() error { return nil }

// msgpackWriter emits one map per row.
type msgpackWriter struct {
	enc     *msgpack.Encoder
	columns []string
}

func (m *msgpackWriter) Header(columns []sqlstmt.Column) error {
	m.columns = columnNames(columns)
	m.enc.SetSortMapKeys(true)
	return nil
}

func (m *msgpackWriter) Row(values []any) error {
	if err := m.enc.Encode(rowMap(m.columns, values)); err != nil {
		return fmt.Errorf("msgpack encoding: %w", err)
	}
	return nil
}

func (m *msgpackWriter) Flush() error { return nil }

func columnNames(columns []sqlstmt.Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func rowMap(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))
	for i, name := range columns {
		if _, dup := row[name]; !dup {
			row[name] = values[i]
		}
	}
	return row
}

// readRow reads the current row of s. Binary columns are returned as
// []byte, character columns as string.
func readRow(s *sqlstmt.Statement, columns []sqlstmt.Column) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		if s.IsNull(c.Name) {
			continue
		}
		switch {
		case c.Kind == sqlstmt.KindInteger:
			values[i] = s.GetInt64(c.Name)
		case isBinary(c.SQLType):
			values[i] = s.GetBytes(c.Name)
		default:
			values[i] = s.GetString(c.Name)
		}
	}
	return values
}

func isBinary(t sqlstmt.SQLSMALLINT) bool {
	return t == sqlstmt.SQL_BINARY || t == sqlstmt.SQL_VARBINARY || t == sqlstmt.SQL_LONGVARBINARY
}
