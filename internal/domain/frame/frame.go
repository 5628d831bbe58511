// Package frame provides the small column-named table every provider produces
// and the reconciler consumes.
//
// Cells hold time.Time, float64, string or nil (null). Integer and float32
// values are widened to float64 on Append so numeric checks stay uniform.
package frame

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is accepted when a date column holds strings.
const DateLayout = "2006-01-02"

// Frame is an in-memory table. It is not safe for concurrent mutation; once
// handed to a reader it should be treated as read-only.
type Frame struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates an empty frame with the given columns.
func New(name string, columns ...string) *Frame {
	f := &Frame{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		f.index[c] = i
	}
	return f
}

// Name returns the table name used in errors and logs.
func (f *Frame) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Append adds one row; len(values) must equal the column count.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("%w: %s: got %d values for %d columns", ErrArity, f.name, len(values), len(f.columns))
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = normalize(v)
	}
	f.rows = append(f.rows, row)
	return nil
}

// Len returns the row count; a nil frame has zero rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.columns...)
}

// Has reports whether the column exists.
func (f *Frame) Has(column string) bool {
	if f == nil {
		return false
	}
	_, ok := f.index[column]
	return ok
}

// Require returns a *SchemaError for the first missing column.
func (f *Frame) Require(columns ...string) error {
	for _, c := range columns {
		if !f.Has(c) {
			return &SchemaError{Table: f.Name(), Column: c}
		}
	}
	return nil
}

// Value returns the raw cell, or nil if the column is unknown.
func (f *Frame) Value(row int, column string) any {
	i, ok := f.index[column]
	if !ok {
		return nil
	}
	return f.rows[row][i]
}

// Float returns a numeric cell.
func (f *Frame) Float(row int, column string) (float64, bool) {
	v, ok := f.Value(row, column).(float64)
	return v, ok
}

// String returns a string cell.
func (f *Frame) String(row int, column string) (string, bool) {
	v, ok := f.Value(row, column).(string)
	return v, ok
}

// Time returns a time cell; string cells in DateLayout or RFC 3339 are parsed.
func (f *Frame) Time(row int, column string) (time.Time, bool) {
	switch v := f.Value(row, column).(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{DateLayout, time.RFC3339Nano} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// NumericColumns lists, in order, the columns whose non-null cells are all
// float64. Columns with no values at all count as numeric.
func (f *Frame) NumericColumns(exclude ...string) []string {
	if f == nil {
		return nil
	}
	skip := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		skip[c] = true
	}
	var out []string
	for i, c := range f.columns {
		if skip[c] {
			continue
		}
		numeric := true
		for _, row := range f.rows {
			if row[i] == nil {
				continue
			}
			if _, ok := row[i].(float64); !ok {
				numeric = false
				break
			}
		}
		if numeric {
			out = append(out, c)
		}
	}
	return out
}

// Records returns the rows as column-keyed maps, with times in DateLayout.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		rec := make(map[string]any, len(f.columns))
		for i, c := range f.columns {
			v := f.rows[r][i]
			if t, ok := v.(time.Time); ok {
				v = t.Format(DateLayout)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case *float64:
		if n == nil {
			return nil
		}
		return *n
	case json.Number:
		if x, err := n.Float64(); err == nil {
			return x
		}
		return n.String()
	default:
		return v
	}
}
