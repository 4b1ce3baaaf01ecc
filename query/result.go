package query

import (
	"cmp"
	"slices"

	"github.com/hupe1980/silo/storage"
)

// FieldType is the value type of a result field.
type FieldType uint8

const (
	// FieldString values are strings, e.g. metadata and mutation names.
	FieldString FieldType = iota
	// FieldInt32 values are int32, e.g. int columns and positions.
	FieldInt32
	// FieldInt64 values are int64 counts.
	FieldInt64
	// FieldFloat values are float64, e.g. proportions.
	FieldFloat
	// FieldBool values are bools.
	FieldBool
	// FieldDate values are YYYY-MM-DD strings.
	FieldDate
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt32:
		return "int32"
	case FieldInt64:
		return "int64"
	case FieldFloat:
		return "float64"
	case FieldBool:
		return "bool"
	case FieldDate:
		return "date"
	}
	return "unknown"
}

func fieldTypeOf(t storage.ColumnType) FieldType {
	switch t {
	case storage.ColumnInt:
		return FieldInt32
	case storage.ColumnFloat:
		return FieldFloat
	case storage.ColumnBool:
		return FieldBool
	case storage.ColumnDate:
		return FieldDate
	}
	return FieldString
}

// Field describes one column of a result.
type Field struct {
	Name string
	Type FieldType
}

// Row holds the values of one result row in field order. Values are
// string, int32, int64, float64, bool or nil.
type Row []any

// Result is the materialized output of an action.
type Result struct {
	Fields []Field
	Rows   []Row
}

// Index returns the position of the named field or -1.
func (r *Result) Index(name string) int {
	return fieldIndex(r.Fields, name)
}

func fieldIndex(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// OrderBy sorts by Field, descending when Ascending is false.
type OrderBy struct {
	Field     string
	Ascending bool
}

// compareValues orders nil before every value. Both values must have the
// same dynamic type unless one is nil.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		return cmp.Compare(x, b.(string))
	case int32:
		return cmp.Compare(x, b.(int32))
	case int64:
		return cmp.Compare(x, b.(int64))
	case float64:
		return cmp.Compare(x, b.(float64))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

func compareRows(a, b Row) int {
	for i := range a {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// finalize applies ordering, offset and limit to rows. The sort is stable,
// so rows equal under the ordering keep the action's default order.
func finalize(fields []Field, rows []Row, orderBy []OrderBy, offset, limit int) []Row {
	if len(orderBy) > 0 {
		idx := make([]int, len(orderBy))
		for i, o := range orderBy {
			idx[i] = fieldIndex(fields, o.Field)
		}
		slices.SortStableFunc(rows, func(a, b Row) int {
			for i, o := range orderBy {
				c := compareValues(a[idx[i]], b[idx[i]])
				if c == 0 {
					continue
				}
				if !o.Ascending {
					return -c
				}
				return c
			}
			return 0
		})
	}

	if offset >= len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
