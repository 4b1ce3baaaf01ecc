package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/silo/internal/bitmap"
)

// Column is a metadata column of a partition.
type Column interface {
	Name() string
	Type() ColumnType
	// Len returns the number of rows.
	Len() int
	// Value returns the row value as string, int32, float64, bool or nil.
	// Dates are returned as YYYY-MM-DD strings.
	Value(row uint32) any
	// Nulls returns the ids without a value. The bitmap is shared.
	Nulls() *bitmap.Bitmap
}

// StringColumn is a dictionary encoded string column with one bitmap per
// distinct value. Lineage columns use the same layout.
type StringColumn struct {
	name    string
	typ     ColumnType
	dict    []string
	lookup  map[string]int32
	ids     []int32
	bitmaps []*bitmap.Bitmap
	nulls   *bitmap.Bitmap
}

func newStringColumn(name string, typ ColumnType) *StringColumn {
	return &StringColumn{
		name:   name,
		typ:    typ,
		lookup: make(map[string]int32),
		nulls:  bitmap.New(),
	}
}

func (c *StringColumn) Name() string          { return c.name }
func (c *StringColumn) Type() ColumnType      { return c.typ }
func (c *StringColumn) Len() int              { return len(c.ids) }
func (c *StringColumn) Nulls() *bitmap.Bitmap { return c.nulls }

func (c *StringColumn) Value(row uint32) any {
	id := c.ids[row]
	if id < 0 {
		return nil
	}
	return c.dict[id]
}

// Dictionary returns the distinct values in insertion order.
func (c *StringColumn) Dictionary() []string { return c.dict }

// ValueBitmap returns the ids of the i-th dictionary value. Shared.
func (c *StringColumn) ValueBitmap(i int) *bitmap.Bitmap { return c.bitmaps[i] }

// Equal returns the ids whose value is v. The result is shared when v exists.
func (c *StringColumn) Equal(v string) *bitmap.Bitmap {
	id, ok := c.lookup[v]
	if !ok {
		return bitmap.New()
	}
	return c.bitmaps[id]
}

func (c *StringColumn) append(v *string) {
	row := uint32(len(c.ids))
	if v == nil {
		c.ids = append(c.ids, -1)
		c.nulls.Add(row)
		return
	}
	id, ok := c.lookup[*v]
	if !ok {
		id = int32(len(c.dict))
		c.lookup[*v] = id
		c.dict = append(c.dict, *v)
		c.bitmaps = append(c.bitmaps, bitmap.New())
	}
	c.ids = append(c.ids, id)
	c.bitmaps[id].Add(row)
}

func (c *StringColumn) optimize() {
	for _, b := range c.bitmaps {
		b.Optimize()
	}
	c.nulls.Optimize()
}

// BoolColumn stores true and false ids as bitmaps.
type BoolColumn struct {
	name   string
	n      int
	trues  *bitmap.Bitmap
	falses *bitmap.Bitmap
	nulls  *bitmap.Bitmap
}

func newBoolColumn(name string) *BoolColumn {
	return &BoolColumn{name: name, trues: bitmap.New(), falses: bitmap.New(), nulls: bitmap.New()}
}

func (c *BoolColumn) Name() string          { return c.name }
func (c *BoolColumn) Type() ColumnType      { return ColumnBool }
func (c *BoolColumn) Len() int              { return c.n }
func (c *BoolColumn) Nulls() *bitmap.Bitmap { return c.nulls }

func (c *BoolColumn) Value(row uint32) any {
	switch {
	case c.trues.Contains(row):
		return true
	case c.falses.Contains(row):
		return false
	}
	return nil
}

// Equal returns the ids whose value is v. Shared.
func (c *BoolColumn) Equal(v bool) *bitmap.Bitmap {
	if v {
		return c.trues
	}
	return c.falses
}

func (c *BoolColumn) append(v *bool) {
	row := uint32(c.n)
	c.n++
	switch {
	case v == nil:
		c.nulls.Add(row)
	case *v:
		c.trues.Add(row)
	default:
		c.falses.Add(row)
	}
}

type numeric interface {
	~int32 | ~float64
}

// numericIndex keeps (value, row) pairs sorted by value for range lookups.
// Invariant: len(values) == len(rows); nulls are not indexed.
type numericIndex[T numeric] struct {
	values []T
	rows   []uint32
}

func buildNumericIndex[T numeric](values []T, nulls *bitmap.Bitmap) numericIndex[T] {
	ix := numericIndex[T]{
		values: make([]T, 0, len(values)),
		rows:   make([]uint32, 0, len(values)),
	}
	for row, v := range values {
		if nulls.Contains(uint32(row)) {
			continue
		}
		ix.values = append(ix.values, v)
		ix.rows = append(ix.rows, uint32(row))
	}
	sort.Sort(&ix)
	return ix
}

func (ix *numericIndex[T]) Len() int { return len(ix.values) }

func (ix *numericIndex[T]) Less(i, j int) bool {
	if ix.values[i] == ix.values[j] {
		return ix.rows[i] < ix.rows[j]
	}
	return ix.values[i] < ix.values[j]
}

func (ix *numericIndex[T]) Swap(i, j int) {
	ix.values[i], ix.values[j] = ix.values[j], ix.values[i]
	ix.rows[i], ix.rows[j] = ix.rows[j], ix.rows[i]
}

// between returns the rows with from <= value <= to. A nil bound is open.
func (ix *numericIndex[T]) between(from, to *T) *bitmap.Bitmap {
	lo, hi := 0, len(ix.values)
	if from != nil {
		lo = sort.Search(len(ix.values), func(i int) bool { return ix.values[i] >= *from })
	}
	if to != nil {
		hi = sort.Search(len(ix.values), func(i int) bool { return ix.values[i] > *to })
	}
	out := bitmap.New()
	if lo < hi {
		out.Roaring().AddMany(ix.rows[lo:hi])
	}
	return out
}

// IntColumn is a 32-bit integer column.
type IntColumn struct {
	name   string
	values []int32
	nulls  *bitmap.Bitmap
	index  numericIndex[int32]
}

func (c *IntColumn) Name() string          { return c.name }
func (c *IntColumn) Type() ColumnType      { return ColumnInt }
func (c *IntColumn) Len() int              { return len(c.values) }
func (c *IntColumn) Nulls() *bitmap.Bitmap { return c.nulls }

func (c *IntColumn) Value(row uint32) any {
	if c.nulls.Contains(row) {
		return nil
	}
	return c.values[row]
}

// Between returns the ids with from <= value <= to; nil bounds are open.
func (c *IntColumn) Between(from, to *int32) *bitmap.Bitmap { return c.index.between(from, to) }

// Equal returns the ids with value v.
func (c *IntColumn) Equal(v int32) *bitmap.Bitmap { return c.index.between(&v, &v) }

// FloatColumn is a 64-bit float column.
type FloatColumn struct {
	name   string
	values []float64
	nulls  *bitmap.Bitmap
	index  numericIndex[float64]
}

func (c *FloatColumn) Name() string          { return c.name }
func (c *FloatColumn) Type() ColumnType      { return ColumnFloat }
func (c *FloatColumn) Len() int              { return len(c.values) }
func (c *FloatColumn) Nulls() *bitmap.Bitmap { return c.nulls }

func (c *FloatColumn) Value(row uint32) any {
	if c.nulls.Contains(row) {
		return nil
	}
	return c.values[row]
}

// Between returns the ids with from <= value <= to; nil bounds are open.
func (c *FloatColumn) Between(from, to *float64) *bitmap.Bitmap { return c.index.between(from, to) }

// Equal returns the ids with value v.
func (c *FloatColumn) Equal(v float64) *bitmap.Bitmap { return c.index.between(&v, &v) }

// DateLayout is the textual date format of date columns and filters.
const DateLayout = "2006-01-02"

// ParseDate converts a YYYY-MM-DD date to days since 1970-01-01.
func ParseDate(s string) (int32, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("storage: invalid date %q", s)
	}
	return int32(t.Unix() / 86400), nil
}

// FormatDate converts days since 1970-01-01 to YYYY-MM-DD.
func FormatDate(days int32) string {
	return time.Unix(int64(days)*86400, 0).UTC().Format(DateLayout)
}

// DateColumn stores dates as days since 1970-01-01.
type DateColumn struct {
	name   string
	values []int32
	nulls  *bitmap.Bitmap
	index  numericIndex[int32]
}

func (c *DateColumn) Name() string          { return c.name }
func (c *DateColumn) Type() ColumnType      { return ColumnDate }
func (c *DateColumn) Len() int              { return len(c.values) }
func (c *DateColumn) Nulls() *bitmap.Bitmap { return c.nulls }

func (c *DateColumn) Value(row uint32) any {
	if c.nulls.Contains(row) {
		return nil
	}
	return FormatDate(c.values[row])
}

// Between returns the ids with from <= date <= to; nil bounds are open.
func (c *DateColumn) Between(from, to *int32) *bitmap.Bitmap { return c.index.between(from, to) }
