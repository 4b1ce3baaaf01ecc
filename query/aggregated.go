package query

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/storage"
)

// Aggregated counts the matching sequences, optionally per distinct tuple
// of GroupBy column values.
type Aggregated struct {
	Options
	GroupBy []storage.ColumnSpec
}

func parseAggregated(obj map[string]any, schema *storage.Schema, opts Options) (*Aggregated, error) {
	a := &Aggregated{Options: opts}

	raw, ok := obj["groupByFields"]
	if !ok {
		return a, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, apierr.BadRequestf("groupByFields must be an array")
	}
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, apierr.BadRequestf("groupByFields may only contain strings")
		}
		spec, ok := schema.Column(name)
		if !ok {
			return nil, apierr.BadRequestf("The table does not contain the field %s", name)
		}
		if name == schema.PrimaryKey {
			return nil, apierr.BadRequestf("Cannot group by primary key field: '%s'", name)
		}
		a.GroupBy = append(a.GroupBy, spec)
	}
	return a, nil
}

func (a *Aggregated) Type() string { return "Aggregated" }

func (a *Aggregated) Fields() []Field {
	fields := make([]Field, 0, len(a.GroupBy)+1)
	for _, spec := range a.GroupBy {
		fields = append(fields, Field{Name: spec.Name, Type: fieldTypeOf(spec.Type)})
	}
	return append(fields, Field{Name: "count", Type: FieldInt64})
}

// groupCounts preserves first-seen order of the groups of one partition.
type groupCounts struct {
	index  map[string]int
	values [][]any
	counts []uint64
}

func newGroupCounts() *groupCounts {
	return &groupCounts{index: make(map[string]int)}
}

func (g *groupCounts) add(key []byte, values []any, count uint64) {
	if i, ok := g.index[string(key)]; ok {
		g.counts[i] += count
		return
	}
	g.index[string(key)] = len(g.values)
	g.values = append(g.values, values)
	g.counts = append(g.counts, count)
}

func (a *Aggregated) compute(p *storage.Partition, match *bitmap.Bitmap) (any, error) {
	if len(a.GroupBy) == 0 {
		return match.Cardinality(), nil
	}

	cols := make([]storage.Column, len(a.GroupBy))
	for i, spec := range a.GroupBy {
		col, ok := p.Column(spec.Name)
		if !ok {
			return nil, missingColumn(spec.Name)
		}
		cols[i] = col
	}

	groups := newGroupCounts()
	key := make([]byte, 0, 64)
	for id := range match.Iterator() {
		key = key[:0]
		values := make([]any, len(cols))
		for i, col := range cols {
			values[i] = col.Value(id)
			key = appendKey(key, values[i])
		}
		groups.add(key, values, 1)
	}
	return groups, nil
}

func (a *Aggregated) merge(partials []any) ([]Row, error) {
	if len(a.GroupBy) == 0 {
		var total uint64
		for _, p := range partials {
			n, ok := p.(uint64)
			if !ok {
				return nil, fmt.Errorf("query: unexpected partial %T", p)
			}
			total += n
		}
		return []Row{{int64(total)}}, nil
	}

	merged := newGroupCounts()
	key := make([]byte, 0, 64)
	for _, p := range partials {
		groups, ok := p.(*groupCounts)
		if !ok {
			return nil, fmt.Errorf("query: unexpected partial %T", p)
		}
		for i, values := range groups.values {
			key = key[:0]
			for _, v := range values {
				key = appendKey(key, v)
			}
			merged.add(key, values, groups.counts[i])
		}
	}

	rows := make([]Row, len(merged.values))
	for i, values := range merged.values {
		row := make(Row, 0, len(values)+1)
		row = append(row, values...)
		rows[i] = append(row, int64(merged.counts[i]))
	}
	n := len(a.GroupBy)
	slices.SortFunc(rows, func(x, y Row) int { return compareRows(x[:n], y[:n]) })
	return rows, nil
}

// appendKey appends an unambiguous encoding of v, tagged by its type.
func appendKey(dst []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		dst = append(dst, 1)
		dst = binary.AppendUvarint(dst, uint64(len(x)))
		return append(dst, x...)
	case int32:
		dst = append(dst, 2)
		return binary.AppendVarint(dst, int64(x))
	case float64:
		dst = append(dst, 3)
		return binary.AppendUvarint(dst, math.Float64bits(x))
	case bool:
		if x {
			return append(dst, 4, 1)
		}
		return append(dst, 4, 0)
	}
	return append(dst, 0)
}
