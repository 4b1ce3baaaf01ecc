package storage

import (
	"fmt"
	"time"

	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/internal/conv"
	"github.com/hupe1980/silo/symbol"
)

// Row is one already aligned sequence record handed to a PartitionBuilder.
// Sequences absent from the row are stored as the missing symbol at every
// position.
type Row struct {
	Values     map[string]any
	Nucleotide map[string]string
	AminoAcid  map[string]string
}

// PartitionBuilder materialises partitions from aligned rows.
// It is not safe for concurrent use.
type PartitionBuilder struct {
	schema     *Schema
	n          uint32
	nucleotide []*SequenceColumn
	aminoAcid  []*SequenceColumn
	columns    []columnBuilder
}

// NewPartitionBuilder creates a builder for partitions of schema.
func NewPartitionBuilder(schema *Schema) (*PartitionBuilder, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	b := &PartitionBuilder{schema: schema}
	for _, seq := range schema.NucleotideSequences {
		ref, _ := symbol.Nucleotide.ParseSequence(seq.Reference)
		b.nucleotide = append(b.nucleotide, newSequenceColumn(seq.Name, symbol.Nucleotide, ref))
	}
	for _, seq := range schema.AminoAcidSequences {
		ref, _ := symbol.AminoAcid.ParseSequence(seq.Reference)
		b.aminoAcid = append(b.aminoAcid, newSequenceColumn(seq.Name, symbol.AminoAcid, ref))
	}
	for _, spec := range schema.Columns {
		b.columns = append(b.columns, newColumnBuilder(spec))
	}
	return b, nil
}

// Len returns the number of rows added so far.
func (b *PartitionBuilder) Len() int { return int(b.n) }

// Add appends a row. On error the builder is left unchanged.
func (b *PartitionBuilder) Add(row Row) error {
	for name := range row.Values {
		if _, ok := b.schema.Column(name); !ok {
			return fmt.Errorf("storage: unknown column %q", name)
		}
	}
	values := make([]any, len(b.columns))
	for i, cb := range b.columns {
		v, err := cb.check(row.Values[cb.spec().Name])
		if err != nil {
			return err
		}
		values[i] = v
	}

	nuc, err := parseRowSequences(b.nucleotide, row.Nucleotide)
	if err != nil {
		return err
	}
	aa, err := parseRowSequences(b.aminoAcid, row.AminoAcid)
	if err != nil {
		return err
	}

	id := b.n
	for i, cb := range b.columns {
		cb.append(values[i])
	}
	for i, col := range b.nucleotide {
		if nuc[i] == nil {
			col.setMissing(id)
		} else {
			col.set(id, nuc[i])
		}
	}
	for i, col := range b.aminoAcid {
		if aa[i] == nil {
			col.setMissing(id)
		} else {
			col.set(id, aa[i])
		}
	}
	b.n++
	return nil
}

func parseRowSequences(cols []*SequenceColumn, seqs map[string]string) ([][]symbol.Symbol, error) {
	for name := range seqs {
		found := false
		for _, c := range cols {
			if c.name == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("storage: unknown sequence %q", name)
		}
	}
	out := make([][]symbol.Symbol, len(cols))
	for i, c := range cols {
		raw, ok := seqs[c.name]
		if !ok {
			continue
		}
		if len(raw) != c.Length() {
			return nil, fmt.Errorf("storage: sequence %q has length %d, reference has length %d",
				c.name, len(raw), c.Length())
		}
		seq, err := c.alphabet.ParseSequence(raw)
		if err != nil {
			return nil, err
		}
		out[i] = seq
	}
	return out, nil
}

// Build seals the added rows into a Partition. The builder must not be used
// afterwards.
func (b *PartitionBuilder) Build() *Partition {
	p := &Partition{
		schema:        b.schema,
		sequenceCount: b.n,
		nucleotide:    b.nucleotide,
		aminoAcid:     b.aminoAcid,
		full:          bitmap.Full(b.n),
	}
	for _, col := range b.nucleotide {
		col.optimize()
	}
	for _, col := range b.aminoAcid {
		col.optimize()
	}
	for _, cb := range b.columns {
		p.columns = append(p.columns, cb.build())
	}
	b.nucleotide, b.aminoAcid, b.columns = nil, nil, nil
	return p
}

type columnBuilder interface {
	spec() ColumnSpec
	check(v any) (any, error)
	append(v any)
	build() Column
}

func newColumnBuilder(spec ColumnSpec) columnBuilder {
	switch spec.Type {
	case ColumnString, ColumnLineage:
		return &stringBuilder{col: newStringColumn(spec.Name, spec.Type)}
	case ColumnBool:
		return &boolBuilder{col: newBoolColumn(spec.Name)}
	case ColumnFloat:
		return &floatBuilder{s: spec, nulls: bitmap.New()}
	default:
		return &intBuilder{s: spec, nulls: bitmap.New()}
	}
}

func typeError(spec ColumnSpec, v any) error {
	return fmt.Errorf("storage: column %q of type %s cannot hold %T value %v", spec.Name, spec.Type, v, v)
}

type stringBuilder struct{ col *StringColumn }

func (b *stringBuilder) spec() ColumnSpec { return ColumnSpec{Name: b.col.name, Type: b.col.typ} }

func (b *stringBuilder) check(v any) (any, error) {
	switch s := v.(type) {
	case nil:
		return (*string)(nil), nil
	case string:
		return &s, nil
	case *string:
		return s, nil
	}
	return nil, typeError(b.spec(), v)
}

func (b *stringBuilder) append(v any) { b.col.append(v.(*string)) }

func (b *stringBuilder) build() Column {
	b.col.optimize()
	return b.col
}

type boolBuilder struct{ col *BoolColumn }

func (b *boolBuilder) spec() ColumnSpec { return ColumnSpec{Name: b.col.name, Type: ColumnBool} }

func (b *boolBuilder) check(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return (*bool)(nil), nil
	case bool:
		return &x, nil
	case *bool:
		return x, nil
	}
	return nil, typeError(b.spec(), v)
}

func (b *boolBuilder) append(v any) { b.col.append(v.(*bool)) }

func (b *boolBuilder) build() Column {
	b.col.trues.Optimize()
	b.col.falses.Optimize()
	b.col.nulls.Optimize()
	return b.col
}

// intBuilder builds int and date columns; dates are stored as days.
type intBuilder struct {
	s      ColumnSpec
	values []int32
	nulls  *bitmap.Bitmap
}

func (b *intBuilder) spec() ColumnSpec { return b.s }

func (b *intBuilder) check(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b.s.Type == ColumnDate {
		switch d := v.(type) {
		case string:
			days, err := ParseDate(d)
			if err != nil {
				return nil, err
			}
			return days, nil
		case time.Time:
			return int32(d.UTC().Truncate(24*time.Hour).Unix() / 86400), nil
		}
		return nil, typeError(b.s, v)
	}
	i, ok := toInt32(v)
	if !ok {
		return nil, typeError(b.s, v)
	}
	return i, nil
}

func (b *intBuilder) append(v any) {
	if v == nil {
		b.nulls.Add(uint32(len(b.values)))
		b.values = append(b.values, 0)
		return
	}
	b.values = append(b.values, v.(int32))
}

func (b *intBuilder) build() Column {
	b.nulls.Optimize()
	ix := buildNumericIndex(b.values, b.nulls)
	if b.s.Type == ColumnDate {
		return &DateColumn{name: b.s.Name, values: b.values, nulls: b.nulls, index: ix}
	}
	return &IntColumn{name: b.s.Name, values: b.values, nulls: b.nulls, index: ix}
}

type floatBuilder struct {
	s      ColumnSpec
	values []float64
	nulls  *bitmap.Bitmap
}

func (b *floatBuilder) spec() ColumnSpec { return b.s }

func (b *floatBuilder) check(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	if i, ok := toInt32(v); ok {
		return float64(i), nil
	}
	return nil, typeError(b.s, v)
}

func (b *floatBuilder) append(v any) {
	if v == nil {
		b.nulls.Add(uint32(len(b.values)))
		b.values = append(b.values, 0)
		return
	}
	b.values = append(b.values, v.(float64))
}

func (b *floatBuilder) build() Column {
	b.nulls.Optimize()
	return &FloatColumn{name: b.s.Name, values: b.values, nulls: b.nulls, index: buildNumericIndex(b.values, b.nulls)}
}

func toInt32(v any) (int32, bool) {
	var (
		i   int32
		err error
	)
	switch x := v.(type) {
	case int:
		i, err = conv.Int64ToInt32(int64(x))
	case int32:
		return x, true
	case int64:
		i, err = conv.Int64ToInt32(x)
	case uint32:
		i, err = conv.Int64ToInt32(int64(x))
	case float64:
		i, err = conv.Float64ToInt32(x)
	default:
		return 0, false
	}
	return i, err == nil
}
