package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/internal/conv"
	"github.com/hupe1980/silo/symbol"
)

// encoder writes the partition body with a sticky error.
type encoder struct {
	w       *bufio.Writer
	buf     [binary.MaxVarintLen64]byte
	written int64
	err     error
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(p)
	e.written += int64(n)
	e.err = err
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.buf[:], v)
	e.write(e.buf[:n])
}

func (e *encoder) varint(v int64) {
	n := binary.PutVarint(e.buf[:], v)
	e.write(e.buf[:n])
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.write([]byte(s))
}

func (e *encoder) bitmap(b *bitmap.Bitmap) {
	if e.err != nil {
		return
	}
	e.uvarint(b.SerializedSizeInBytes())
	if e.err != nil {
		return
	}
	n, err := b.WriteTo(e.w)
	e.written += n
	e.err = err
}

// WriteTo writes the partition in its binary form. Derived indexes (value
// bitmaps of metadata columns) are not written; ReadPartition rebuilds them.
func (p *Partition) WriteTo(w io.Writer) (int64, error) {
	e := &encoder{w: bufio.NewWriterSize(w, 64*1024)}

	e.uvarint(uint64(p.sequenceCount))
	for _, group := range [][]*SequenceColumn{p.nucleotide, p.aminoAcid} {
		e.uvarint(uint64(len(group)))
		for _, col := range group {
			e.string(col.name)
			e.uvarint(uint64(len(col.positions)))
			for _, pos := range col.positions {
				for _, b := range pos {
					e.bitmap(b)
				}
			}
		}
	}

	e.uvarint(uint64(len(p.columns)))
	for _, c := range p.columns {
		e.string(c.Name())
		e.uvarint(uint64(c.Type()))
		switch col := c.(type) {
		case *StringColumn:
			e.uvarint(uint64(len(col.dict)))
			for _, s := range col.dict {
				e.string(s)
			}
			e.uvarint(uint64(len(col.ids)))
			for _, id := range col.ids {
				e.varint(int64(id))
			}
		case *BoolColumn:
			e.uvarint(uint64(col.n))
			e.bitmap(col.trues)
			e.bitmap(col.falses)
			e.bitmap(col.nulls)
		case *IntColumn:
			encodeInts(e, col.values, col.nulls)
		case *DateColumn:
			encodeInts(e, col.values, col.nulls)
		case *FloatColumn:
			e.uvarint(uint64(len(col.values)))
			for _, v := range col.values {
				e.uvarint(math.Float64bits(v))
			}
			e.bitmap(col.nulls)
		default:
			return e.written, fmt.Errorf("storage: cannot encode column type %T", c)
		}
	}

	if e.err != nil {
		return e.written, e.err
	}
	return e.written, e.w.Flush()
}

func encodeInts(e *encoder, values []int32, nulls *bitmap.Bitmap) {
	e.uvarint(uint64(len(values)))
	for _, v := range values {
		e.varint(int64(v))
	}
	e.bitmap(nulls)
}

// decoder reads the partition body with a sticky error.
type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, err := binary.ReadVarint(d.r)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return v
}

// count reads a length and bounds it to guard allocations.
func (d *decoder) count(limit uint64) int {
	n := d.uvarint()
	if n > limit {
		d.fail("length %d exceeds limit %d", n, limit)
		return 0
	}
	c, err := conv.Uint64ToInt(n)
	if err != nil {
		d.fail("%v", err)
	}
	return c
}

func (d *decoder) string() string {
	n := d.count(1 << 20)
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
		return ""
	}
	return string(buf)
}

func (d *decoder) bitmap() *bitmap.Bitmap {
	n := d.count(1 << 32)
	if d.err != nil {
		return bitmap.New()
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
		return bitmap.New()
	}
	b := bitmap.New()
	if err := b.Roaring().UnmarshalBinary(buf); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return b
}

// checkPosition verifies that the symbol bitmaps of one position assign
// every sequence of the partition exactly one symbol: all ids lie in [0, n)
// and the cardinalities sum to n.
func (d *decoder) checkPosition(symbols []*bitmap.Bitmap, n int, sequence string, pos int) {
	if d.err != nil {
		return
	}
	var sum uint64
	for _, b := range symbols {
		if b.IsEmpty() {
			continue
		}
		if last := b.Roaring().Maximum(); uint64(last) >= uint64(n) {
			d.fail("sequence %q position %d holds id %d, partition has %d sequences", sequence, pos+1, last, n)
			return
		}
		sum += b.Cardinality()
	}
	if sum != uint64(n) {
		d.fail("sequence %q position %d stores %d values, partition has %d sequences", sequence, pos+1, sum, n)
	}
}

// ReadPartition decodes a partition written by WriteTo and checks it
// against schema.
func ReadPartition(r io.Reader, schema *Schema) (*Partition, error) {
	d := &decoder{r: bufio.NewReaderSize(r, 64*1024)}

	n := d.count(math.MaxUint32)
	p := &Partition{schema: schema, sequenceCount: uint32(n)}

	for _, group := range []struct {
		alphabet *symbol.Alphabet
		specs    []SequenceSpec
		dst      *[]*SequenceColumn
	}{
		{symbol.Nucleotide, schema.NucleotideSequences, &p.nucleotide},
		{symbol.AminoAcid, schema.AminoAcidSequences, &p.aminoAcid},
	} {
		count := d.count(uint64(len(group.specs)))
		if d.err == nil && count != len(group.specs) {
			d.fail("%d %s sequences, schema has %d", count, group.alphabet.LowerName(), len(group.specs))
		}
		for i := 0; i < count && d.err == nil; i++ {
			spec := group.specs[i]
			name := d.string()
			length := d.count(1 << 28)
			if d.err == nil && (name != spec.Name || length != len(spec.Reference)) {
				d.fail("sequence %q does not match schema sequence %q", name, spec.Name)
			}
			if d.err != nil {
				break
			}
			ref, err := group.alphabet.ParseSequence(spec.Reference)
			if err != nil {
				d.err = err
				break
			}
			col := &SequenceColumn{name: name, alphabet: group.alphabet, reference: ref}
			col.positions = make([][]*bitmap.Bitmap, length)
			for pos := range col.positions {
				col.positions[pos] = make([]*bitmap.Bitmap, group.alphabet.Len())
				for s := range col.positions[pos] {
					col.positions[pos][s] = d.bitmap()
				}
				d.checkPosition(col.positions[pos], n, name, pos)
			}
			*group.dst = append(*group.dst, col)
		}
	}

	count := d.count(uint64(len(schema.Columns)))
	if d.err == nil && count != len(schema.Columns) {
		d.fail("%d columns, schema has %d", count, len(schema.Columns))
	}
	for i := 0; i < count && d.err == nil; i++ {
		spec := schema.Columns[i]
		name := d.string()
		typ := ColumnType(d.uvarint())
		if d.err == nil && (name != spec.Name || typ != spec.Type) {
			d.fail("column %q (%s) does not match schema column %q (%s)", name, typ, spec.Name, spec.Type)
		}
		if d.err != nil {
			break
		}
		col := decodeColumn(d, spec)
		if d.err == nil && col.Len() != n {
			d.fail("column %q has %d rows, partition has %d", spec.Name, col.Len(), n)
		}
		p.columns = append(p.columns, col)
	}

	if d.err != nil {
		return nil, d.err
	}
	p.full = bitmap.Full(p.sequenceCount)
	return p, nil
}

func decodeColumn(d *decoder, spec ColumnSpec) Column {
	switch spec.Type {
	case ColumnString, ColumnLineage:
		col := newStringColumn(spec.Name, spec.Type)
		dict := make([]string, d.count(math.MaxUint32))
		for i := range dict {
			dict[i] = d.string()
		}
		rows := d.count(math.MaxUint32)
		for i := 0; i < rows && d.err == nil; i++ {
			id := d.varint()
			if id < -1 || id >= int64(len(dict)) {
				d.fail("column %q references dictionary entry %d of %d", spec.Name, id, len(dict))
				break
			}
			if id < 0 {
				col.append(nil)
				continue
			}
			col.append(&dict[id])
		}
		col.optimize()
		return col
	case ColumnBool:
		col := &BoolColumn{name: spec.Name, n: d.count(math.MaxUint32)}
		col.trues = d.bitmap()
		col.falses = d.bitmap()
		col.nulls = d.bitmap()
		return col
	case ColumnFloat:
		values := make([]float64, d.count(math.MaxUint32))
		for i := range values {
			values[i] = math.Float64frombits(d.uvarint())
		}
		nulls := d.bitmap()
		return &FloatColumn{name: spec.Name, values: values, nulls: nulls, index: buildNumericIndex(values, nulls)}
	default:
		values := make([]int32, d.count(math.MaxUint32))
		for i := range values {
			values[i] = int32(d.varint())
		}
		nulls := d.bitmap()
		ix := buildNumericIndex(values, nulls)
		if spec.Type == ColumnDate {
			return &DateColumn{name: spec.Name, values: values, nulls: nulls, index: ix}
		}
		return &IntColumn{name: spec.Name, values: values, nulls: nulls, index: ix}
	}
}
