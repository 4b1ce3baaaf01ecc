package storage

import (
	"errors"

	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/symbol"
)

// ErrCorrupt is returned when partition data contradicts its schema.
var ErrCorrupt = errors.New("storage: corrupt partition")

// Partition is an immutable shard of sequences with its own bitmap indexes.
// A partition is shared read-only by all queries of a snapshot.
type Partition struct {
	schema        *Schema
	sequenceCount uint32
	nucleotide    []*SequenceColumn
	aminoAcid     []*SequenceColumn
	columns       []Column
	full          *bitmap.Bitmap
}

// Schema returns the schema the partition was built with.
func (p *Partition) Schema() *Schema { return p.schema }

// SequenceCount returns the number of sequences (rows) in the partition.
func (p *Partition) SequenceCount() uint32 { return p.sequenceCount }

// Full returns the ids [0, SequenceCount). The bitmap is shared.
func (p *Partition) Full() *bitmap.Bitmap { return p.full }

// Sequence returns the sequence column of the alphabet by name.
func (p *Partition) Sequence(a *symbol.Alphabet, name string) (*SequenceColumn, bool) {
	cols := p.nucleotide
	if a == symbol.AminoAcid {
		cols = p.aminoAcid
	}
	for _, c := range cols {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Sequences returns the sequence columns of the alphabet in schema order.
func (p *Partition) Sequences(a *symbol.Alphabet) []*SequenceColumn {
	if a == symbol.AminoAcid {
		return p.aminoAcid
	}
	return p.nucleotide
}

// Column returns the metadata column by name.
func (p *Partition) Column(name string) (Column, bool) {
	for _, c := range p.columns {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Columns returns the metadata columns in schema order.
func (p *Partition) Columns() []Column { return p.columns }
