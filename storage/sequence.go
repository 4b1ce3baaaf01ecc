package storage

import (
	"fmt"

	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/symbol"
)

// SequenceColumn holds, for one aligned sequence, a bitmap per position and
// symbol of the ids carrying that symbol.
type SequenceColumn struct {
	name      string
	alphabet  *symbol.Alphabet
	reference []symbol.Symbol
	// positions[pos][symbol]
	positions [][]*bitmap.Bitmap
}

func newSequenceColumn(name string, alphabet *symbol.Alphabet, reference []symbol.Symbol) *SequenceColumn {
	positions := make([][]*bitmap.Bitmap, len(reference))
	for i := range positions {
		positions[i] = make([]*bitmap.Bitmap, alphabet.Len())
		for s := range positions[i] {
			positions[i][s] = bitmap.New()
		}
	}
	return &SequenceColumn{
		name:      name,
		alphabet:  alphabet,
		reference: reference,
		positions: positions,
	}
}

// Name returns the sequence name.
func (c *SequenceColumn) Name() string { return c.name }

// Alphabet returns the alphabet of the sequence.
func (c *SequenceColumn) Alphabet() *symbol.Alphabet { return c.alphabet }

// Length returns the number of positions, equal to the reference length.
func (c *SequenceColumn) Length() int { return len(c.reference) }

// ReferenceSymbol returns the reference symbol at the 0-based position.
func (c *SequenceColumn) ReferenceSymbol(pos int) symbol.Symbol { return c.reference[pos] }

// Reference returns the reference sequence as a string.
func (c *SequenceColumn) Reference() string {
	out := make([]byte, len(c.reference))
	for i, s := range c.reference {
		out[i] = c.alphabet.Char(s)
	}
	return string(out)
}

// Bitmap returns the ids carrying s at the 0-based position.
// The returned bitmap is shared and must not be modified.
func (c *SequenceColumn) Bitmap(pos int, s symbol.Symbol) (*bitmap.Bitmap, error) {
	if pos < 0 || pos >= len(c.positions) {
		return nil, fmt.Errorf("%w: position %d outside of sequence %q with length %d",
			ErrCorrupt, pos+1, c.name, len(c.positions))
	}
	return c.positions[pos][s], nil
}

// Position returns all symbol bitmaps at the 0-based position, indexed by
// symbol. The slice and the bitmaps are shared and must not be modified.
func (c *SequenceColumn) Position(pos int) []*bitmap.Bitmap {
	return c.positions[pos]
}

func (c *SequenceColumn) set(id uint32, seq []symbol.Symbol) {
	for pos, s := range seq {
		c.positions[pos][s].Add(id)
	}
}

func (c *SequenceColumn) setMissing(id uint32) {
	missing := c.alphabet.Missing()
	for pos := range c.positions {
		c.positions[pos][missing].Add(id)
	}
}

func (c *SequenceColumn) optimize() {
	for _, p := range c.positions {
		for _, b := range p {
			b.Optimize()
		}
	}
}
