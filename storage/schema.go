package storage

import (
	"errors"
	"fmt"

	"github.com/hupe1980/silo/symbol"
)

// ColumnType is the type of a metadata column.
type ColumnType uint8

const (
	ColumnString ColumnType = iota
	ColumnInt
	ColumnFloat
	ColumnBool
	ColumnDate
	// ColumnLineage is an indexed string column whose values are lineage names
	// resolved through a lineage index.
	ColumnLineage
)

var columnTypeNames = [...]string{
	ColumnString:  "string",
	ColumnInt:     "int",
	ColumnFloat:   "float",
	ColumnBool:    "bool",
	ColumnDate:    "date",
	ColumnLineage: "lineage",
}

// String returns the lower case name of the type.
func (t ColumnType) String() string {
	if int(t) < len(columnTypeNames) {
		return columnTypeNames[t]
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// ParseColumnType parses a type name as returned by String.
func ParseColumnType(s string) (ColumnType, error) {
	for i, name := range columnTypeNames {
		if name == s {
			return ColumnType(i), nil
		}
	}
	return 0, fmt.Errorf("storage: unknown column type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ColumnType) UnmarshalText(b []byte) error {
	v, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ColumnSpec describes one metadata column.
type ColumnSpec struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// SequenceSpec describes one aligned sequence and its reference.
type SequenceSpec struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
}

// Schema describes the columns and sequences of every partition of a
// snapshot.
type Schema struct {
	PrimaryKey          string         `json:"primaryKey"`
	Columns             []ColumnSpec   `json:"columns"`
	NucleotideSequences []SequenceSpec `json:"nucleotideSequences"`
	AminoAcidSequences  []SequenceSpec `json:"aminoAcidSequences"`
}

// Validate checks names for uniqueness and references for valid symbols.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return errors.New("storage: column without name")
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("storage: duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if s.PrimaryKey != "" {
		c, ok := s.Column(s.PrimaryKey)
		if !ok {
			return fmt.Errorf("storage: primary key %q is not a column", s.PrimaryKey)
		}
		if c.Type != ColumnString {
			return fmt.Errorf("storage: primary key %q must be a string column", s.PrimaryKey)
		}
	}
	for _, group := range []struct {
		alphabet *symbol.Alphabet
		specs    []SequenceSpec
	}{
		{symbol.Nucleotide, s.NucleotideSequences},
		{symbol.AminoAcid, s.AminoAcidSequences},
	} {
		names := make(map[string]struct{}, len(group.specs))
		for _, seq := range group.specs {
			if _, ok := names[seq.Name]; ok {
				return fmt.Errorf("storage: duplicate %s sequence %q", group.alphabet.LowerName(), seq.Name)
			}
			names[seq.Name] = struct{}{}
			if _, err := group.alphabet.ParseSequence(seq.Reference); err != nil {
				return fmt.Errorf("storage: reference of %q: %w", seq.Name, err)
			}
		}
	}
	return nil
}

// Column returns the column spec by name.
func (s *Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Sequences returns the sequence specs of the alphabet.
func (s *Schema) Sequences(a *symbol.Alphabet) []SequenceSpec {
	if a == symbol.AminoAcid {
		return s.AminoAcidSequences
	}
	return s.NucleotideSequences
}

// Sequence returns the sequence spec of the alphabet by name.
func (s *Schema) Sequence(a *symbol.Alphabet, name string) (SequenceSpec, bool) {
	for _, seq := range s.Sequences(a) {
		if seq.Name == name {
			return seq, true
		}
	}
	return SequenceSpec{}, false
}

// DefaultSequence returns the sequence used when a filter omits sequenceName.
// Nucleotide filters default to the first nucleotide sequence; amino-acid
// filters only have a default when there is exactly one amino-acid sequence.
func (s *Schema) DefaultSequence(a *symbol.Alphabet) (string, bool) {
	seqs := s.Sequences(a)
	if a == symbol.AminoAcid {
		if len(seqs) == 1 {
			return seqs[0].Name, true
		}
		return "", false
	}
	if len(seqs) == 0 {
		return "", false
	}
	return seqs[0].Name, true
}
