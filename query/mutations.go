package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

type mutationKind struct {
	typ      string
	alphabet *symbol.Alphabet
}

var (
	nucleotideMutations = mutationKind{typ: "Mutations", alphabet: symbol.Nucleotide}
	aminoAcidMutations  = mutationKind{typ: "AminoAcidMutations", alphabet: symbol.AminoAcid}
)

// mutationFields lists the fields of a mutation record in output order.
var mutationFields = []Field{
	{Name: "mutation", Type: FieldString},
	{Name: "mutationFrom", Type: FieldString},
	{Name: "mutationTo", Type: FieldString},
	{Name: "position", Type: FieldInt32},
	{Name: "sequenceName", Type: FieldString},
	{Name: "proportion", Type: FieldFloat},
	{Name: "coverage", Type: FieldInt64},
	{Name: "count", Type: FieldInt64},
}

// Mutations reports, per sequence and position, every non-reference symbol
// carried by at least MinProportion of the matching sequences with a
// valid symbol at that position.
type Mutations struct {
	Options
	kind          mutationKind
	MinProportion float64
	Sequences     []string
	// references[i] is the reference of Sequences[i].
	references [][]symbol.Symbol
	// selected holds indexes into mutationFields, in output order.
	selected []int
}

func parseMutations(obj map[string]any, schema *storage.Schema, kind mutationKind, opts Options) (*Mutations, error) {
	m := &Mutations{Options: opts, kind: kind}

	raw, ok := obj["minProportion"]
	if !ok {
		return nil, apierr.BadRequestf(
			"%s action must contain the field minProportion of type number with limits [0.0, 1.0]. "+
				"Only mutations are returned if the proportion of sequences having this mutation, is at least minProportion",
			kind.typ)
	}
	prop, ok := number(raw)
	if !ok {
		return nil, apierr.BadRequestf("The field minProportion of %s action must be a number", kind.typ)
	}
	if prop < 0 || prop > 1 || math.IsNaN(prop) {
		return nil, apierr.BadRequestf("Invalid proportion: minProportion must be in interval [0.0, 1.0]")
	}
	m.MinProportion = prop

	if raw, ok := obj["sequenceNames"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, apierr.BadRequestf("The field sequenceNames of %s action must have type array, if present.", kind.typ)
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, apierr.BadRequestf("The field sequenceNames of %s action may only contain strings", kind.typ)
			}
			if _, ok := schema.Sequence(kind.alphabet, name); !ok {
				return nil, apierr.BadRequestf("Database does not contain the %s sequence with name: '%s'",
					kind.alphabet.LowerName(), name)
			}
			m.Sequences = append(m.Sequences, name)
		}
	} else {
		for _, spec := range schema.Sequences(kind.alphabet) {
			m.Sequences = append(m.Sequences, spec.Name)
		}
	}

	for _, name := range m.Sequences {
		spec, _ := schema.Sequence(kind.alphabet, name)
		ref, err := kind.alphabet.ParseSequence(spec.Reference)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
		}
		m.references = append(m.references, ref)
	}

	if raw, ok := obj["fields"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, apierr.BadRequestf("The field 'fields' of %s action must be an array of strings", kind.typ)
		}
		wanted := make([]bool, len(mutationFields))
		for _, item := range list {
			name, _ := item.(string)
			i := fieldIndex(mutationFields, name)
			if i < 0 {
				return nil, apierr.BadRequestf(
					"The attribute 'fields' contains an invalid field '%s'. Valid fields are %s.",
					dumpField(item), mutationFieldNames())
			}
			wanted[i] = true
		}
		for i, ok := range wanted {
			if ok {
				m.selected = append(m.selected, i)
			}
		}
	} else {
		for i := range mutationFields {
			m.selected = append(m.selected, i)
		}
	}
	return m, nil
}

func dumpField(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return dump(v)
}

func mutationFieldNames() string {
	names := make([]string, len(mutationFields))
	for i, f := range mutationFields {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func (m *Mutations) Type() string { return m.kind.typ }

func (m *Mutations) Fields() []Field {
	fields := make([]Field, len(m.selected))
	for i, f := range m.selected {
		fields[i] = mutationFields[f]
	}
	return fields
}

// mutationCounts holds, per requested sequence, the match count of every
// mutation symbol at every position: counts[pos*len(symbols)+k].
type mutationCounts [][]uint64

func (m *Mutations) compute(p *storage.Partition, match *bitmap.Bitmap) (any, error) {
	out := make(mutationCounts, len(m.Sequences))
	if match.IsEmpty() {
		return out, nil
	}

	symbols := m.kind.alphabet.MutationSymbols()
	full := match.Cardinality() == uint64(p.SequenceCount())

	for si, name := range m.Sequences {
		seq, ok := p.Sequence(m.kind.alphabet, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s sequence %q not found", storage.ErrCorrupt, m.kind.alphabet.LowerName(), name)
		}
		counts := make([]uint64, seq.Length()*len(symbols))
		for pos := range seq.Length() {
			bitmaps := seq.Position(pos)
			for k, s := range symbols {
				if full {
					counts[pos*len(symbols)+k] = bitmaps[s].Cardinality()
				} else {
					counts[pos*len(symbols)+k] = match.AndCardinality(bitmaps[s])
				}
			}
		}
		out[si] = counts
	}
	return out, nil
}

func (m *Mutations) merge(partials []any) ([]Row, error) {
	totals := make(mutationCounts, len(m.Sequences))
	for _, p := range partials {
		counts, ok := p.(mutationCounts)
		if !ok {
			return nil, fmt.Errorf("query: unexpected partial %T", p)
		}
		for si, c := range counts {
			if c == nil {
				continue
			}
			if totals[si] == nil {
				totals[si] = make([]uint64, len(c))
			}
			if len(totals[si]) != len(c) {
				return nil, fmt.Errorf("%w: sequence %q differs in length between partitions", storage.ErrCorrupt, m.Sequences[si])
			}
			for i, n := range c {
				totals[si][i] += n
			}
		}
	}

	return m.records(totals)
}

func (m *Mutations) records(totals mutationCounts) ([]Row, error) {
	symbols := m.kind.alphabet.MutationSymbols()

	var rows []Row
	for si, counts := range totals {
		if counts == nil {
			continue
		}
		ref := m.references[si]
		if len(counts) != len(ref)*len(symbols) {
			return nil, fmt.Errorf("%w: sequence %q does not match its reference", storage.ErrCorrupt, m.Sequences[si])
		}
		for pos := range len(counts) / len(symbols) {
			at := counts[pos*len(symbols) : (pos+1)*len(symbols)]
			var coverage uint64
			for _, n := range at {
				coverage += n
			}
			if coverage == 0 {
				continue
			}
			refSymbol := ref[pos]
			for k, s := range symbols {
				n := at[k]
				// Divide rather than scale the threshold: coverage*p rounds
				// up past an exact count, e.g. 100*0.07.
				if s == refSymbol || n == 0 || float64(n)/float64(coverage) < m.MinProportion {
					continue
				}
				rows = append(rows, m.record(si, pos, refSymbol, s, n, coverage))
			}
		}
	}
	return rows, nil
}

func (m *Mutations) record(si, pos int, from, to symbol.Symbol, count, coverage uint64) Row {
	alphabet := m.kind.alphabet
	values := [...]any{
		alphabet.String(from) + strconv.Itoa(pos+1) + alphabet.String(to),
		alphabet.String(from),
		alphabet.String(to),
		int32(pos + 1),
		m.Sequences[si],
		float64(count) / float64(coverage),
		int64(coverage),
		int64(count),
	}
	row := make(Row, len(m.selected))
	for i, f := range m.selected {
		row[i] = values[f]
	}
	return row
}
