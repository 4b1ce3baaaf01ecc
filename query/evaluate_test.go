package query

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/filter"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
	"github.com/hupe1980/silo/testutil"
)

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		filter    string
		partition int
		want      []uint32
	}{
		{"true", `{"type":"True"}`, 0, []uint32{0, 1, 2}},
		{"false", `{"type":"False"}`, 0, []uint32{}},
		{"symbol", `{"type":"NucleotideEquals","position":2,"symbol":"T"}`, 0, []uint32{1}},
		{"reference symbol", `{"type":"NucleotideEquals","position":2,"symbol":"."}`, 0, []uint32{0, 2}},
		{"amino acid", `{"type":"AminoAcidEquals","sequenceName":"S","position":2,"symbol":"R"}`, 0, []uint32{2}},
		{"has mutation", `{"type":"HasNucleotideMutation","position":2}`, 0, []uint32{1}},
		{"has mutation ignores ambiguous", `{"type":"HasNucleotideMutation","position":4}`, 0, []uint32{2}},
		{"has mutation deletion", `{"type":"HasNucleotideMutation","position":1}`, 0, []uint32{2}},
		{"not", `{"type":"Not","child":{"type":"NucleotideEquals","position":2,"symbol":"T"}}`, 0, []uint32{0, 2}},
		{
			"and with negation",
			`{"type":"And","children":[{"type":"Not","child":{"type":"BooleanEquals","column":"test","value":true}},{"type":"StringEquals","column":"country","value":"CH"}]}`,
			0, []uint32{2},
		},
		{"and only negation", `{"type":"And","children":[{"type":"Not","child":{"type":"IsNull","column":"age"}}]}`, 0, []uint32{0, 1}},
		{"and empty", `{"type":"And","children":[]}`, 0, []uint32{0, 1, 2}},
		{
			"or",
			`{"type":"Or","children":[{"type":"IntEquals","column":"age","value":7},{"type":"StringEquals","column":"country","value":"DE"}]}`,
			0, []uint32{1},
		},
		{"or empty", `{"type":"Or","children":[]}`, 0, []uint32{}},
		{"n-of at least", nOf(2, false), 0, []uint32{0}},
		{"n-of exactly", nOf(1, true), 0, []uint32{1, 2}},
		{"n-of zero", nOf(0, false), 0, []uint32{0, 1, 2}},
		{"n-of exactly zero", nOf(0, true), 0, []uint32{}},
		{"n-of too many", nOf(4, false), 0, []uint32{}},
		{"int equals", `{"type":"IntEquals","column":"age","value":3}`, 1, []uint32{0}},
		{"int equals null", `{"type":"IntEquals","column":"age","value":null}`, 0, []uint32{2}},
		{"int between", `{"type":"IntBetween","column":"age","from":4,"to":null}`, 0, []uint32{1}},
		{"float equals", `{"type":"FloatEquals","column":"qc","value":0.5}`, 0, []uint32{0}},
		{"float between", `{"type":"FloatBetween","column":"qc","from":0.6,"to":null}`, 0, []uint32{1}},
		{"float null", `{"type":"FloatEquals","column":"qc","value":null}`, 1, []uint32{1}},
		{"date between", `{"type":"DateBetween","column":"date","from":null,"to":"2021-03-31"}`, 0, []uint32{0}},
		{"date equals", `{"type":"DateEquals","column":"date","value":"2021-03-15"}`, 1, []uint32{1}},
		{"bool false", `{"type":"BooleanEquals","column":"test","value":false}`, 0, []uint32{1}},
		{"bool null", `{"type":"BooleanEquals","column":"test","value":null}`, 0, []uint32{2}},
		{"string null", `{"type":"StringEquals","column":"pango","value":null}`, 0, []uint32{2}},
		{"string unknown value", `{"type":"StringEquals","column":"country","value":"XX"}`, 0, []uint32{}},
		{"string in set", `{"type":"StringInSet","column":"country","values":["DE","FR"]}`, 0, []uint32{1}},
		{"string search", `{"type":"StringSearch","column":"country","searchExpression":"^C"}`, 0, []uint32{0, 2}},
		{"is null", `{"type":"IsNull","column":"qc"}`, 1, []uint32{1}},
		{"lineage", `{"type":"Lineage","column":"pango","value":"B.1","includeSublineages":false}`, 0, []uint32{0}},
		{"lineage sublineages", `{"type":"Lineage","column":"pango","value":"B","includeSublineages":true}`, 0, []uint32{0, 1}},
		{"lineage stored alias", `{"type":"Lineage","column":"pango","value":"B.1","includeSublineages":false}`, 1, []uint32{0}},
		{"lineage queried alias", `{"type":"Lineage","column":"pango","value":"BA","includeSublineages":true}`, 0, []uint32{0, 1}},
		{"lineage null", `{"type":"Lineage","column":"pango","value":null,"includeSublineages":false}`, 0, []uint32{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := filter.Parse([]byte(tt.filter), f.catalog)
			require.NoError(t, err)

			got, err := Evaluate(expr, f.partitions[tt.partition], f.catalog.Lineages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ToArray())
		})
	}
}

// nOf builds an N-Of over country=CH, main:1=A and age=3, which match
// {0,2}, {0,1} and {0} in the first partition.
func nOf(k int, exact bool) string {
	e := "false"
	if exact {
		e = "true"
	}
	return `{"type":"N-Of","numberOfMatchers":` + strconv.Itoa(k) + `,"matchExactly":` + e + `,"children":[` +
		`{"type":"StringEquals","column":"country","value":"CH"},` +
		`{"type":"NucleotideEquals","position":1,"symbol":"A"},` +
		`{"type":"IntEquals","column":"age","value":3}]}`
}

func TestEvaluateDoesNotModifyIndexes(t *testing.T) {
	f := newFixture(t)
	expr, err := filter.Parse([]byte(`{"type":"Not","child":{"type":"StringEquals","column":"country","value":"CH"}}`), f.catalog)
	require.NoError(t, err)

	for range 2 {
		got, err := Evaluate(expr, f.partitions[0], f.catalog.Lineages)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, got.ToArray())
	}
}

func TestEvaluateCorruptPartition(t *testing.T) {
	f := newFixture(t)
	p := f.partitions[0]

	tests := []filter.Expression{
		filter.SymbolEquals{Alphabet: symbol.Nucleotide, Sequence: "main", Position: 10, Symbol: symbol.Nucleotide.MustParse('A')},
		filter.HasMutation{Alphabet: symbol.Nucleotide, Sequence: "main", Position: 4},
		filter.HasMutation{Alphabet: symbol.Nucleotide, Sequence: "other", Position: 0},
		filter.IsNull{Column: "missing"},
		filter.IntBetween{Column: "country"},
		filter.Lineage{Column: "country", Value: new(string)},
	}
	for _, expr := range tests {
		t.Run(expr.String(), func(t *testing.T) {
			_, err := Evaluate(expr, p, f.catalog.Lineages)
			require.Error(t, err)
			assert.True(t, errors.Is(err, storage.ErrCorrupt))
		})
	}
}

func TestEvaluateAlgebra(t *testing.T) {
	d, err := testutil.NewDataset(11, 300, 3)
	require.NoError(t, err)
	cat := filter.Catalog{Schema: d.Schema, Lineages: d.Lineages}

	leaves := []string{
		`{"type":"True"}`,
		`{"type":"False"}`,
		`{"type":"StringEquals","column":"country","value":"Switzerland"}`,
		`{"type":"IntBetween","column":"age","from":20,"to":60}`,
		`{"type":"FloatBetween","column":"qc_value","from":0.5,"to":null}`,
		`{"type":"BooleanEquals","column":"test_boolean_column","value":true}`,
		`{"type":"DateBetween","column":"date","from":"2021-03-01","to":"2021-08-31"}`,
		`{"type":"Lineage","column":"pango_lineage","value":"B","includeSublineages":true}`,
		`{"type":"HasNucleotideMutation","position":5}`,
		`{"type":"NucleotideEquals","position":12,"symbol":"."}`,
		`{"type":"IsNull","column":"age"}`,
		`{"type":"Not","child":{"type":"StringEquals","column":"country","value":"Germany"}}`,
	}

	eval := func(t *testing.T, raw string, p *storage.Partition) uint64 {
		t.Helper()
		expr, err := filter.Parse([]byte(raw), cat)
		require.NoError(t, err, raw)
		got, err := Evaluate(expr, p, cat.Lineages)
		require.NoError(t, err, raw)
		return got.Cardinality()
	}

	for pi, p := range d.Partitions {
		t.Run("partition "+strconv.Itoa(pi), func(t *testing.T) {
			for _, leaf := range leaves {
				expr, err := filter.Parse([]byte(leaf), cat)
				require.NoError(t, err)
				want, err := Evaluate(expr, p, cat.Lineages)
				require.NoError(t, err)

				doubleNot, err := filter.Parse([]byte(`{"type":"Not","child":{"type":"Not","child":`+leaf+`}}`), cat)
				require.NoError(t, err)
				got, err := Evaluate(doubleNot, p, cat.Lineages)
				require.NoError(t, err)
				assert.True(t, want.Equals(got), "not(not(%s)) in %s", leaf, d.Describe())
			}

			for i, a := range leaves {
				for _, b := range leaves[i:] {
					ca, cb := eval(t, a, p), eval(t, b, p)
					children := `"children":[` + a + `,` + b + `]}`

					and := eval(t, `{"type":"And",`+children, p)
					assert.LessOrEqual(t, and, min(ca, cb), "and(%s, %s)", a, b)

					or := eval(t, `{"type":"Or",`+children, p)
					assert.GreaterOrEqual(t, or, max(ca, cb), "or(%s, %s)", a, b)
					assert.LessOrEqual(t, or, uint64(p.SequenceCount()), "or(%s, %s)", a, b)
				}
			}
		})
	}
}
