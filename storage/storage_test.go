package storage

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/symbol"
)

func testSchema() *Schema {
	return &Schema{
		PrimaryKey: "key",
		Columns: []ColumnSpec{
			{Name: "key", Type: ColumnString},
			{Name: "country", Type: ColumnString},
			{Name: "age", Type: ColumnInt},
			{Name: "qc", Type: ColumnFloat},
			{Name: "test", Type: ColumnBool},
			{Name: "date", Type: ColumnDate},
			{Name: "lineage", Type: ColumnLineage},
		},
		NucleotideSequences: []SequenceSpec{{Name: "main", Reference: "ACGT"}},
		AminoAcidSequences:  []SequenceSpec{{Name: "S", Reference: "MK*"}},
	}
}

func buildTestPartition(t *testing.T) *Partition {
	t.Helper()
	b, err := NewPartitionBuilder(testSchema())
	require.NoError(t, err)

	rows := []Row{
		{
			Values:     map[string]any{"key": "a", "country": "CH", "age": 3, "qc": 0.5, "test": true, "date": "2021-03-01", "lineage": "B.1"},
			Nucleotide: map[string]string{"main": "ACGT"},
			AminoAcid:  map[string]string{"S": "MK*"},
		},
		{
			Values:     map[string]any{"key": "b", "country": "DE", "age": 7, "qc": 0.9, "test": false, "date": "2021-04-01", "lineage": "B.1.1"},
			Nucleotide: map[string]string{"main": "ATGN"},
		},
		{
			Values:     map[string]any{"key": "c", "country": "CH", "age": nil, "qc": nil, "test": nil, "date": nil, "lineage": nil},
			Nucleotide: map[string]string{"main": "-CGA"},
			AminoAcid:  map[string]string{"S": "MR*"},
		},
	}
	for _, row := range rows {
		require.NoError(t, b.Add(row))
	}
	return b.Build()
}

func TestPartitionBuilder(t *testing.T) {
	p := buildTestPartition(t)
	require.Equal(t, uint32(3), p.SequenceCount())
	assert.Equal(t, []uint32{0, 1, 2}, p.Full().ToArray())

	main, ok := p.Sequence(symbol.Nucleotide, "main")
	require.True(t, ok)
	assert.Equal(t, "ACGT", main.Reference())

	bm, err := main.Bitmap(1, symbol.Nucleotide.MustParse('T'))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, bm.ToArray())

	s, ok := p.Sequence(symbol.AminoAcid, "S")
	require.True(t, ok)
	bm, err = s.Bitmap(0, symbol.AminoAcid.Missing())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, bm.ToArray(), "absent sequence is stored as missing symbol")

	_, err = main.Bitmap(4, symbol.Nucleotide.MustParse('A'))
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestPositionValuesEqualSequenceCount(t *testing.T) {
	p := buildTestPartition(t)
	for _, alphabet := range []*symbol.Alphabet{symbol.Nucleotide, symbol.AminoAcid} {
		for _, col := range p.Sequences(alphabet) {
			for pos := 0; pos < col.Length(); pos++ {
				assert.Equal(t, uint64(p.SequenceCount()), col.PositionStats(pos).Values(),
					"%s position %d", col.Name(), pos+1)
			}
		}
	}
}

func TestPartitionBuilderRejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"unknown column", Row{Values: map[string]any{"nope": 1}}},
		{"wrong type", Row{Values: map[string]any{"age": "old"}}},
		{"fractional int", Row{Values: map[string]any{"age": 1.5}}},
		{"invalid date", Row{Values: map[string]any{"date": "2021-13-01"}}},
		{"unknown sequence", Row{Nucleotide: map[string]string{"other": "ACGT"}}},
		{"length mismatch", Row{Nucleotide: map[string]string{"main": "ACG"}}},
		{"invalid symbol", Row{Nucleotide: map[string]string{"main": "ACGZ"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewPartitionBuilder(testSchema())
			require.NoError(t, err)
			assert.Error(t, b.Add(tt.row))
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	s := testSchema()
	require.NoError(t, s.Validate())

	s.Columns = append(s.Columns, ColumnSpec{Name: "age", Type: ColumnInt})
	assert.Error(t, s.Validate())

	s = testSchema()
	s.PrimaryKey = "age"
	assert.Error(t, s.Validate())

	s = testSchema()
	s.NucleotideSequences[0].Reference = "ACGZ"
	assert.Error(t, s.Validate())
}

func TestDefaultSequence(t *testing.T) {
	s := testSchema()
	name, ok := s.DefaultSequence(symbol.Nucleotide)
	assert.True(t, ok)
	assert.Equal(t, "main", name)

	name, ok = s.DefaultSequence(symbol.AminoAcid)
	assert.True(t, ok)
	assert.Equal(t, "S", name)

	s.AminoAcidSequences = append(s.AminoAcidSequences, SequenceSpec{Name: "E", Reference: "M"})
	_, ok = s.DefaultSequence(symbol.AminoAcid)
	assert.False(t, ok)
}

func TestColumnLookups(t *testing.T) {
	p := buildTestPartition(t)

	c, ok := p.Column("country")
	require.True(t, ok)
	country := c.(*StringColumn)
	assert.Equal(t, []uint32{0, 2}, country.Equal("CH").ToArray())
	assert.True(t, country.Equal("FR").IsEmpty())
	assert.Equal(t, []string{"CH", "DE"}, country.Dictionary())

	c, _ = p.Column("age")
	age := c.(*IntColumn)
	from, to := int32(4), int32(10)
	assert.Equal(t, []uint32{1}, age.Between(&from, &to).ToArray())
	assert.Equal(t, []uint32{0, 1}, age.Between(nil, nil).ToArray(), "nulls are never in range")
	assert.Equal(t, []uint32{0}, age.Equal(3).ToArray())
	assert.Nil(t, age.Value(2))
	assert.Equal(t, []uint32{2}, age.Nulls().ToArray())

	c, _ = p.Column("qc")
	qc := c.(*FloatColumn)
	lo := 0.6
	assert.Equal(t, []uint32{1}, qc.Between(&lo, nil).ToArray())

	c, _ = p.Column("test")
	test := c.(*BoolColumn)
	assert.Equal(t, []uint32{0}, test.Equal(true).ToArray())
	assert.Equal(t, []uint32{1}, test.Equal(false).ToArray())
	assert.Nil(t, test.Value(2))

	c, _ = p.Column("date")
	date := c.(*DateColumn)
	d, err := ParseDate("2021-03-15")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, date.Between(&d, nil).ToArray())
	assert.Equal(t, "2021-03-01", date.Value(0))
}

func TestDateRoundTrip(t *testing.T) {
	for _, s := range []string{"1970-01-01", "2020-02-29", "1969-12-31"} {
		d, err := ParseDate(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatDate(d))
	}
	_, err := ParseDate("01.02.2021")
	assert.Error(t, err)
}

func TestPartitionEncoding(t *testing.T) {
	p := buildTestPartition(t)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := ReadPartition(bytes.NewReader(buf.Bytes()), p.Schema())
	require.NoError(t, err)
	require.Equal(t, p.SequenceCount(), got.SequenceCount())

	for _, alphabet := range []*symbol.Alphabet{symbol.Nucleotide, symbol.AminoAcid} {
		for i, want := range p.Sequences(alphabet) {
			have := got.Sequences(alphabet)[i]
			for pos := 0; pos < want.Length(); pos++ {
				for s, b := range want.Position(pos) {
					assert.True(t, b.Equals(have.Position(pos)[s]))
				}
			}
		}
	}
	for _, want := range p.Columns() {
		have, ok := got.Column(want.Name())
		require.True(t, ok)
		for row := uint32(0); row < p.SequenceCount(); row++ {
			assert.Equal(t, want.Value(row), have.Value(row), "%s row %d", want.Name(), row)
		}
	}
	c, _ := got.Column("country")
	assert.Equal(t, []uint32{0, 2}, c.(*StringColumn).Equal("CH").ToArray())
}

func TestReadPartitionRejectsMismatch(t *testing.T) {
	p := buildTestPartition(t)
	var buf bytes.Buffer
	_, err := p.WriteTo(&buf)
	require.NoError(t, err)

	other := testSchema()
	other.Columns[1].Name = "region"
	_, err = ReadPartition(bytes.NewReader(buf.Bytes()), other)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = ReadPartition(bytes.NewReader(buf.Bytes()[:buf.Len()/2]), p.Schema())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadPartitionRejectsInconsistentPosition(t *testing.T) {
	tests := map[string]func(b *bitmap.Bitmap){
		"id out of range": func(b *bitmap.Bitmap) { b.Add(10) },
		"missing id":      func(b *bitmap.Bitmap) { b.Roaring().Remove(0) },
		"duplicate id":    func(b *bitmap.Bitmap) { b.Add(1) },
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			p := buildTestPartition(t)
			seq := p.Sequences(symbol.Nucleotide)[0]
			// position 2 is C, T, C: the bitmap holding id 0 lacks id 1.
			for _, b := range seq.Position(1) {
				if b.Contains(0) {
					corrupt(b)
				}
			}

			var buf bytes.Buffer
			_, err := p.WriteTo(&buf)
			require.NoError(t, err)

			_, err = ReadPartition(bytes.NewReader(buf.Bytes()), p.Schema())
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.ErrorContains(t, err, `sequence "main" position 2`)
		})
	}
}

func TestComputeInfo(t *testing.T) {
	p := buildTestPartition(t)
	info := ComputeInfo([]*Partition{p, p})
	assert.Equal(t, uint64(6), info.SequenceCount)
	assert.Equal(t, 2, info.NumberOfPartitions)
	assert.Greater(t, info.TotalSize, info.NBitmapsSize)
	assert.Greater(t, info.NBitmapsSize, uint64(0))
}

func TestComputeDetailedInfo(t *testing.T) {
	p := buildTestPartition(t)
	info := ComputeDetailedInfo([]*Partition{p}, "main", 0)

	size := info.BitmapContainerSizePerGenomeSection
	assert.Equal(t, DefaultSectionLength, size.SectionLength)
	for _, key := range []string{"NOT_N_NOT_GAP", "-", "N"} {
		assert.Len(t, size.SizePerGenomeSymbolAndSection[key], 1)
	}
	stats := size.BitmapContainerSizeStatistic
	values := stats.NumberOfValuesStoredInArrayContainers +
		stats.NumberOfValuesStoredInRunContainers +
		stats.NumberOfValuesStoredInBitsetContainers
	assert.Equal(t, uint64(4*3), values)
	assert.Len(t, info.BitmapSizePerSymbol, symbol.Nucleotide.Len())
	assert.Greater(t, size.TotalBitmapSizeFrozen, uint64(0))
}
