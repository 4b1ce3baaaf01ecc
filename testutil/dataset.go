package testutil

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

// Lineages is a small lineage system with an alias and a recombinant.
const Lineages = `A:
A.1:
  parents: [A]
B:
  parents: [A]
B.1:
  parents: [B]
  aliases: [C]
B.1.1:
  parents: [B.1]
B.2:
  parents: [B]
XA:
  parents: [B.1.1, B.2]
`

// Reference is the nucleotide reference of the "main" sequence.
const Reference = "ATTAAAGGTTTATACCTTCCCAGGTAACAAACCAACCAACTTTCGATCTCTTGTAGATCTG"

// ProteinReference is the reference of the "S" amino acid sequence.
const ProteinReference = "MFVFLVLLPLVSSQCVNLTTRTQLPPAYTNSFTRGVYYPDKVFRSS*"

var (
	countries = []string{"Switzerland", "Germany", "France", "Italy", "Austria"}
	lineages  = []string{"A", "A.1", "B", "B.1", "C", "B.1.1", "B.2", "XA"}
)

// Schema returns the schema of generated datasets.
func Schema() *storage.Schema {
	return &storage.Schema{
		PrimaryKey: "gisaid_epi_isl",
		Columns: []storage.ColumnSpec{
			{Name: "gisaid_epi_isl", Type: storage.ColumnString},
			{Name: "country", Type: storage.ColumnString},
			{Name: "age", Type: storage.ColumnInt},
			{Name: "qc_value", Type: storage.ColumnFloat},
			{Name: "test_boolean_column", Type: storage.ColumnBool},
			{Name: "date", Type: storage.ColumnDate},
			{Name: "pango_lineage", Type: storage.ColumnLineage},
		},
		NucleotideSequences: []storage.SequenceSpec{{Name: "main", Reference: Reference}},
		AminoAcidSequences:  []storage.SequenceSpec{{Name: "S", Reference: ProteinReference}},
	}
}

// Dataset is a generated database together with the rows it was built from,
// so tests can compute expected results by brute force.
type Dataset struct {
	Schema     *storage.Schema
	Rows       []storage.Row
	Partitions []*storage.Partition
	Lineages   map[string]*lineage.Index
}

// NewDataset generates n rows and splits them into the given number of
// partitions.
func NewDataset(seed int64, n, partitions int) (*Dataset, error) {
	rng := NewRNG(seed)
	schema := Schema()
	ix, err := lineage.Parse([]byte(Lineages))
	if err != nil {
		return nil, err
	}

	rows := make([]storage.Row, n)
	for i := range rows {
		rows[i] = rng.Row(i)
	}
	parts, err := Partition(schema, rows, partitions)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Schema:     schema,
		Rows:       rows,
		Partitions: parts,
		Lineages:   map[string]*lineage.Index{"pango_lineage": ix},
	}, nil
}

// Partition builds partitions of about equal size from rows.
func Partition(schema *storage.Schema, rows []storage.Row, partitions int) ([]*storage.Partition, error) {
	partitions = max(partitions, 1)
	size := (len(rows) + partitions - 1) / partitions
	out := make([]*storage.Partition, 0, partitions)
	for start := 0; start < len(rows) || len(out) == 0; start += max(size, 1) {
		b, err := storage.NewPartitionBuilder(schema)
		if err != nil {
			return nil, err
		}
		for _, row := range rows[start:min(start+size, len(rows))] {
			if err := b.Add(row); err != nil {
				return nil, err
			}
		}
		out = append(out, b.Build())
		if size == 0 {
			break
		}
	}
	return out, nil
}

var epoch = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// Row generates the row with the given index. About a tenth of every
// metadata value is null.
func (r *RNG) Row(i int) storage.Row {
	present := r.SparseMetadata(6, 0.1)
	values := map[string]any{"gisaid_epi_isl": "EPI_ISL_" + strconv.Itoa(1000+i)}
	if present[0] {
		values["country"] = countries[r.Zipf(len(countries), 1.2)]
	}
	if present[1] {
		values["age"] = r.Intn(90)
	}
	if present[2] {
		values["qc_value"] = float64(r.Intn(100)) / 100
	}
	if present[3] {
		values["test_boolean_column"] = r.Chance(0.5)
	}
	if present[4] {
		values["date"] = storage.FormatDate(int32(epoch.AddDate(0, 0, r.Intn(365)).Unix() / 86400))
	}
	if present[5] {
		values["pango_lineage"] = lineages[r.Zipf(len(lineages), 1.1)]
	}

	row := storage.Row{
		Values:     values,
		Nucleotide: map[string]string{"main": r.Sequence(symbol.Nucleotide, Reference, 0.05)},
	}
	if r.Chance(0.8) {
		row.AminoAcid = map[string]string{"S": r.Sequence(symbol.AminoAcid, ProteinReference, 0.03)}
	}
	return row
}

// Sequence mutates reference at about rate of its positions. Mutations draw
// from every symbol of the alphabet, including gaps and ambiguity codes.
func (r *RNG) Sequence(a *symbol.Alphabet, reference string, rate float64) string {
	symbols := a.Symbols()
	out := []byte(reference)
	for i := range out {
		if r.Chance(rate) {
			out[i] = a.Char(symbols[r.Intn(len(symbols))])
		}
	}
	return string(out)
}

// Describe returns a short description of the dataset for test failure
// messages.
func (d *Dataset) Describe() string {
	return fmt.Sprintf("%d rows in %d partitions", len(d.Rows), len(d.Partitions))
}
