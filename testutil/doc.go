// Package testutil generates reproducible genomic datasets for tests and
// benchmarks.
//
//	d, err := testutil.NewDataset(seed, 100, 1)
//	// d.Partitions feed the query engine, d.Rows give brute-force
//	// expectations, d.Lineages holds the lineage index of pango_lineage.
//
// Metadata values follow Zipfian frequencies with about ten percent nulls.
// Sequences are the references with random substitutions, gaps and
// ambiguity codes.
package testutil
