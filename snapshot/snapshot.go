package snapshot

import (
	"github.com/hupe1980/silo/filter"
	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

// Snapshot is an immutable, fully loaded version of the database.
type Snapshot struct {
	DataVersion string
	Schema      *storage.Schema
	Partitions  []*storage.Partition
	// Lineages holds the lineage index of every lineage column.
	Lineages map[string]*lineage.Index
}

// Catalog returns what filter and action parsing validate against.
func (s *Snapshot) Catalog() filter.Catalog {
	return filter.Catalog{Schema: s.Schema, Lineages: s.Lineages}
}

// SequenceCount returns the number of sequences over all partitions.
func (s *Snapshot) SequenceCount() uint64 {
	var n uint64
	for _, p := range s.Partitions {
		n += uint64(p.SequenceCount())
	}
	return n
}

// Info computes the summary statistics of the snapshot.
func (s *Snapshot) Info() storage.Info {
	return storage.ComputeInfo(s.Partitions)
}

// DetailedInfo computes bitmap statistics over the default nucleotide
// sequence.
func (s *Snapshot) DetailedInfo(sectionLength int) (storage.DetailedInfo, bool) {
	name, ok := s.Schema.DefaultSequence(symbol.Nucleotide)
	if !ok {
		return storage.DetailedInfo{}, false
	}
	return storage.ComputeDetailedInfo(s.Partitions, name, sectionLength), true
}
