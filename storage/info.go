package storage

import (
	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/symbol"
)

// DefaultSectionLength is the genome section length of detailed info.
const DefaultSectionLength = 500

// Info summarises the nucleotide bitmap indexes of a set of partitions.
type Info struct {
	SequenceCount      uint64 `json:"sequenceCount"`
	TotalSize          uint64 `json:"totalSize"`
	NBitmapsSize       uint64 `json:"nBitmapsSize"`
	NumberOfPartitions int    `json:"numberOfPartitions"`
}

// ComputeInfo sums sequence counts and bitmap sizes over all nucleotide
// sequences. NBitmapsSize counts only bitmaps of the missing symbol N.
func ComputeInfo(partitions []*Partition) Info {
	info := Info{NumberOfPartitions: len(partitions)}
	missing := symbol.Nucleotide.Missing()
	for _, p := range partitions {
		info.SequenceCount += uint64(p.sequenceCount)
		for _, col := range p.nucleotide {
			for _, pos := range col.positions {
				for s, b := range pos {
					size := b.SizeInBytes()
					info.TotalSize += size
					if symbol.Symbol(s) == missing {
						info.NBitmapsSize += size
					}
				}
			}
		}
	}
	return info
}

// ContainerStatistic is the container breakdown of detailed info.
type ContainerStatistic struct {
	NumberOfArrayContainers                uint64 `json:"numberOfArrayContainers"`
	NumberOfRunContainers                  uint64 `json:"numberOfRunContainers"`
	NumberOfBitsetContainers               uint64 `json:"numberOfBitsetContainers"`
	NumberOfValuesStoredInArrayContainers  uint64 `json:"numberOfValuesStoredInArrayContainers"`
	NumberOfValuesStoredInRunContainers    uint64 `json:"numberOfValuesStoredInRunContainers"`
	NumberOfValuesStoredInBitsetContainers uint64 `json:"numberOfValuesStoredInBitsetContainers"`
	TotalBitmapSizeArrayContainers         uint64 `json:"totalBitmapSizeArrayContainers"`
	TotalBitmapSizeRunContainers           uint64 `json:"totalBitmapSizeRunContainers"`
	TotalBitmapSizeBitsetContainers        uint64 `json:"totalBitmapSizeBitsetContainers"`
}

func newContainerStatistic(s bitmap.ContainerStats) ContainerStatistic {
	return ContainerStatistic{
		NumberOfArrayContainers:                s.ArrayContainers,
		NumberOfRunContainers:                  s.RunContainers,
		NumberOfBitsetContainers:               s.BitsetContainers,
		NumberOfValuesStoredInArrayContainers:  s.ArrayValues,
		NumberOfValuesStoredInRunContainers:    s.RunValues,
		NumberOfValuesStoredInBitsetContainers: s.BitsetValues,
		TotalBitmapSizeArrayContainers:         s.ArrayBytes,
		TotalBitmapSizeRunContainers:           s.RunBytes,
		TotalBitmapSizeBitsetContainers:        s.BitsetBytes,
	}
}

// ContainerSize is the per genome section breakdown of detailed info.
type ContainerSize struct {
	SectionLength int `json:"sectionLength"`
	// SizePerGenomeSymbolAndSection counts bitset containers per section,
	// keyed by "N", "-" and "NOT_N_NOT_GAP".
	SizePerGenomeSymbolAndSection map[string][]uint64 `json:"sizePerGenomeSymbolAndSection"`
	BitmapContainerSizeStatistic  ContainerStatistic  `json:"bitmapContainerSizeStatistic"`
	TotalBitmapSizeFrozen         uint64              `json:"totalBitmapSizeFrozen"`
	TotalBitmapSizeComputed       uint64              `json:"totalBitmapSizeComputed"`
}

// DetailedInfo is the container level diagnostic of a nucleotide sequence.
type DetailedInfo struct {
	BitmapSizePerSymbol                 map[string]uint64 `json:"bitmapSizePerSymbol"`
	BitmapContainerSizePerGenomeSection ContainerSize     `json:"bitmapContainerSizePerGenomeSection"`
}

// ComputeDetailedInfo gathers container statistics of the named nucleotide
// sequence over all partitions. Partitions lacking the sequence are skipped.
func ComputeDetailedInfo(partitions []*Partition, sequence string, sectionLength int) DetailedInfo {
	if sectionLength <= 0 {
		sectionLength = DefaultSectionLength
	}
	alphabet := symbol.Nucleotide
	gap := alphabet.MustParse('-')
	missing := alphabet.Missing()

	info := DetailedInfo{BitmapSizePerSymbol: make(map[string]uint64, alphabet.Len())}
	for _, s := range alphabet.Symbols() {
		info.BitmapSizePerSymbol[alphabet.String(s)] = 0
	}

	var genomeLength int
	for _, p := range partitions {
		if col, ok := p.Sequence(alphabet, sequence); ok {
			genomeLength = col.Length()
			break
		}
	}
	sections := genomeLength/sectionLength + 1
	size := ContainerSize{
		SectionLength: sectionLength,
		SizePerGenomeSymbolAndSection: map[string][]uint64{
			"NOT_N_NOT_GAP": make([]uint64, sections),
			"-":             make([]uint64, sections),
			"N":             make([]uint64, sections),
		},
	}

	var stats bitmap.ContainerStats
	for _, p := range partitions {
		col, ok := p.Sequence(alphabet, sequence)
		if !ok {
			continue
		}
		for pos, bitmaps := range col.positions {
			section := pos / sectionLength
			for s, b := range bitmaps {
				sym := symbol.Symbol(s)
				st := b.Stats()
				stats.Add(st)
				computed := b.SizeInBytes()
				size.TotalBitmapSizeComputed += computed
				size.TotalBitmapSizeFrozen += b.SerializedSizeInBytes()
				info.BitmapSizePerSymbol[alphabet.String(sym)] += computed

				if st.BitsetContainers == 0 {
					continue
				}
				key := "NOT_N_NOT_GAP"
				switch sym {
				case missing:
					key = "N"
				case gap:
					key = "-"
				}
				size.SizePerGenomeSymbolAndSection[key][section] += st.BitsetContainers
			}
		}
	}
	size.BitmapContainerSizeStatistic = newContainerStatistic(stats)
	info.BitmapContainerSizePerGenomeSection = size
	return info
}

// PositionStats returns the container statistics over all symbol bitmaps of
// one position. Their value count equals the sequence count of the partition.
func (c *SequenceColumn) PositionStats(pos int) bitmap.ContainerStats {
	var s bitmap.ContainerStats
	for _, b := range c.positions[pos] {
		s.Add(b.Stats())
	}
	return s
}
