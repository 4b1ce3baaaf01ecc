package bitmap

// ContainerStats aggregates roaring container statistics over any number of
// bitmaps.
type ContainerStats struct {
	ArrayContainers  uint64
	RunContainers    uint64
	BitsetContainers uint64

	ArrayValues  uint64
	RunValues    uint64
	BitsetValues uint64

	ArrayBytes  uint64
	RunBytes    uint64
	BitsetBytes uint64
}

// Stats returns the container statistics of b.
func (b *Bitmap) Stats() ContainerStats {
	s := b.rb.Stats()
	return ContainerStats{
		ArrayContainers:  s.ArrayContainers,
		RunContainers:    s.RunContainers,
		BitsetContainers: s.BitmapContainers,
		ArrayValues:      s.ArrayContainerValues,
		RunValues:        s.RunContainerValues,
		BitsetValues:     s.BitmapContainerValues,
		ArrayBytes:       s.ArrayContainerBytes,
		RunBytes:         s.RunContainerBytes,
		BitsetBytes:      s.BitmapContainerBytes,
	}
}

// Add accumulates other into s.
func (s *ContainerStats) Add(other ContainerStats) {
	s.ArrayContainers += other.ArrayContainers
	s.RunContainers += other.RunContainers
	s.BitsetContainers += other.BitsetContainers
	s.ArrayValues += other.ArrayValues
	s.RunValues += other.RunValues
	s.BitsetValues += other.BitsetValues
	s.ArrayBytes += other.ArrayBytes
	s.RunBytes += other.RunBytes
	s.BitsetBytes += other.BitsetBytes
}

// Values returns the number of ids stored across all container kinds.
func (s ContainerStats) Values() uint64 {
	return s.ArrayValues + s.RunValues + s.BitsetValues
}

// Containers returns the number of containers of all kinds.
func (s ContainerStats) Containers() uint64 {
	return s.ArrayContainers + s.RunContainers + s.BitsetContainers
}
