package bitmap

import (
	"io"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a compressed set of sequence ids within one partition.
// It wraps a roaring bitmap; the container encoding (array, bitset, run)
// is chosen by roaring and never visible to callers.
//
// Bitmaps held by a partition are shared by all concurrent queries and must
// not be mutated. In-place methods are only used on bitmaps owned by the
// caller (results of Clone or of the package level set operations).
type Bitmap struct {
	rb *roaring.Bitmap
}

// bitmapPool recycles scratch bitmaps used while counting N-Of matches.
var bitmapPool = sync.Pool{
	New: func() any {
		return &Bitmap{rb: roaring.New()}
	},
}

// New creates an empty bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// Of creates a bitmap holding ids.
func Of(ids ...uint32) *Bitmap {
	return &Bitmap{rb: roaring.BitmapOf(ids...)}
}

// Full returns the bitmap [0, n).
func Full(n uint32) *Bitmap {
	rb := roaring.New()
	rb.AddRange(0, uint64(n))
	return &Bitmap{rb: rb}
}

// Wrap takes ownership of rb.
func Wrap(rb *roaring.Bitmap) *Bitmap {
	return &Bitmap{rb: rb}
}

// Get returns a cleared bitmap from the pool. Call Put when done.
func Get() *Bitmap {
	b := bitmapPool.Get().(*Bitmap)
	b.rb.Clear()
	return b
}

// Put returns a bitmap to the pool.
func Put(b *Bitmap) {
	if b == nil {
		return
	}
	b.rb.Clear()
	bitmapPool.Put(b)
}

// Roaring exposes the underlying roaring bitmap.
func (b *Bitmap) Roaring() *roaring.Bitmap { return b.rb }

// Add adds id to the bitmap.
func (b *Bitmap) Add(id uint32) { b.rb.Add(id) }

// Contains reports whether id is in the bitmap.
func (b *Bitmap) Contains(id uint32) bool { return b.rb.Contains(id) }

// IsEmpty reports whether the bitmap holds no ids.
func (b *Bitmap) IsEmpty() bool { return b.rb.IsEmpty() }

// Cardinality returns the number of ids.
// It is computed from container headers without materialising ids.
func (b *Bitmap) Cardinality() uint64 { return b.rb.GetCardinality() }

// AndCardinality returns |b ∩ other| without allocating the intersection.
func (b *Bitmap) AndCardinality(other *Bitmap) uint64 {
	return b.rb.AndCardinality(other.rb)
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap { return &Bitmap{rb: b.rb.Clone()} }

// And intersects b with other in place.
func (b *Bitmap) And(other *Bitmap) { b.rb.And(other.rb) }

// Or unites b with other in place.
func (b *Bitmap) Or(other *Bitmap) { b.rb.Or(other.rb) }

// AndNot removes the ids of other from b in place.
func (b *Bitmap) AndNot(other *Bitmap) { b.rb.AndNot(other.rb) }

// Flip complements b within [0, n) in place.
func (b *Bitmap) Flip(n uint32) { b.rb.Flip(0, uint64(n)) }

// Optimize converts containers to run encoding where that is smaller.
func (b *Bitmap) Optimize() { b.rb.RunOptimize() }

// Equals reports whether both bitmaps hold the same ids.
func (b *Bitmap) Equals(other *Bitmap) bool { return b.rb.Equals(other.rb) }

// ToArray returns the ids in ascending order.
func (b *Bitmap) ToArray() []uint32 { return b.rb.ToArray() }

// Iterator returns the ids in ascending order.
func (b *Bitmap) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// SizeInBytes returns the in-memory size estimate of the bitmap.
func (b *Bitmap) SizeInBytes() uint64 { return b.rb.GetSizeInBytes() }

// SerializedSizeInBytes returns the size of the portable serialization.
func (b *Bitmap) SerializedSizeInBytes() uint64 { return b.rb.GetSerializedSizeInBytes() }

// WriteTo writes the portable roaring serialization.
func (b *Bitmap) WriteTo(w io.Writer) (int64, error) { return b.rb.WriteTo(w) }

// ReadFrom reads a portable roaring serialization.
func (b *Bitmap) ReadFrom(r io.Reader) (int64, error) { return b.rb.ReadFrom(r) }

// Intersect returns a new bitmap a ∩ b.
func Intersect(a, b *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring.And(a.rb, b.rb)}
}

// Difference returns a new bitmap a \ b.
func Difference(a, b *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring.AndNot(a.rb, b.rb)}
}

// Union returns a new bitmap holding the union of all inputs.
func Union(bs ...*Bitmap) *Bitmap {
	switch len(bs) {
	case 0:
		return New()
	case 1:
		return bs[0].Clone()
	}
	rbs := make([]*roaring.Bitmap, len(bs))
	for i, b := range bs {
		rbs[i] = b.rb
	}
	return &Bitmap{rb: roaring.FastOr(rbs...)}
}

// Complement returns a new bitmap [0, n) \ b.
func Complement(b *Bitmap, n uint32) *Bitmap {
	return &Bitmap{rb: roaring.Flip(b.rb, 0, uint64(n))}
}

// NOf returns the ids contained in at least k of the inputs, or exactly k
// when exact is set. n is the universe size.
//
// atLeast[j] holds the ids seen in at least j inputs so far; every input
// promotes ids one level up, from the highest level down.
func NOf(inputs []*Bitmap, k int, exact bool, n uint32) *Bitmap {
	if k == 0 && !exact {
		return Full(n)
	}
	if k > len(inputs) {
		return New()
	}

	levels := k + 1
	atLeast := make([]*Bitmap, levels+1)
	atLeast[0] = Full(n)
	for j := 1; j <= levels; j++ {
		atLeast[j] = Get()
	}
	defer func() {
		for j := 1; j <= levels; j++ {
			Put(atLeast[j])
		}
	}()

	for i, in := range inputs {
		top := min(i+1, levels)
		for j := top; j >= 1; j-- {
			promoted := Intersect(atLeast[j-1], in)
			atLeast[j].Or(promoted)
		}
	}

	result := atLeast[k].Clone()
	if exact {
		result.AndNot(atLeast[k+1])
	}
	return result
}
