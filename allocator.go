package offsetalloc

import "math/bits"

// DefaultMaxAllocs is the node-pool capacity New uses when the caller
// doesn't pick one explicitly.
const DefaultMaxAllocs = 65535

// Allocator is a two-level binned free-list suballocator over the integer
// range [0, size). It hands out and reclaims offsets; it never touches
// backing memory itself. An Allocator is single-owner and non-reentrant:
// no method is safe to call concurrently, even across distinct methods on
// the same value, and it carries no internal locking to enforce that.
type Allocator struct {
	size       uint32
	maxAllocs  uint32
	freeOffset uint32

	freeStorage uint32
	usedBinsTop uint32
	usedBins    [numTopBins]uint8
	binIndices  [numBins]uint32

	nodes     []node
	freeNodes []uint32
}

// New returns an Allocator with no backing range; call Reset before the
// first Allocate.
func New() *Allocator {
	return NewWithCapacity(DefaultMaxAllocs)
}

// NewWithCapacity returns an Allocator whose node pool holds maxAllocs+1
// region descriptors, used and free regions combined; at most maxAllocs
// allocations can be live at once.
func NewWithCapacity(maxAllocs uint32) *Allocator {
	return &Allocator{maxAllocs: maxAllocs}
}

// Reset discards all outstanding allocations and reinitializes the
// allocator over a fresh [0, newSize) range. It is a no-op when newSize
// equals the allocator's current size and it has already been initialized
// once.
func (a *Allocator) Reset(newSize uint32) {
	if newSize == a.size && a.nodes != nil {
		return
	}

	a.size = newSize
	a.freeStorage = 0
	a.usedBinsTop = 0
	a.usedBins = [numTopBins]uint8{}
	for i := range a.binIndices {
		a.binIndices[i] = noSpace
	}

	poolSize := a.maxAllocs + 1
	a.nodes = make([]node, poolSize)
	a.freeNodes = make([]uint32, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		a.freeNodes[i] = a.maxAllocs - i
	}
	a.freeOffset = a.maxAllocs

	if newSize > 0 {
		a.insertNodeIntoBin(newSize, 0)
	}
}

// Allocate grants a contiguous region of exactly size offsets, returning
// Allocation{NoSpace, NoSpace} when no free region is large enough or the
// node pool is exhausted. The free region it is carved from is the head of
// the smallest non-empty bin at or above roundUp(size) and may be larger
// than requested; any surplus is split off and returned to a free bin
// immediately.
func (a *Allocator) Allocate(size uint32) Allocation {
	if size == 0 || a.nodes == nil || a.freeOffset == noSpace {
		return Allocation{Offset: NoSpace, Metadata: NoSpace}
	}

	minBin := roundUp(size)
	minTop := minBin >> topBinsIndexShift
	minLeaf := minBin & leafBinsIndexMask

	top := minTop
	leaf := noSpace
	if a.usedBinsTop&(1<<top) != 0 {
		leaf = findLowestSetBitAfter(uint32(a.usedBins[top]), minLeaf)
	}
	if leaf == noSpace {
		top = findLowestSetBitAfter(a.usedBinsTop, minTop+1)
		if top == noSpace {
			return Allocation{Offset: NoSpace, Metadata: NoSpace}
		}
		leaf = uint32(bits.TrailingZeros32(uint32(a.usedBins[top])))
	}
	bin := (top << topBinsIndexShift) | leaf

	nodeIndex := a.binIndices[bin]
	n := &a.nodes[nodeIndex]
	nodeTotalSize := n.dataSize

	a.binIndices[bin] = n.binListNext
	if n.binListNext != noSpace {
		a.nodes[n.binListNext].binListPrev = noSpace
	}
	if a.binIndices[bin] == noSpace {
		a.markBinFree(bin)
	}
	a.freeStorage -= nodeTotalSize

	n.dataSize = size
	n.used = true
	n.binListPrev = noSpace
	n.binListNext = noSpace

	if remainder := nodeTotalSize - size; remainder > 0 {
		remainderIndex := a.insertNodeIntoBin(remainder, n.dataOffset+size)
		a.spliceRemainderAfter(nodeIndex, remainderIndex)
	}

	return Allocation{Offset: n.dataOffset, Metadata: nodeIndex}
}

// Free returns a previously granted Allocation to the allocator,
// coalescing it with any free spatial neighbor in O(1).
func (a *Allocator) Free(alloc Allocation) {
	a.FreeByIndex(alloc.Metadata)
}

// FreeByIndex returns the region identified by metadata (an
// Allocation.Metadata value) to the allocator. Freeing NoSpace, or calling
// it before the first Reset, is a silent no-op; freeing an already-free
// node panics.
func (a *Allocator) FreeByIndex(metadata uint32) {
	if metadata == NoSpace || a.nodes == nil {
		return
	}
	n := &a.nodes[metadata]
	if !n.used {
		panic("offsetalloc: double free")
	}

	offset := n.dataOffset
	size := n.dataSize
	neighborPrev := n.neighborPrev
	neighborNext := n.neighborNext

	if neighborPrev != noSpace && !a.nodes[neighborPrev].used {
		neighborPrev = a.absorbPrevNeighbor(neighborPrev, &offset, &size)
	}
	if neighborNext != noSpace && !a.nodes[neighborNext].used {
		neighborNext = a.absorbNextNeighbor(neighborNext, &size)
	}

	a.releaseNodeSlot(metadata)

	mergedIndex := a.insertNodeIntoBin(size, offset)
	a.relinkMerged(mergedIndex, neighborPrev, neighborNext)
}

// AllocationSize returns the size currently recorded for alloc's node, or
// 0 if its metadata is NoSpace or out of range, or the allocator has no
// pool yet. It does not check whether the node is still allocated: after a
// Free it returns whatever that pool slot now records.
func (a *Allocator) AllocationSize(alloc Allocation) uint32 {
	if alloc.Metadata == NoSpace || a.nodes == nil || int(alloc.Metadata) >= len(a.nodes) {
		return 0
	}
	return a.nodes[alloc.Metadata].dataSize
}

// Capacity returns the maximum number of simultaneously live regions this
// allocator's node pool was sized for.
func (a *Allocator) Capacity() uint32 {
	return a.maxAllocs
}

// Size returns the current backing range, as last passed to Reset.
func (a *Allocator) Size() uint32 {
	return a.size
}

// StorageReport summarizes free space across the whole allocator in O(1).
// It returns the zero value once the node pool has only one free slot
// left (freeOffset == 0), treating that as indistinguishable from "no
// allocations have ever been made" rather than reporting the true,
// possibly nonzero, free space (see DESIGN.md).
func (a *Allocator) StorageReport() StorageReport {
	if a.freeOffset == 0 {
		return StorageReport{}
	}
	var largest uint32
	if a.usedBinsTop != 0 {
		top := uint32(bits.Len32(a.usedBinsTop) - 1)
		leaf := uint32(bits.Len32(uint32(a.usedBins[top])) - 1)
		largest = binToValue((top << topBinsIndexShift) | leaf)
	}
	return StorageReport{TotalFreeSpace: a.freeStorage, LargestFreeRegion: largest}
}

// StorageReportFull breaks free space down per bin in O(numBins + free
// regions), walking each bin's free list to report its representable size
// and live count.
func (a *Allocator) StorageReportFull() StorageReportFull {
	var report StorageReportFull
	for bin := uint32(0); bin < numBins; bin++ {
		var count uint32
		for idx := a.binIndices[bin]; idx != noSpace; idx = a.nodes[idx].binListNext {
			count++
		}
		report.FreeRegions[bin] = RegionInfo{Size: binToValue(bin), Count: count}
	}
	return report
}
