package offsetalloc

import (
	"fmt"

	set3 "github.com/TomTonic/Set3"
)

// Validate walks the allocator's bookkeeping and returns a descriptive
// error on the first invariant violation it finds: bitmap/bin-list
// consistency, free-storage accounting, neighbor-chain coverage, and
// coalescing minimality. It is meant for tests and debug tooling, not the
// allocation hot path, and allocates on every call.
func (a *Allocator) Validate() error {
	if a.nodes == nil {
		return nil
	}

	live := a.liveSlots()

	seenInBins := set3.Empty[uint32]()
	var freeTotal uint32
	for bin := uint32(0); bin < numBins; bin++ {
		head := a.binIndices[bin]
		leafSet := a.usedBins[bin>>topBinsIndexShift]&(1<<(bin&leafBinsIndexMask)) != 0
		if (head != noSpace) != leafSet {
			return fmt.Errorf("offsetalloc: bin %d bitmap bit disagrees with its list head", bin)
		}
		for idx := head; idx != noSpace; idx = a.nodes[idx].binListNext {
			if !live.Contains(idx) {
				return fmt.Errorf("offsetalloc: bin %d lists node %d, which is not a live slot", bin, idx)
			}
			if seenInBins.Contains(idx) {
				return fmt.Errorf("offsetalloc: node %d is present in more than one bin list", idx)
			}
			seenInBins.Add(idx)
			n := a.nodes[idx]
			if n.used {
				return fmt.Errorf("offsetalloc: node %d is marked used but present in bin %d's free list", idx, bin)
			}
			if got := roundDown(n.dataSize); got != bin {
				return fmt.Errorf("offsetalloc: node %d (size %d) is filed in bin %d, but roundDown gives %d", idx, n.dataSize, bin, got)
			}
			freeTotal += n.dataSize
		}
	}
	for top := uint32(0); top < numTopBins; top++ {
		topSet := a.usedBinsTop&(1<<top) != 0
		if (a.usedBins[top] != 0) != topSet {
			return fmt.Errorf("offsetalloc: top bit %d disagrees with leaf byte %08b", top, a.usedBins[top])
		}
	}
	if freeTotal != a.freeStorage {
		return fmt.Errorf("offsetalloc: tracked free storage %d, computed %d from bin lists", a.freeStorage, freeTotal)
	}

	if a.size == 0 {
		return nil
	}

	head := a.findNeighborHead(live)
	if head == noSpace {
		return fmt.Errorf("offsetalloc: no node covers offset 0 of a non-empty range")
	}

	seenInChain := set3.Empty[uint32]()
	var covered uint32
	var prevWasFree bool
	first := true
	for idx := head; idx != noSpace; {
		if !live.Contains(idx) {
			return fmt.Errorf("offsetalloc: neighbor chain references non-live node %d", idx)
		}
		if seenInChain.Contains(idx) {
			return fmt.Errorf("offsetalloc: neighbor chain cycles back to node %d", idx)
		}
		seenInChain.Add(idx)

		n := a.nodes[idx]
		if n.dataOffset != covered {
			return fmt.Errorf("offsetalloc: neighbor chain gap or overlap at node %d (offset %d, expected %d)", idx, n.dataOffset, covered)
		}
		if !n.used && !first && prevWasFree {
			return fmt.Errorf("offsetalloc: two consecutive free neighbors, ending at node %d", idx)
		}
		prevWasFree = !n.used
		covered += n.dataSize
		first = false
		idx = n.neighborNext
	}
	if covered != a.size {
		return fmt.Errorf("offsetalloc: neighbor chain covers %d, want %d", covered, a.size)
	}
	if uint32(seenInChain.Len()) != uint32(live.Len()) {
		return fmt.Errorf("offsetalloc: neighbor chain visits %d nodes, but %d are live", seenInChain.Len(), live.Len())
	}

	return nil
}

// liveSlots returns the set of node-pool indices currently in use by the
// allocator's structures (used or free-but-filed), i.e. every slot not
// sitting on the free-index stack.
func (a *Allocator) liveSlots() *set3.Set3[uint32] {
	onFreeStack := set3.Empty[uint32]()
	if a.freeOffset != noSpace {
		for k := uint32(0); k <= a.freeOffset; k++ {
			onFreeStack.Add(a.freeNodes[k])
		}
	}
	live := set3.Empty[uint32]()
	for i := uint32(0); i < uint32(len(a.nodes)); i++ {
		if !onFreeStack.Contains(i) {
			live.Add(i)
		}
	}
	return live
}

// findNeighborHead returns the live node whose dataOffset is 0, the start
// of the neighbor chain, or noSpace if none is live.
func (a *Allocator) findNeighborHead(live *set3.Set3[uint32]) uint32 {
	for i := uint32(0); i < uint32(len(a.nodes)); i++ {
		if live.Contains(i) && a.nodes[i].dataOffset == 0 {
			return i
		}
	}
	return noSpace
}
