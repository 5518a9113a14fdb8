package offsetalloc

import "testing"

func TestValidateOnFreshUninitializedAllocator(t *testing.T) {
	a := New()
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate on an allocator never Reset: %v", err)
	}
}

func TestValidateOnZeroSizeReset(t *testing.T) {
	a := NewWithCapacity(4)
	a.Reset(0)
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate after Reset(0): %v", err)
	}
}

func TestValidateDetectsAccountingAfterManyOperations(t *testing.T) {
	a := NewWithCapacity(16)
	a.Reset(4096)

	var live []Allocation
	sizes := []uint32{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}
	for _, s := range sizes {
		alloc := a.Allocate(s)
		if alloc.Offset == NoSpace {
			continue
		}
		live = append(live, alloc)
		if err := a.Validate(); err != nil {
			t.Fatalf("Validate after allocating %d: %v", s, err)
		}
	}

	for i, alloc := range live {
		if i%2 == 0 {
			a.Free(alloc)
			if err := a.Validate(); err != nil {
				t.Fatalf("Validate after freeing allocation %d: %v", i, err)
			}
		}
	}
}

func TestLiveSlotsMatchesNonFreeStackEntries(t *testing.T) {
	a := NewWithCapacity(4)
	a.Reset(64)
	alloc := a.Allocate(8)

	live := a.liveSlots()
	if !live.Contains(alloc.Metadata) {
		t.Fatalf("liveSlots() does not contain the node backing a live allocation")
	}
}
