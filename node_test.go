package offsetalloc

import "testing"

func TestNodeSlotStackLIFOAndExhaustion(t *testing.T) {
	a := NewWithCapacity(2) // 3 slots: indices 0, 1, 2
	a.Reset(0)              // initializes the pool without filing any region

	first := a.allocateNodeSlot()
	second := a.allocateNodeSlot()
	third := a.allocateNodeSlot()
	if first == noSpace || second == noSpace || third == noSpace {
		t.Fatalf("expected 3 successful slot allocations, got %d, %d, %d", first, second, third)
	}
	if got := a.allocateNodeSlot(); got != noSpace {
		t.Fatalf("4th allocateNodeSlot() = %d, want noSpace (pool exhausted)", got)
	}

	a.releaseNodeSlot(second)
	if got := a.allocateNodeSlot(); got != second {
		t.Fatalf("allocateNodeSlot() after release = %d, want %d (most recently released)", got, second)
	}
}
