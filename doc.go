// Package offsetalloc implements a two-level binned free-list suballocator
// for fixed integer offset ranges [0, size).
//
// The allocator never touches memory; it only hands out and reclaims
// offsets within an abstract [0, size) range so a caller can map its own
// backing storage (a GPU heap, an mmap'd arena, a custom byte buffer) onto
// variable-size requests with O(1) allocate/free and low fragmentation.
//
// An Allocator is a single-owner, non-reentrant data structure: no method
// is safe to call concurrently, even across distinct methods on the same
// value. Callers needing concurrent access must wrap an Allocator in their
// own mutex or shard across several.
package offsetalloc
