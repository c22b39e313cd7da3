package qptrie

import "sync/atomic"

// Region is the metadata allocator collaborator from §6: it owns the
// lifetime of the trie state structs and the handle bookkeeping, as
// distinct from the page table, which is always heap-allocated directly
// so its lifecycle can be controlled independently of everything else (see
// "Page" in §3).
//
// Go's garbage-collected heap already gives every allocation region-like
// lifetime semantics, so Region does not manage raw memory itself; it
// exists so a host embedding this package can still account for and cap
// metadata allocations the way the spec's collaborator contract expects,
// without the trie itself reaching for a third-party arena library it has
// no real need for.
type Region interface {
	// Alloc accounts for one metadata allocation of the given purpose and
	// returns a serial number, purely for diagnostics.
	Alloc(purpose string) uint64
	// Live reports the number of outstanding allocations.
	Live() uint64
}

// ArenaRegion is the default Region: a simple atomic counter. It does not
// pool or reuse memory; it just tracks how many trie states and handles
// are currently live, which Live reports.
type ArenaRegion struct {
	allocated atomic.Uint64
	freed     atomic.Uint64
}

// NewArenaRegion returns a ready-to-use ArenaRegion.
func NewArenaRegion() *ArenaRegion { return &ArenaRegion{} }

// Alloc implements Region.
func (r *ArenaRegion) Alloc(purpose string) uint64 {
	_ = purpose
	return r.allocated.Add(1)
}

// Free records that a metadata allocation was released.
func (r *ArenaRegion) Free() {
	r.freed.Add(1)
}

// Live implements Region.
func (r *ArenaRegion) Live() uint64 {
	return r.allocated.Load() - r.freed.Load()
}
