package qptrie

import (
	"runtime"
	"sync"
	"sync/atomic"

	set3 "github.com/TomTonic/Set3"
)

// Handle is the trie's entry point: it owns the live, published
// generation plus, while a write is in flight, a draft generation built
// by CowStart/CowFinish (§5). Reads (Get, FindLE, ForEach) always see a
// consistent, complete generation; they never observe a partially built
// draft, and they never block on a writer.
type Handle[V any] struct {
	cfg *Config

	live  atomic.Pointer[trieState[V]]
	draft *trieState[V]

	writing sync.Mutex // held by the single in-flight writer, start to finish
	mu      sync.Mutex // guards draft and the epoch bookkeeping below

	epoch   atomic.Uint64
	readers sync.Map // epoch (uint64) -> *atomic.Int64 refcount

	region Region

	gcStats   gcStats
	laterList *set3.Set3[uint32] // page indices Compact found empty, queued one generation before release
}

// Init creates an empty Handle ready for Get/FindLE/ForEach; Add and Del
// need a draft opened by CowStart first. A nil cfg uses DefaultConfig.
func Init[V any](cfg *Config) *Handle[V] {
	cfg = cfg.withDefaults()
	h := &Handle[V]{cfg: cfg, region: cfg.Region}
	h.region.Alloc("handle")
	h.region.Alloc("trie-state")
	h.live.Store(newTrieState[V]())
	return h
}

// Destroy releases the handle's state. It is not safe to call
// concurrently with any other Handle method, or while a draft is open.
func (h *Handle[V]) Destroy() {
	h.live.Store(nil)
	if ar, ok := h.region.(*ArenaRegion); ok {
		ar.Free()
		ar.Free()
	}
}

// Count returns the number of names currently stored in the live
// generation.
func (h *Handle[V]) Count() uint32 {
	st := h.live.Load()
	if st == nil {
		return 0
	}
	return st.count
}

// CowStart opens a draft generation cloned from the current live one, for
// Add/Del to mutate. Only one draft may be open at a time; a concurrent
// CowStart returns KindConcurrentWriter rather than blocking, since the
// spec assigns the trie a single writer thread.
func (h *Handle[V]) CowStart() error {
	if !h.writing.TryLock() {
		return newError("CowStart", KindConcurrentWriter, nil)
	}
	h.mu.Lock()
	h.draft = h.live.Load().clone()
	h.mu.Unlock()
	h.region.Alloc("cow-draft")
	return nil
}

// CowFinish publishes the draft as the new live generation and advances
// the epoch. Pages the draft's writes superseded are not reclaimed
// immediately — a reader that began its lookup before publication may
// still be dereferencing them — so CowFinish blocks until every reader
// that entered under the previous epoch has exited, then returns. This
// resolves the spec's "COW reader discipline" open question as an
// epoch-based grace period rather than a fixed sleep or external RCU
// callback: see DESIGN.md.
func (h *Handle[V]) CowFinish() {
	h.mu.Lock()
	draft := h.draft
	h.draft = nil
	retiring := h.epoch.Load()
	h.live.Store(draft)
	h.epoch.Add(1)
	h.mu.Unlock()

	h.awaitEpochDrain(retiring)
	if ar, ok := h.region.(*ArenaRegion); ok {
		ar.Free() // the superseded live generation's region slot
	}
	h.writing.Unlock()
}

// CowAbort discards the draft without publishing it, for a writer that
// decides mid-transaction not to proceed (e.g. an Add that turned out to
// duplicate an existing name).
func (h *Handle[V]) CowAbort() {
	h.mu.Lock()
	h.draft = nil
	h.mu.Unlock()
	if ar, ok := h.region.(*ArenaRegion); ok {
		ar.Free() // the discarded draft's region slot
	}
	h.writing.Unlock()
}

// enterEpoch records that a read is in flight under the current epoch,
// pinning it against concurrent reclamation.
func (h *Handle[V]) enterEpoch() uint64 {
	e := h.epoch.Load()
	v, _ := h.readers.LoadOrStore(e, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	return e
}

// exitEpoch releases the pin taken by enterEpoch.
func (h *Handle[V]) exitEpoch(e uint64) {
	if v, ok := h.readers.Load(e); ok {
		v.(*atomic.Int64).Add(-1)
	}
}

// awaitEpochDrain blocks until every reader that entered under epoch e
// (the epoch in effect just before this CowFinish) has exited. New
// readers always enter under the epoch CowFinish already advanced to, so
// this count is monotonically non-increasing once observed.
func (h *Handle[V]) awaitEpochDrain(e uint64) {
	v, ok := h.readers.Load(e)
	if !ok {
		return
	}
	counter := v.(*atomic.Int64)
	for counter.Load() > 0 {
		runtime.Gosched()
	}
	h.readers.Delete(e)
}
