package qptrie

import (
	"errors"
	"math"
	"sync"

	set3 "github.com/TomTonic/Set3"
)

// welford accumulates a running mean and variance without retaining the
// full sample history, mirroring the original's struct qp_stats; used
// here for the GC timing and space-reclaimed statistics §4.5 calls for.
type welford struct {
	count int64
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	d := x - w.mean
	w.mean += d / float64(w.count)
	w.m2 += d * (x - w.mean)
}

func (w *welford) variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

// gcStats holds the running statistics Compact updates and PrintMemStats
// reports.
type gcStats struct {
	mu    sync.Mutex
	time  welford // nanoseconds per Compact call
	space welford // bytes of page capacity reclaimed per Compact call (see totalCapacity)
	runs  int64
}

// GCStats is a point-in-time snapshot of the collector's running
// statistics, safe to read concurrently with Compact.
type GCStats struct {
	Runs         int64
	MeanNanos    float64
	NanosStdDev  float64
	MeanReclaim  float64
	ReclaimStdDev float64
}

// GCStats returns a snapshot of the collector's accumulated statistics.
func (h *Handle[V]) GCStats() GCStats {
	h.gcStats.mu.Lock()
	defer h.gcStats.mu.Unlock()
	return GCStats{
		Runs:          h.gcStats.runs,
		MeanNanos:     h.gcStats.time.mean,
		NanosStdDev:   math.Sqrt(h.gcStats.time.variance()),
		MeanReclaim:   h.gcStats.space.mean,
		ReclaimStdDev: math.Sqrt(h.gcStats.space.variance()),
	}
}

// claimPage makes dst.pages[p] alias src's page p verbatim, so a twig
// block evacuate leaves in place keeps a valid ref in dst without copying
// its bytes. This is safe because a page, once written, is never mutated
// in place by this package — only retired (bookkeeping) and eventually
// discarded — so dst and the soon-to-be-discarded src can share the same
// backing array for as long as dst lives.
func (t *trieState[V]) claimPage(src *trieState[V], p uint32) {
	for uint32(len(t.pages)) <= p {
		t.pages = append(t.pages, nil)
		t.usage = append(t.usage, pageUsage{})
	}
	if t.pages[p] == nil {
		t.pages[p] = src.pages[p]
		t.usage[p] = src.usage[p]
	}
}

// evacuate implements spec §4.5 step 2: it walks the subtree rooted at n,
// recursing on branch children first so their twig refs are already
// settled, then decides whether the current twig block must be copied
// into dst or can be left referencing its current page in src. A block
// evacuates when the page it lives in has dropped below cfg.MinUsage, or
// when any child twig was itself rewritten (a child's ref changed,
// making this block's in-place bytes stale); otherwise it is left in
// place and dst merely claims the page so the ref stays valid. It
// returns the node value to store in the parent's twig slot and whether
// this block was evacuated, so the caller one level up can fold that
// into its own evacuate-or-not decision.
func evacuate[V any](src, dst *trieState[V], cfg *Config, n *node[V]) (node[V], bool, error) {
	if n.isLeaf() {
		return *n, false, nil
	}

	size := n.twigMax()
	srcTwigs := src.twigSlice(n.twigs, size)
	rewritten := make([]node[V], size)
	childEvacuated := false
	for i := range srcTwigs {
		child, evac, err := evacuate(src, dst, cfg, &srcTwigs[i])
		if err != nil {
			return node[V]{}, false, err
		}
		rewritten[i] = child
		if evac {
			childEvacuated = true
		}
	}

	pageIdx := n.twigs.pageIndex()
	belowMinUsage := src.usage[pageIdx].live() < cfg.MinUsage

	if !childEvacuated && !belowMinUsage {
		dst.claimPage(src, pageIdx)
		return newBranch[V](n.keyPos, n.bitmap, n.twigs), false, nil
	}

	newRef, err := dst.alloc(uint32(size))
	if err != nil {
		return node[V]{}, false, err
	}
	copy(dst.twigSlice(newRef, size), rewritten)
	return newBranch[V](n.keyPos, n.bitmap, newRef), true, nil
}

// compact returns a trieState holding every node reachable from t's root,
// evacuating twig blocks per evacuate's selective policy rather than
// unconditionally recopying the whole tree. dst reserves a page-index
// prefix matching t's own page count so a retained (non-evacuated) block
// can keep its original ref: claimPage fills in whichever of those
// reserved slots end up retained, and the bump allocator is sealed past
// the last one so freshly evacuated blocks always land after it, never
// colliding with a reserved index.
func (t *trieState[V]) compact(cfg *Config) (*trieState[V], error) {
	if t.root == nilRef {
		empty := newTrieState[V]()
		empty.usage[0].used = PageSize // seal page 0 so ref 0 is never handed out
		return empty, nil
	}

	reserve := uint32(len(t.pages))
	fresh := &trieState[V]{
		pages: make([]page[V], reserve, reserve+4),
		usage: make([]pageUsage, reserve, reserve+4),
	}
	fresh.usage[reserve-1] = pageUsage{used: PageSize}

	rootVal, _, err := evacuate(t, fresh, cfg, t.deref(t.root))
	if err != nil {
		return nil, err
	}
	r, err := fresh.alloc(1)
	if err != nil {
		return nil, err
	}
	if fresh.pages[reserve-1] == nil {
		fresh.usage[reserve-1] = pageUsage{}
	}
	*fresh.deref(r) = rootVal
	fresh.root = r
	fresh.count = t.count
	return fresh, nil
}

// totalCapacity reports how many bytes of page space t currently holds,
// live and garbage combined. Compact uses the before/after delta as the
// "space reclaimed" statistic. Only pages actually backed by a node
// array are counted: after a selective compaction, t.pages may contain
// unclaimed placeholder slots reserved so retained twig blocks keep a
// valid ref (see evacuate/compact), and those never consume real memory.
func (t *trieState[V]) totalCapacity() uint64 {
	var n uint64
	for _, p := range t.pages {
		if p != nil {
			n++
		}
	}
	return n * PageSize * uint64(nodeSize[V]())
}

// emptyPageIndices returns the set of page indices holding no live
// nodes, per spec §4.6's "later list": pages a collection finds empty
// are queued here rather than freed on the spot, since a reader that
// began its walk before this Compact call may still hold a reference
// into one.
func (t *trieState[V]) emptyPageIndices() *set3.Set3[uint32] {
	s := set3.Empty[uint32]()
	for i, u := range t.usage {
		if t.pages[i] != nil && u.live() == 0 {
			s.Add(uint32(i))
		}
	}
	return s
}

// Compact runs the copying collector of §4.5 over the currently open
// draft generation, walking every reachable node and selectively
// evacuating twig blocks: a block moves to a newly allocated page only if
// its own page's live ratio has dropped below cfg.MinUsage or one of its
// children was itself rewritten, and is otherwise left referencing its
// current page (see evacuate). CowStart must have opened a draft first;
// Compact does not touch the published live generation readers may still
// be observing.
//
// The indices of pages the old draft held with no live nodes are recorded
// in the handle's later list, replacing the list from the previous Compact
// call; PrintMemStats reports how many there are. Compact frees no page
// itself: a page that the new draft does not claim simply drops out of its
// page table, and the Go runtime reclaims it once no generation refers to it.
func (h *Handle[V]) Compact() error {
	if h.draft == nil {
		return newError("Compact", KindConcurrentWriter, errors.New("no draft open; call CowStart first"))
	}
	h.laterList = nil

	start := h.cfg.Clock.Now()
	before := h.draft.totalCapacity()

	fresh, err := h.draft.compact(h.cfg)
	if err != nil {
		return err
	}
	h.laterList = h.draft.emptyPageIndices()
	h.draft = fresh

	elapsed := h.cfg.Clock.Now().Sub(start)
	// Selective evacuation can retain every existing page and still need
	// one fresh page for the root slot, so after can exceed before when
	// there was little or nothing to reclaim; report 0 rather than
	// underflowing the unsigned subtraction.
	var reclaimed uint64
	if after := fresh.totalCapacity(); before > after {
		reclaimed = before - after
	}

	h.gcStats.mu.Lock()
	h.gcStats.runs++
	h.gcStats.time.add(float64(elapsed.Nanoseconds()))
	h.gcStats.space.add(float64(reclaimed))
	h.gcStats.mu.Unlock()
	return nil
}

// ShouldCompact reports whether the open draft's accumulated garbage has
// crossed cfg.GCThreshold, the size-based policy the spec leaves to the
// host to decide when to call Compact.
func (h *Handle[V]) ShouldCompact() bool {
	if h.draft == nil {
		return false
	}
	var free uint64
	for _, u := range h.draft.usage {
		free += uint64(u.free)
	}
	return free >= uint64(h.cfg.GCThreshold)
}

