package qptrie

// page is one fixed-size slab of nodes. Twigs are always allocated as a
// contiguous run within a single page; a run never spans two pages, so a
// branch's largest possible fan-out is bounded by PageSize.
type page[V any] []node[V]

// pageUsage tracks the three live/used/free counters the spec's allocator
// keeps per page (§4.3): keep is the count inherited from before the
// current COW draft began (shared, never rewritten by the draft), used is
// the bump high-water mark in this page (clone sets it to PageSize on
// every inherited page to seal it), and free is the number of slots
// retired since. Compact moves a page's twig blocks out once live()
// drops below Config.MinUsage, which is a node count, not a ratio.
type pageUsage struct {
	keep uint32
	used uint32
	free uint32
}

// live returns the number of slots still live, used minus free, or 0 if
// more slots were retired than used.
func (u pageUsage) live() uint32 {
	if u.used < u.free {
		return 0
	}
	return u.used - u.free
}

// trieState is one generation of the trie: either the live, published
// generation a Handle's readers see, or the draft generation a writer is
// building under CowStart/CowFinish. Exactly one trieState is ever
// mutated at a time; the other, if present, is read-only.
type trieState[V any] struct {
	pages []page[V]
	usage []pageUsage
	root  ref
	count uint32
}

func newTrieState[V any]() *trieState[V] {
	return &trieState[V]{
		pages: make([]page[V], 1, 4),
		usage: make([]pageUsage, 1, 4),
	}
}

// alloc reserves size contiguous node slots and returns a ref to the
// first one. It bump-allocates within the current last page. When the run
// does not fit there, it appends a new page to the table, reallocating the
// table with room for roughly 1.5x its length. Earlier pages are not
// searched, so free room in them is never reused.
func (t *trieState[V]) alloc(size uint32) (ref, error) {
	if size == 0 || size > PageSize {
		return nilRef, newError("alloc", KindAllocFailure, nil)
	}

	last := uint32(len(t.pages) - 1)
	if t.usage[last].used+size <= PageSize {
		offset := t.usage[last].used
		t.usage[last].used += size
		return makeRef(last, uint16(offset)), nil
	}

	return t.growAndAlloc(size)
}

func (t *trieState[V]) growAndAlloc(size uint32) (ref, error) {
	newCap := len(t.pages) + len(t.pages)/2 + 1
	grown := make([]page[V], len(t.pages), newCap)
	copy(grown, t.pages)
	grownUsage := make([]pageUsage, len(t.usage), newCap)
	copy(grownUsage, t.usage)
	t.pages = append(grown, make(page[V], PageSize))
	t.usage = append(grownUsage, pageUsage{})

	last := uint32(len(t.pages) - 1)
	t.usage[last].used = size
	return makeRef(last, 0), nil
}

// ensurePage backs page index p with PageSize node slots, first extending
// the page table with empty entries up to p if needed. No code in this
// package calls it.
func (t *trieState[V]) ensurePage(p uint32) {
	for uint32(len(t.pages)) <= p {
		t.pages = append(t.pages, nil)
		t.usage = append(t.usage, pageUsage{})
	}
	if t.pages[p] == nil {
		t.pages[p] = make(page[V], PageSize)
	}
}

// retire marks size slots starting at r as no longer live. Compact
// consults each page's resulting live count directly (against
// cfg.MinUsage) when it decides which twig blocks to evacuate, so retire
// itself just updates the bookkeeping.
func (t *trieState[V]) retire(r ref, size uint32) {
	p := r.pageIndex()
	t.usage[p].free += size
}

func (t *trieState[V]) deref(r ref) *node[V] {
	p := r.pageIndex()
	o := r.pageOffset()
	return &t.pages[p][o]
}

func (t *trieState[V]) twigSlice(r ref, n int) []node[V] {
	p := r.pageIndex()
	o := r.pageOffset()
	return t.pages[p][o : int(o)+n]
}

// clone returns a COW draft sharing this state's pages by reference: each
// page's keep counter is set to its current used count, so the draft's
// own writes are distinguishable from what it inherited. The shared
// pages' backing arrays are never mutated in place: clone seals every
// inherited page (including the previously-open last page) by marking it
// fully used, so the draft's own alloc calls always land in a brand new
// page rather than appending into memory a concurrent reader might still
// be walking. This trades a little per-draft space (an inherited page's
// unused tail becomes permanently unusable) for never needing a
// page-granularity copy-on-first-write.
func (t *trieState[V]) clone() *trieState[V] {
	pages := make([]page[V], len(t.pages), cap(t.pages))
	copy(pages, t.pages)
	usage := make([]pageUsage, len(t.usage), cap(t.usage))
	for i, u := range t.usage {
		usage[i] = pageUsage{keep: u.used, used: PageSize, free: u.free}
	}
	return &trieState[V]{
		pages: pages,
		usage: usage,
		root:  t.root,
		count: t.count,
	}
}
