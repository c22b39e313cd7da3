package qptrie

// ref is a 32-bit reference into the slab allocator: pageIndex*PageSize +
// offsetWithinPage, matching the spec's twig-reference encoding. A zero
// ref never denotes a live twig block; page 0 offset 0 is reserved.
type ref uint32

const nilRef ref = 0

func makeRef(page uint32, offset uint16) ref {
	return ref(uint64(page)*PageSize + uint64(offset))
}

func (r ref) pageIndex() uint32  { return uint32(uint64(r) / PageSize) }
func (r ref) pageOffset() uint16 { return uint16(uint64(r) % PageSize) }

// nodeTag distinguishes a leaf cell from a branch cell. The spec's C
// original steals the low bit of a pointer for this; Go's GC must be able
// to scan every pointer-typed field honestly, so this package uses an
// explicit tag field on a plain struct instead (permitted by the spec's
// Design Notes §9 as a tagged-variant representation for languages with
// adequate type safety).
type nodeTag uint8

const (
	tagLeaf nodeTag = iota
	tagBranch
)

// node is one cell of the trie: a leaf (holding a value and the full Name
// it was inserted under, for final confirmation) or a branch (holding a
// shift index into the key, a bitmap of which shift values have twigs,
// and a reference to the twig vector). node is generic over the value
// type, replacing the spec's "opaque pointer-sized payload" with a real
// type parameter.
type node[V any] struct {
	tag nodeTag

	// Branch fields.
	keyPos int // index into the key's shift sequence this branch tests
	bitmap branchBitmap
	twigs  ref

	// Leaf fields.
	name  *Name
	value V
}

func newLeaf[V any](name *Name, value V) node[V] {
	return node[V]{tag: tagLeaf, name: name, value: value}
}

func newBranch[V any](keyPos int, bitmap branchBitmap, twigs ref) node[V] {
	return node[V]{tag: tagBranch, keyPos: keyPos, bitmap: bitmap, twigs: twigs}
}

func (n *node[V]) isBranch() bool { return n.tag == tagBranch }
func (n *node[V]) isLeaf() bool   { return n.tag == tagLeaf }

// twigMax returns the branch's fan-out (number of twigs).
func (n *node[V]) twigMax() int { return n.bitmap.popcount() }

// twigPos returns the twig-vector index for shift s at this branch.
func (n *node[V]) twigPos(s shift) int { return n.bitmap.twigPos(s) }

// hasTwig reports whether this branch already has a twig for shift s.
func (n *node[V]) hasTwig(s shift) bool { return n.bitmap.has(s) }
