package qptrie

import "errors"

// pathFrame records one branch visited while descending toward the
// insertion point: a value copy of the branch (so it can be compared
// against after further allocation happens) and which of its twigs the
// descent followed.
type pathFrame[V any] struct {
	node    node[V]
	twigIdx int
	shift   shift // the shift value tested at node.keyPos that led to twigIdx
}

// firstDivergence returns the smallest index at which a and b differ,
// treating a position past either slice's end as noByte (matching
// keyShiftAt). Two distinct, well-formed keys always diverge before
// either's doubled-NOBYTE terminator, since that terminator is what
// guarantees no name's key is a prefix of another's.
func firstDivergence(a, b []shift) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if keyShiftAt(a, i) != keyShiftAt(b, i) {
			return i
		}
	}
	return n
}

// rebuildPath propagates a replacement node up through the branches the
// descent passed through: each frame's twig array is reallocated fresh
// (COW never mutates an existing array in place), with only the one twig
// the path followed replaced by the accumulated result, and the result is
// finally written to a fresh root slot. This is the standard
// path-copying update a persistent trie needs: every ancestor of a
// changed node must itself become a new node, all the way to the root.
func rebuildPath[V any](st *trieState[V], frames []pathFrame[V], replacement node[V]) (ref, error) {
	cur := replacement
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		size := f.node.twigMax()
		newRef, err := st.alloc(uint32(size))
		if err != nil {
			return nilRef, err
		}
		copy(st.twigSlice(newRef, size), st.twigSlice(f.node.twigs, size))
		st.twigSlice(newRef, size)[f.twigIdx] = cur
		st.retire(f.node.twigs, uint32(size))
		cur = newBranch[V](f.node.keyPos, f.node.bitmap, newRef)
	}
	rootRef, err := st.alloc(1)
	if err != nil {
		return nilRef, err
	}
	*st.deref(rootRef) = cur
	return rootRef, nil
}

// predecessor returns the value of the greatest stored name strictly less
// than the name key encodes, the "previous sibling" §4.4 step 7 asks Add
// to report. It shares its backtracking shape with FindLE but always
// backtracks past an exact match instead of returning it, since at the
// point Add calls this the exact key has already been inserted.
func (st *trieState[V]) predecessor(key []shift) (V, bool) {
	var zero V
	if st.root == nilRef {
		return zero, false
	}
	var marks []descentMark[V]
	n := st.deref(st.root)
	for n.isBranch() {
		s := keyShiftAt(key, n.keyPos)
		countBelow := n.bitmap.twigPos(s)
		marks = append(marks, descentMark[V]{node: n, pos: countBelow - 1})
		if !n.hasTwig(s) {
			break
		}
		twigs := st.twigSlice(n.twigs, n.twigMax())
		n = &twigs[countBelow]
	}
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		if m.pos < 0 {
			continue
		}
		twigs := st.twigSlice(m.node.twigs, m.node.twigMax())
		leaf := st.rightmostLeaf(&twigs[m.pos])
		return leaf.value, true
	}
	return zero, false
}

// leftmostLeaf is successor's mirror image of rightmostLeaf: always
// taking a subtree's lowest twig reaches its lexicographically smallest
// name.
func (st *trieState[V]) leftmostLeaf(n *node[V]) *node[V] {
	for n.isBranch() {
		twigs := st.twigSlice(n.twigs, n.twigMax())
		n = &twigs[0]
	}
	return n
}

// successor returns the value of the smallest stored name strictly
// greater than the name key encodes, the "next sibling" §4.4 step 7 asks
// Add to report.
func (st *trieState[V]) successor(key []shift) (V, bool) {
	var zero V
	if st.root == nilRef {
		return zero, false
	}
	type ascentMark struct {
		node *node[V]
		pos  int // index of the smallest twig > s at this branch, or -1
	}
	var marks []ascentMark
	n := st.deref(st.root)
	for n.isBranch() {
		s := keyShiftAt(key, n.keyPos)
		total := n.twigMax()
		exactPos := n.bitmap.twigPos(s)
		has := n.hasTwig(s)
		above := exactPos
		if has {
			above++
		}
		pos := -1
		if above < total {
			pos = above
		}
		marks = append(marks, ascentMark{node: n, pos: pos})
		if !has {
			break
		}
		twigs := st.twigSlice(n.twigs, total)
		n = &twigs[exactPos]
	}
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		if m.pos < 0 {
			continue
		}
		twigs := st.twigSlice(m.node.twigs, m.node.twigMax())
		leaf := st.leftmostLeaf(&twigs[m.pos])
		return leaf.value, true
	}
	return zero, false
}

// Add inserts name with the given value into the draft generation opened
// by CowStart, implementing §4.4. It reports the values of name's
// immediate neighbours in canonical order after insertion (prevOk/nextOk
// false if name sorts first/last in the trie); this is the Go form of the
// add operation of §6, taking the name and value directly.
// Inserting a name already present is a contract violation and panics,
// matching the spec's "names are unique" invariant and this package's
// error-handling policy of reserving panics for programmer errors rather
// than runtime conditions.
func (h *Handle[V]) Add(name Name, value V) (prev V, prevOk bool, next V, nextOk bool, err error) {
	key, err := encode(name)
	if err != nil {
		return prev, false, next, false, err
	}
	st := h.draft
	if st == nil {
		return prev, false, next, false,
			newError("Add", KindConcurrentWriter, errors.New("no draft open; call CowStart first"))
	}
	nameCopy := name.Clone()

	if st.root == nilRef {
		r, aerr := st.alloc(1)
		if aerr != nil {
			return prev, false, next, false, aerr
		}
		*st.deref(r) = newLeaf(&nameCopy, value)
		st.root = r
		st.count++
		return prev, false, next, false, nil
	}

	var frames []pathFrame[V]
	n := st.deref(st.root)

	for n.isBranch() {
		s := keyShiftAt(key, n.keyPos)
		if !n.hasTwig(s) {
			// If the new key leaves this subtree's shared prefix before
			// keyPos, the split below happens above this branch instead.
			probe := st.leftmostLeaf(n)
			probeKey, kerr := encode(*probe.name)
			if kerr != nil {
				return prev, false, next, false, kerr
			}
			if firstDivergence(key, probeKey) < n.keyPos {
				frames = append(frames, pathFrame[V]{node: *n})
				n = probe
				break
			}
			// This branch already tests the position the new key
			// diverges at; it just needs one more twig, not a new
			// branch node.
			size := n.twigMax()
			newRef, aerr := st.alloc(uint32(size + 1))
			if aerr != nil {
				return prev, false, next, false, aerr
			}
			pos := n.twigPos(s)
			oldTwigs := st.twigSlice(n.twigs, size)
			newTwigs := st.twigSlice(newRef, size+1)
			copy(newTwigs[:pos], oldTwigs[:pos])
			newTwigs[pos] = newLeaf(&nameCopy, value)
			copy(newTwigs[pos+1:], oldTwigs[pos:])
			st.retire(n.twigs, uint32(size))

			replacement := newBranch[V](n.keyPos, n.bitmap.set(s), newRef)
			root, rerr := rebuildPath(st, frames, replacement)
			if rerr != nil {
				return prev, false, next, false, rerr
			}
			st.root = root
			st.count++
			prev, prevOk = st.predecessor(key)
			next, nextOk = st.successor(key)
			return prev, prevOk, next, nextOk, nil
		}

		pos := n.twigPos(s)
		frames = append(frames, pathFrame[V]{node: *n, twigIdx: pos, shift: s})
		twigs := st.twigSlice(n.twigs, n.twigMax())
		n = &twigs[pos]
	}

	if n.name.Equal(name) {
		panic("qptrie: duplicate name inserted: " + name.String())
	}

	oldKey, kerr := encode(*n.name)
	if kerr != nil {
		return prev, false, next, false, kerr
	}
	d := firstDivergence(key, oldKey)
	oldShift := keyShiftAt(oldKey, d)
	newShift := keyShiftAt(key, d)
	oldLeaf := *n

	splitAt := 0
	for _, f := range frames {
		if f.node.keyPos >= d {
			break
		}
		splitAt++
	}
	if splitAt < len(frames) {
		// The whole subtree below frames[splitAt] shares the prefix up to
		// d, so it, not just the leaf reached, becomes the new sibling.
		oldLeaf = frames[splitAt].node
	}

	newRef, aerr := h.draft.alloc(2)
	if aerr != nil {
		return prev, false, next, false, aerr
	}
	twigs := st.twigSlice(newRef, 2)
	if oldShift < newShift {
		twigs[0], twigs[1] = oldLeaf, newLeaf(&nameCopy, value)
	} else {
		twigs[0], twigs[1] = newLeaf(&nameCopy, value), oldLeaf
	}
	bm := branchBitmap(0).set(oldShift).set(newShift)
	replacement := newBranch[V](d, bm, newRef)

	root, rerr := rebuildPath(st, frames[:splitAt], replacement)
	if rerr != nil {
		return prev, false, next, false, rerr
	}
	st.root = root
	st.count++
	prev, prevOk = st.predecessor(key)
	next, nextOk = st.successor(key)
	return prev, prevOk, next, nextOk, nil
}
