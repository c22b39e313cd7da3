package qptrie

import "errors"

// Del removes name from the draft generation opened by CowStart,
// implementing §4.6. found is false if name was not present, in which
// case the trie is left unchanged. Removing the second-to-last twig of a
// branch collapses that branch entirely — its one remaining twig takes
// its place in the parent, rather than leaving a wasteful single-child
// branch behind — while removing one of three or more twigs simply
// shrinks the branch's twig array.
func (h *Handle[V]) Del(name Name) (value V, found bool, err error) {
	var zero V
	key, err := encode(name)
	if err != nil {
		return zero, false, err
	}
	st := h.draft
	if st == nil {
		return zero, false, newError("Del", KindConcurrentWriter, errors.New("no draft open; call CowStart first"))
	}
	if st.root == nilRef {
		return zero, false, nil
	}

	var frames []pathFrame[V]
	n := st.deref(st.root)
	for n.isBranch() {
		s := keyShiftAt(key, n.keyPos)
		if !n.hasTwig(s) {
			return zero, false, nil
		}
		pos := n.twigPos(s)
		frames = append(frames, pathFrame[V]{node: *n, twigIdx: pos, shift: s})
		twigs := st.twigSlice(n.twigs, n.twigMax())
		n = &twigs[pos]
	}
	if !n.name.Equal(name) {
		return zero, false, nil
	}
	value = n.value

	if len(frames) == 0 {
		st.root = nilRef
		st.count--
		return value, true, nil
	}

	parent := frames[len(frames)-1]
	ancestors := frames[:len(frames)-1]
	size := parent.node.twigMax()
	oldTwigs := st.twigSlice(parent.node.twigs, size)

	var replacement node[V]
	if size == 2 {
		if parent.twigIdx == 0 {
			replacement = oldTwigs[1]
		} else {
			replacement = oldTwigs[0]
		}
	} else {
		newRef, aerr := st.alloc(uint32(size - 1))
		if aerr != nil {
			return zero, false, aerr
		}
		newTwigs := st.twigSlice(newRef, size-1)
		copy(newTwigs[:parent.twigIdx], oldTwigs[:parent.twigIdx])
		copy(newTwigs[parent.twigIdx:], oldTwigs[parent.twigIdx+1:])
		replacement = newBranch[V](parent.node.keyPos, parent.node.bitmap.clear(parent.shift), newRef)
	}
	st.retire(parent.node.twigs, uint32(size))

	root, err := rebuildPath(st, ancestors, replacement)
	if err != nil {
		return zero, false, err
	}
	st.root = root
	st.count--
	return value, true, nil
}
