package qptrie

import "math/bits"

// branchBitmap records which shift values have a twig at a branch node.
// A branch may test a primary shift (below shiftAlphabetSize) or an escape
// discriminator (1..maxShift-1), and buildShiftTable keeps every shift
// value at or below maxShift, so a single uint64 is wide enough; see
// shift.go.
type branchBitmap uint64

func (bm branchBitmap) has(s shift) bool {
	return bm&(1<<uint(s)) != 0
}

func (bm branchBitmap) set(s shift) branchBitmap {
	return bm | (1 << uint(s))
}

func (bm branchBitmap) clear(s shift) branchBitmap {
	return bm &^ (1 << uint(s))
}

// popcount returns the total number of twigs in the branch, i.e. its
// fan-out.
func (bm branchBitmap) popcount() int {
	return bits.OnesCount64(uint64(bm))
}

// twigPos returns the index within the twig vector that shift s occupies,
// counting only the bits below s. The caller must have already confirmed
// bm.has(s) (for an existing twig) or must use this to compute the
// insertion point (for a new one).
func (bm branchBitmap) twigPos(s shift) int {
	mask := uint64(1)<<uint(s) - 1
	return bits.OnesCount64(uint64(bm) & mask)
}
