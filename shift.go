package qptrie

// shift is a small unsigned integer identifying one step in a trie lookup
// key: either the NOBYTE separator/terminator, one of the 39 common-byte
// values, or one of the escape/discriminator pair used for every other
// byte. See DESIGN.md, "shift alphabet width", for why this package
// generalizes the spec's illustrative 46-value alphabet to a derived
// constant instead of hard-coding 46.
type shift = uint8

// noByte is the label-separator/terminator shift. It is assigned value 0
// so that it sorts before every real byte's shift, matching the spec's
// "NOBYTE has the smallest shift value" requirement.
const noByte shift = 0

// maxShift is the largest shift value the branch bitmap can represent: the
// bitmap is a single uint64, so every shift must be < 64.
const maxShift = 63

var (
	commonShift [256]int16 // shift for a "common" byte, or -1
	escapeShift [256]int16 // escape-bucket shift for an "uncommon" byte, or -1
	discShift   [256]int16 // discriminator shift within the byte's bucket, or -1

	// shiftAlphabetSize is the number of shift values taken by NOBYTE, the
	// common bytes and the escape buckets. Escape discriminators are a
	// separate range, 1..maxShift-1, which can run past it. It is
	// computed once in init, per the spec's design note that this table
	// should be "generated at build time from the ordered list of common
	// characters", not hand-written as a literal array.
	shiftAlphabetSize int
)

func init() {
	buildShiftTable()
}

// buildShiftTable assigns every byte value 0..255 one shift (if it is one
// of the 39 common hostname characters) or a (escape, discriminator) pair
// (otherwise), such that comparing the resulting shift sequences
// byte-for-byte agrees with comparing the raw, case-folded byte values.
//
// Shift values are handed out in a single ascending pass over the raw byte
// range 0..255: each common byte gets the next value when it is reached,
// and each maximal run of uncommon bytes between two common bytes opens
// its own escape bucket, also taking the next value at the point the run
// starts. This interleaves escape buckets between the common shifts of
// their neighbouring bytes instead of collecting them all above the common
// block, which is what makes the shift sequence agree with raw byte order
// — mirroring how original_source/qp-bits.h's byte_to_bits table threads
// escape values through the byte range rather than appending them after
// it. A run too large for a single escape bucket is split into
// consecutive sub-buckets, each still positioned at its point in the walk.
// Uppercase letters fold onto their lowercase counterpart's shift and so
// are skipped by the walk entirely (handled in a pass afterward), since
// they denote no distinct equivalence class of their own.
func buildShiftTable() {
	for i := range commonShift {
		commonShift[i] = -1
		escapeShift[i] = -1
		discShift[i] = -1
	}

	isCommon := func(c byte) bool {
		switch {
		case c == '-' || c == '.' || c == '_':
			return true
		case c >= '0' && c <= '9':
			return true
		case c >= 'a' && c <= 'z':
			return true
		default:
			return false
		}
	}

	const bucketCapacity = maxShift - 1 // discriminator values run 1..bucketCapacity

	next := int16(1)
	var bucket int16
	countInBucket := bucketCapacity // forces the first uncommon byte to open a bucket
	open := false

	for b := 0; b < 256; b++ {
		c := byte(b)
		if c >= 'A' && c <= 'Z' {
			continue // folds onto its lowercase counterpart, assigned below
		}
		if isCommon(c) {
			commonShift[c] = next
			next++
			open = false
			continue
		}
		if !open || countInBucket >= bucketCapacity {
			bucket = next
			next++
			countInBucket = 0
			open = true
		}
		countInBucket++
		escapeShift[c] = bucket
		discShift[c] = int16(countInBucket)
	}

	for c := byte('a'); c <= 'z'; c++ {
		commonShift[c-'a'+'A'] = commonShift[c]
	}

	shiftAlphabetSize = int(next)
	if shiftAlphabetSize > maxShift+1 {
		panic("qptrie: shift alphabet overflowed the branch bitmap width")
	}
}

// byteShifts returns the shift(s) byte b encodes to: either a single
// common shift, or an (escape, discriminator) pair.
func byteShifts(b byte) (s1, s2 shift, twoShift bool) {
	if cs := commonShift[b]; cs >= 0 {
		return shift(cs), 0, false
	}
	return shift(escapeShift[b]), shift(discShift[b]), true
}
